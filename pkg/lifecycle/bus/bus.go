// Package bus carries lifecycle events over watermill, in-memory by default
// or through Redis Streams when enabled.
package bus

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/endevent/pkg/lifecycle"
	"github.com/go-go-golems/endevent/pkg/redisstream"
)

const DefaultTopic = "lifecycle"

type Options struct {
	Topic string
	Redis redisstream.Settings
	// Logger overrides the watermill logger built from log.Logger.
	Logger watermill.LoggerAdapter
}

// HandlerFunc consumes one decoded lifecycle event.
type HandlerFunc func(ctx context.Context, ev lifecycle.Event) error

// Bus publishes lifecycle events on a topic and dispatches them to named
// handlers through a watermill router.
type Bus struct {
	topic      string
	publisher  message.Publisher
	subscriber message.Subscriber
	router     *message.Router
	redis      *redisstream.Transport
	redisGroup string
	inMemory   *gochannel.GoChannel
}

func New(opts Options) (*Bus, error) {
	topic := strings.TrimSpace(opts.Topic)
	if topic == "" {
		topic = DefaultTopic
	}
	logger := opts.Logger
	if logger == nil {
		logger = NewWatermillLogger(log.Logger)
	}

	router, err := message.NewRouter(message.RouterConfig{}, logger)
	if err != nil {
		return nil, errors.Wrap(err, "new watermill router")
	}
	b := &Bus{topic: topic, router: router}

	if opts.Redis.Enabled {
		tr, err := redisstream.Build(opts.Redis, logger)
		if err != nil {
			_ = router.Close()
			return nil, errors.Wrap(err, "build redis transport")
		}
		b.redis = tr
		b.redisGroup = opts.Redis.Group
		b.publisher = tr.Publisher
		b.subscriber = tr.Subscriber
		return b, nil
	}

	ch := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, logger)
	b.inMemory = ch
	b.publisher = ch
	b.subscriber = ch
	return b, nil
}

func (b *Bus) Topic() string { return b.topic }

// Publish puts ev on the bus. Messages are keyed by a fresh uuid.
func (b *Bus) Publish(ev lifecycle.Event) error {
	if b == nil || b.publisher == nil {
		return errors.New("bus is not initialized")
	}
	payload, err := ev.Marshal()
	if err != nil {
		return err
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("request_id", ev.RequestID)
	msg.Metadata.Set("signal", ev.Signal.String())
	if err := b.publisher.Publish(b.topic, msg); err != nil {
		return errors.Wrap(err, "publish lifecycle event")
	}
	return nil
}

// AddHandler registers fn under name. Handlers must be added before Run.
// Messages that do not decode are logged and acked.
func (b *Bus) AddHandler(name string, fn HandlerFunc) {
	b.router.AddNoPublisherHandler(name, b.topic, b.subscriber, func(msg *message.Message) error {
		ev, err := lifecycle.UnmarshalEvent(msg.Payload)
		if err != nil {
			log.Warn().Err(err).Str("component", "bus").Str("handler", name).Str("uuid", msg.UUID).Msg("dropping malformed lifecycle message")
			return nil
		}
		return fn(msg.Context(), ev)
	})
}

// Run blocks until ctx is cancelled or the router is closed.
func (b *Bus) Run(ctx context.Context) error {
	if ctx == nil {
		return errors.New("ctx is nil")
	}
	if b.redis != nil {
		if err := redisstream.EnsureGroupAtTail(ctx, b.redis.Client, b.topic, b.redisGroup); err != nil {
			log.Warn().Err(err).Str("component", "bus").Msg("could not create redis consumer group")
		}
	}
	return b.router.Run(ctx)
}

// Running is closed once all handlers are subscribed.
func (b *Bus) Running() chan struct{} {
	return b.router.Running()
}

func (b *Bus) Close() error {
	if b == nil {
		return nil
	}
	var first error
	if err := b.router.Close(); err != nil {
		first = errors.Wrap(err, "close router")
	}
	if b.redis != nil {
		if err := b.redis.Close(); err != nil && first == nil {
			first = errors.Wrap(err, "close redis transport")
		}
	}
	if b.inMemory != nil {
		if err := b.inMemory.Close(); err != nil && first == nil {
			first = errors.Wrap(err, "close in-memory pubsub")
		}
	}
	return first
}
