package redisstream

import (
	"context"
	"strings"

	"github.com/ThreeDotsLabs/watermill"
	rstream "github.com/ThreeDotsLabs/watermill-redisstream/pkg/redisstream"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Transport is a Redis Streams publisher/subscriber pair sharing one client.
type Transport struct {
	Client     redis.UniversalClient
	Publisher  message.Publisher
	Subscriber message.Subscriber
}

// Build constructs a Transport for s. The subscriber joins s.Group as s.Consumer.
func Build(s Settings, logger watermill.LoggerAdapter) (*Transport, error) {
	if !s.Enabled {
		return nil, errors.New("redis transport is not enabled")
	}
	if strings.TrimSpace(s.Addr) == "" {
		return nil, errors.New("redis address is empty")
	}
	client := redis.NewClient(&redis.Options{Addr: s.Addr})
	marshaler := rstream.DefaultMarshallerUnmarshaller{}

	pub, err := rstream.NewPublisher(rstream.PublisherConfig{
		Client:     client,
		Marshaller: marshaler,
	}, logger)
	if err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "new redis publisher")
	}

	sub, err := rstream.NewSubscriber(rstream.SubscriberConfig{
		Client:        client,
		Unmarshaller:  marshaler,
		ConsumerGroup: s.Group,
		Consumer:      s.Consumer,
	}, logger)
	if err != nil {
		_ = pub.Close()
		_ = client.Close()
		return nil, errors.Wrap(err, "new redis subscriber")
	}

	return &Transport{Client: client, Publisher: pub, Subscriber: sub}, nil
}

// Close shuts down publisher, subscriber and client, returning the first error.
// The watermill side closes the shared client itself, so redis.ErrClosed is not
// reported.
func (t *Transport) Close() error {
	if t == nil {
		return nil
	}
	var first error
	for _, c := range []func() error{
		closerOf(t.Publisher),
		closerOf(t.Subscriber),
		closerOf(t.Client),
	} {
		if err := c(); err != nil && !errors.Is(err, redis.ErrClosed) && first == nil {
			first = err
		}
	}
	return first
}

func closerOf(c interface{ Close() error }) func() error {
	return func() error {
		if c == nil {
			return nil
		}
		return c.Close()
	}
}

// EnsureGroupAtTail creates the consumer group for a given stream at the tail ($) if it doesn't exist.
// This prevents full historical replay on first subscribe.
func EnsureGroupAtTail(ctx context.Context, client redis.UniversalClient, stream, group string) error {
	if client == nil {
		return errors.New("redis client is nil")
	}
	err := client.XGroupCreateMkStream(ctx, stream, group, "$").Err()
	if err != nil {
		// Ignore BUSYGROUP errors (group already exists)
		if strings.Contains(err.Error(), "BUSYGROUP") {
			return nil
		}
		return errors.Wrapf(err, "create consumer group %s on %s", group, stream)
	}
	log.Info().Str("stream", stream).Str("group", group).Msg("created redis consumer group at $ (tail)")
	return nil
}
