package lifecycle

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"
)

// Event is a lifecycle signal observed on a single request. It is the unit
// put on the event bus, folded into the journal and streamed to websocket
// clients.
type Event struct {
	RequestID string `json:"request_id"`
	Seq       uint64 `json:"seq"`
	// Step is the position of the signal within its request, starting at 0.
	// Transports may reorder deliveries, consumers sort by it.
	Step   int       `json:"step"`
	Signal Signal    `json:"signal"`
	Method string    `json:"method"`
	Path   string    `json:"path"`
	Status int       `json:"status,omitempty"`
	At     time.Time `json:"at"`
}

func (e Event) Marshal() ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrap(err, "marshal lifecycle event")
	}
	return b, nil
}

func UnmarshalEvent(b []byte) (Event, error) {
	var e Event
	if err := json.Unmarshal(b, &e); err != nil {
		return Event{}, errors.Wrap(err, "unmarshal lifecycle event")
	}
	if e.RequestID == "" {
		return Event{}, errors.New("lifecycle event: missing request_id")
	}
	if e.Signal == "" {
		return Event{}, errors.New("lifecycle event: missing signal")
	}
	return e, nil
}
