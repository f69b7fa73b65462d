package pipeline

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// EventType selects the bus subscription an event is routed to.
type EventType string

const (
	TypeSourceObjectCreated EventType = "dev.knative.minio.object.created"
	TypeSegmentsReady       EventType = "dev.knative.audio.chunks.ready"
	TypeSegmentsProcessed   EventType = "dev.knative.audio.chunk.processed"
)

// SpecVersion is the CloudEvents version written on every emitted event.
const SpecVersion = "1.0"

// Event is the envelope passed between stages. SourceIdentifier correlates
// every event derived from one source object; ID is unique per emission and
// stays stable across bus redeliveries.
type Event struct {
	ID               string
	Type             EventType
	Source           string
	SourceIdentifier string
	Data             json.RawMessage
}

// NewEvent wraps payload in a fresh envelope.
func NewEvent(eventType EventType, source, subject string, payload any) (Event, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s payload: %w", eventType, err)
	}
	return Event{
		ID:               uuid.NewString(),
		Type:             eventType,
		Source:           source,
		SourceIdentifier: subject,
		Data:             data,
	}, nil
}

// Forward re-emits the same payload under a new type, keeping the
// correlation token.
func (e Event) Forward(eventType EventType, source string) Event {
	return Event{
		ID:               uuid.NewString(),
		Type:             eventType,
		Source:           source,
		SourceIdentifier: e.SourceIdentifier,
		Data:             bytes.Clone(e.Data),
	}
}

// SourceObject decodes a source-object-created payload.
func (e Event) SourceObject() (SourceObject, error) {
	var src SourceObject
	if err := decodeData(e.Data, &src); err != nil {
		return SourceObject{}, err
	}
	if err := src.Validate(); err != nil {
		return SourceObject{}, err
	}
	return src, nil
}

// Manifest decodes a segment manifest payload.
func (e Event) Manifest() (SegmentManifest, error) {
	var m SegmentManifest
	if err := decodeData(e.Data, &m); err != nil {
		return SegmentManifest{}, err
	}
	if err := m.Validate(); err != nil {
		return SegmentManifest{}, err
	}
	return m, nil
}

// Expect rejects events of a type the caller does not handle. An empty type
// is accepted; bare JSON deliveries carry no type.
func (e Event) Expect(types ...EventType) error {
	if e.Type == "" {
		return nil
	}
	for _, t := range types {
		if e.Type == t {
			return nil
		}
	}
	return Errorf(KindMalformedInput, "event", "unexpected event type %q", e.Type)
}

func decodeData(data json.RawMessage, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return Errorf(KindMalformedInput, "event", "empty payload")
	}
	if err := json.Unmarshal(data, v); err != nil {
		return Wrap(KindMalformedInput, "event", fmt.Errorf("decode payload: %w", err))
	}
	return nil
}
