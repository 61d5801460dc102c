package audit

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	id "custodia/pkg/domain"
)

// wireEvent is the JSON shape events take on Kafka. One schema serves both
// directions: the relay producing to the SIEM topic and the ingest consumer
// materializing foreign events. Field names are frozen; downstream consumers
// parse them.
type wireEvent struct {
	ID               string `json:"ID"`
	Category         string `json:"Category"`
	Timestamp        string `json:"Timestamp"`
	Action           string `json:"Action"`
	SubjectID        string `json:"SubjectID,omitempty"`
	ErasureRequestID string `json:"ErasureRequestID,omitempty"`
	Code             string `json:"Code,omitempty"`
	Tier             string `json:"Tier,omitempty"`
	Decision         string `json:"Decision,omitempty"`
	Reason           string `json:"Reason,omitempty"`
	ActorID          string `json:"ActorID,omitempty"`
	IP               string `json:"IP,omitempty"`
	RequestID        string `json:"RequestID,omitempty"`
	Detail           string `json:"Detail,omitempty"`
}

// MarshalWire encodes an event for Kafka.
func MarshalWire(event Event) ([]byte, error) {
	payload := wireEvent{
		ID:               event.ID.String(),
		Category:         string(event.Category),
		Timestamp:        event.Timestamp.Format(time.RFC3339Nano),
		Action:           event.Action,
		SubjectID:        event.SubjectID,
		ErasureRequestID: event.ErasureRequestID,
		Code:             event.Code,
		Tier:             event.Tier,
		Decision:         event.Decision,
		Reason:           event.Reason,
		ActorID:          event.ActorID,
		IP:               event.IP,
		RequestID:        event.RequestID,
		Detail:           event.Detail,
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal audit wire event: %w", err)
	}
	return out, nil
}

// UnmarshalWire decodes a Kafka payload into an event. The event ID must be
// present and valid: it is the idempotence key for materialization. A zero
// or absent timestamp stays zero; the caller decides the fallback.
func UnmarshalWire(data []byte) (Event, error) {
	var payload wireEvent
	if err := json.Unmarshal(data, &payload); err != nil {
		return Event{}, fmt.Errorf("unmarshal audit wire event: %w", err)
	}

	eventID, err := uuid.Parse(payload.ID)
	if err != nil || eventID == uuid.Nil {
		return Event{}, fmt.Errorf("audit wire event has no usable ID: %q", payload.ID)
	}

	event := Event{
		ID:               id.EventID(eventID),
		Category:         EventCategory(payload.Category),
		Action:           payload.Action,
		SubjectID:        payload.SubjectID,
		ErasureRequestID: payload.ErasureRequestID,
		Code:             payload.Code,
		Tier:             payload.Tier,
		Decision:         payload.Decision,
		Reason:           payload.Reason,
		ActorID:          payload.ActorID,
		IP:               payload.IP,
		RequestID:        payload.RequestID,
		Detail:           payload.Detail,
	}

	if payload.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339Nano, payload.Timestamp); err == nil {
			event.Timestamp = ts
		}
	}

	return event, nil
}
