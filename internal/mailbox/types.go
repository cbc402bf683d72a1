package mailbox

import (
	"encoding/json"
	"fmt"
	"time"
)

// PayloadType is the on-disk discriminator of a message payload.
type PayloadType string

const (
	TypeMessage              PayloadType = "message"
	TypeBroadcast            PayloadType = "broadcast"
	TypeShutdownRequest      PayloadType = "shutdown_request"
	TypeShutdownResponse     PayloadType = "shutdown_response"
	TypeIdleNotification     PayloadType = "idle_notification"
	TypePlanApprovalRequest  PayloadType = "plan_approval_request"
	TypePlanApprovalResponse PayloadType = "plan_approval_response"
)

// Payload is the typed body of a message. The set of implementations is
// closed; switch on the concrete type to handle each variant.
type Payload interface {
	PayloadType() PayloadType
	isPayload()
}

// PlainMessage is a direct message with no structured content.
type PlainMessage struct{}

// BroadcastMessage marks a copy of a team-wide broadcast.
type BroadcastMessage struct{}

// ShutdownRequest asks the recipient to approve its own shutdown.
type ShutdownRequest struct {
	RequestID string `json:"requestId"`
	Reason    string `json:"reason,omitempty"`
}

// ShutdownResponse answers a ShutdownRequest.
type ShutdownResponse struct {
	RequestID string `json:"requestId"`
	Approve   bool   `json:"approve"`
	Reason    string `json:"reason,omitempty"`
}

// IdleNotification tells the lead a member is ready for new work,
// optionally after finishing TaskID.
type IdleNotification struct {
	TaskID string `json:"taskId,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// PlanApprovalRequest asks the lead to approve a plan before execution.
type PlanApprovalRequest struct {
	RequestID string `json:"requestId"`
	Plan      string `json:"plan"`
}

// PlanApprovalResponse answers a PlanApprovalRequest.
type PlanApprovalResponse struct {
	RequestID string `json:"requestId"`
	Approve   bool   `json:"approve"`
	Feedback  string `json:"feedback,omitempty"`
}

// UnknownPayload preserves a payload whose type this build does not know.
type UnknownPayload struct {
	Type PayloadType
	Raw  json.RawMessage
}

func (PlainMessage) PayloadType() PayloadType         { return TypeMessage }
func (BroadcastMessage) PayloadType() PayloadType     { return TypeBroadcast }
func (ShutdownRequest) PayloadType() PayloadType      { return TypeShutdownRequest }
func (ShutdownResponse) PayloadType() PayloadType     { return TypeShutdownResponse }
func (IdleNotification) PayloadType() PayloadType     { return TypeIdleNotification }
func (PlanApprovalRequest) PayloadType() PayloadType  { return TypePlanApprovalRequest }
func (PlanApprovalResponse) PayloadType() PayloadType { return TypePlanApprovalResponse }
func (p UnknownPayload) PayloadType() PayloadType     { return p.Type }

func (PlainMessage) isPayload()         {}
func (BroadcastMessage) isPayload()     {}
func (ShutdownRequest) isPayload()      {}
func (ShutdownResponse) isPayload()     {}
func (IdleNotification) isPayload()     {}
func (PlanApprovalRequest) isPayload()  {}
func (PlanApprovalResponse) isPayload() {}
func (UnknownPayload) isPayload()       {}

// Message is one entry of an inbox. Read is derived from the read ledger
// when the message is loaded; it is always false on disk.
type Message struct {
	ID        string
	From      string
	Text      string
	Summary   string
	Color     string
	Timestamp time.Time
	Read      bool
	Payload   Payload
}

// Type returns the payload discriminator, treating a nil payload as a
// plain message.
func (m Message) Type() PayloadType {
	if m.Payload == nil {
		return TypeMessage
	}
	return m.Payload.PayloadType()
}

type wireMessage struct {
	ID        string          `json:"id"`
	From      string          `json:"from"`
	Text      string          `json:"text"`
	Summary   string          `json:"summary,omitempty"`
	Color     string          `json:"color,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	Read      bool            `json:"read"`
	Type      PayloadType     `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

// MarshalJSON encodes the message with its payload under "payload" and the
// variant name under "type".
func (m Message) MarshalJSON() ([]byte, error) {
	w := wireMessage{
		ID:        m.ID,
		From:      m.From,
		Text:      m.Text,
		Summary:   m.Summary,
		Color:     m.Color,
		Timestamp: m.Timestamp,
		Read:      m.Read,
		Type:      m.Type(),
	}

	switch p := m.Payload.(type) {
	case nil, PlainMessage, BroadcastMessage:
	case UnknownPayload:
		w.Payload = p.Raw
	default:
		raw, err := json.Marshal(p)
		if err != nil {
			return nil, fmt.Errorf("encode %s payload: %w", w.Type, err)
		}
		w.Payload = raw
	}
	return json.Marshal(w)
}

// UnmarshalJSON decodes the payload variant named by "type".
func (m *Message) UnmarshalJSON(data []byte) error {
	var w wireMessage
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}

	payload, err := decodePayload(w.Type, w.Payload)
	if err != nil {
		return fmt.Errorf("decode %s payload: %w", w.Type, err)
	}

	*m = Message{
		ID:        w.ID,
		From:      w.From,
		Text:      w.Text,
		Summary:   w.Summary,
		Color:     w.Color,
		Timestamp: w.Timestamp,
		Read:      w.Read,
		Payload:   payload,
	}
	return nil
}

func decodePayload(t PayloadType, raw json.RawMessage) (Payload, error) {
	switch t {
	case "", TypeMessage:
		return PlainMessage{}, nil
	case TypeBroadcast:
		return BroadcastMessage{}, nil
	case TypeShutdownRequest:
		return decodeInto[ShutdownRequest](raw)
	case TypeShutdownResponse:
		return decodeInto[ShutdownResponse](raw)
	case TypeIdleNotification:
		return decodeInto[IdleNotification](raw)
	case TypePlanApprovalRequest:
		return decodeInto[PlanApprovalRequest](raw)
	case TypePlanApprovalResponse:
		return decodeInto[PlanApprovalResponse](raw)
	default:
		return UnknownPayload{Type: t, Raw: raw}, nil
	}
}

func decodeInto[T Payload](raw json.RawMessage) (Payload, error) {
	var p T
	if len(raw) == 0 {
		return p, nil
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, err
	}
	return p, nil
}
