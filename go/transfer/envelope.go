package transfer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	pb "go.gazette.dev/core/broker/protocol"
	"go.gazette.dev/core/message"
)

// Event types of envelope metadata.
const (
	TypeTransfer     = "transfer"
	TypeFulfil       = "fulfil"
	TypeNotification = "notification"
	TypePosition     = "position"
)

// Event actions of envelope metadata.
const (
	ActionPrepare          = "prepare"
	ActionCommit           = "commit"
	ActionReject           = "reject"
	ActionAbort            = "abort"
	ActionTimeoutReserved  = "timeout-reserved"
	ActionTransfer         = "transfer"
	ActionPrepareDuplicate = "prepare-duplicate"
)

// Event statuses of envelope metadata.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// SwitchName identifies the switch itself as an envelope originator.
const SwitchName = "central-switch"

// EventState is the success/failure disposition of an event.
type EventState struct {
	Status      string `json:"status"`
	Code        int    `json:"code,omitempty"`
	Description string `json:"description,omitempty"`
}

// Event is the routing metadata of an envelope.
type Event struct {
	Type      string     `json:"type"`
	Action    string     `json:"action"`
	State     EventState `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
	ID        string     `json:"id,omitempty"`
}

// Content carries the payload and pass-through headers of an envelope.
type Content struct {
	Payload json.RawMessage   `json:"payload"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Metadata wraps the event metadata of an envelope.
type Metadata struct {
	Event Event `json:"event"`
}

// Envelope is the on-bus message shape, JSON-framed on every topic.
// Meta.UUID is assigned by the bus publisher and sequences the message.
type Envelope struct {
	Meta struct {
		UUID string `json:"uuid"`
	} `json:"_meta"`
	ID       string   `json:"id"`
	From     string   `json:"from"`
	To       string   `json:"to"`
	Content  Content  `json:"content"`
	Metadata Metadata `json:"metadata"`
}

var _ message.Message = (*Envelope)(nil)

// GetUUID returns the envelope's bus UUID, or a zero UUID if unset.
func (e *Envelope) GetUUID() (out message.UUID) {
	if u, err := uuid.Parse(e.Meta.UUID); err == nil {
		out = message.UUID(u)
	}
	return
}

// SetUUID stamps the envelope's bus UUID.
func (e *Envelope) SetUUID(u message.UUID) { e.Meta.UUID = uuid.UUID(u).String() }

// NewAcknowledgement returns an empty Envelope to read an ACK into.
func (e *Envelope) NewAcknowledgement(pb.Journal) message.Message { return new(Envelope) }

// NewEnvelope builds an envelope around a marshalled |payload|.
// The event is stamped with a fresh ID and the current UTC instant.
func NewEnvelope(id, from, to, typ, action string, payload interface{}) (*Envelope, error) {
	var raw, err = json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	var env = &Envelope{
		ID:      id,
		From:    from,
		To:      to,
		Content: Content{Payload: raw},
		Metadata: Metadata{Event: Event{
			Type:      typ,
			Action:    action,
			State:     EventState{Status: StatusSuccess},
			CreatedAt: time.Now().UTC(),
			ID:        uuid.NewString(),
		}},
	}
	return env, nil
}

// Forward derives a new envelope from |e| preserving its identity, payload
// and headers, while re-stamping the event metadata for the next hop.
func (e *Envelope) Forward(typ, action string, state EventState) *Envelope {
	var out = &Envelope{
		ID:      e.ID,
		From:    e.From,
		To:      e.To,
		Content: e.Content,
		Metadata: Metadata{Event: Event{
			Type:      typ,
			Action:    action,
			State:     state,
			CreatedAt: time.Now().UTC(),
			ID:        uuid.NewString(),
		}},
	}
	return out
}

// NewFailure builds the notification envelope reporting a failed request
// back to its originator. The request's extension list rides along inside
// the errorInformation payload.
func NewFailure(req *Envelope, action string, code int, detail string, extensions ExtensionList) *Envelope {
	var info = NewErrorInformation(code, detail, extensions)
	var raw, err = json.Marshal(struct {
		ErrorInformation ErrorInformation `json:"errorInformation"`
	}{info})
	if err != nil {
		panic(err) // Marshalling a static shape cannot fail.
	}
	return &Envelope{
		ID:      req.ID,
		From:    SwitchName,
		To:      req.From,
		Content: Content{Payload: raw, Headers: req.Content.Headers},
		Metadata: Metadata{Event: Event{
			Type:   TypeNotification,
			Action: action,
			State: EventState{
				Status:      StatusFailure,
				Code:        code,
				Description: info.ErrorDescription,
			},
			CreatedAt: time.Now().UTC(),
			ID:        uuid.NewString(),
		}},
	}
}
