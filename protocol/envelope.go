package protocol

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Address identifies a message source or destination.
type Address struct {
	Role    string `json:"role"`
	Node    string `json:"node"`
	Machine string `json:"machine,omitempty"`
}

// Envelope is the universal message wrapper for terminal and planner traffic.
type Envelope struct {
	Version   int             `json:"v"`
	Type      string          `json:"type"`
	ID        string          `json:"id"`
	Src       Address         `json:"src"`
	Dst       Address         `json:"dst"`
	Timestamp time.Time       `json:"ts"`
	ExpiresAt time.Time       `json:"exp"`
	CorID     string          `json:"cor,omitempty"`
	Payload   json.RawMessage `json:"p"`
}

// RawHeader is the minimal decode for routing decisions before full payload decode.
type RawHeader struct {
	Version   int       `json:"v"`
	Type      string    `json:"type"`
	ID        string    `json:"id"`
	Src       Address   `json:"src"`
	Dst       Address   `json:"dst"`
	ExpiresAt time.Time `json:"exp"`
}

// ErrMissingType is returned by Decode for an envelope without a type.
var ErrMissingType = errors.New("envelope has no type")

// NewEnvelope creates an outbound envelope with the default TTL of its type.
func NewEnvelope(msgType string, src, dst Address, payload any) (*Envelope, error) {
	return NewEnvelopeTTL(msgType, src, dst, DefaultTTLFor(msgType), payload)
}

// NewEnvelopeTTL creates an outbound envelope that expires after ttl.
// A zero ttl never expires.
func NewEnvelopeTTL(msgType string, src, dst Address, ttl time.Duration, payload any) (*Envelope, error) {
	p, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	env := &Envelope{
		Version:   Version,
		Type:      msgType,
		ID:        uuid.NewString(),
		Src:       src,
		Dst:       dst,
		Timestamp: time.Now().UTC(),
		Payload:   p,
	}
	if ttl > 0 {
		env.ExpiresAt = env.Timestamp.Add(ttl)
	}
	return env, nil
}

// Decode parses a full envelope from wire bytes.
func Decode(data []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	if env.Type == "" {
		return nil, ErrMissingType
	}
	return &env, nil
}

// NewReply creates a reply envelope, setting CorID to the original message ID.
func NewReply(msgType string, src, dst Address, correlationID string, payload any) (*Envelope, error) {
	env, err := NewEnvelope(msgType, src, dst, payload)
	if err != nil {
		return nil, err
	}
	env.CorID = correlationID
	return env, nil
}

// Encode marshals the envelope to JSON.
func (e *Envelope) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// DecodePayload unmarshals the raw payload into the given target.
func (e *Envelope) DecodePayload(target any) error {
	return json.Unmarshal(e.Payload, target)
}
