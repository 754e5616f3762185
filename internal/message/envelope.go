package message

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Envelope wraps a payload with provenance assigned by the bus.
type Envelope struct {
	Seq       int
	Kind      Kind
	Actor     string
	Phase     string
	CreatedAt time.Time
	Payload   Model
}

type envelopeJSON struct {
	Seq       int             `json:"seq"`
	Kind      Kind            `json:"kind"`
	Actor     string          `json:"actor"`
	Phase     string          `json:"phase,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	Payload   json.RawMessage `json:"payload"`
}

// MarshalJSON encodes the payload alongside its kind.
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Payload == nil {
		return nil, fmt.Errorf("message: envelope %d has no payload", e.Seq)
	}
	payload, err := json.Marshal(e.Payload)
	if err != nil {
		return nil, fmt.Errorf("message: encode %s payload: %w", e.Kind, err)
	}
	return json.Marshal(envelopeJSON{
		Seq:       e.Seq,
		Kind:      e.Kind,
		Actor:     e.Actor,
		Phase:     e.Phase,
		CreatedAt: e.CreatedAt.UTC(),
		Payload:   payload,
	})
}

// UnmarshalJSON decodes the payload using the schema registered for its kind.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw envelopeJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("message: decode envelope: %w", err)
	}
	payload, err := DecodePayload(raw.Kind, raw.Payload)
	if err != nil {
		return err
	}
	*e = Envelope{
		Seq:       raw.Seq,
		Kind:      raw.Kind,
		Actor:     raw.Actor,
		Phase:     raw.Phase,
		CreatedAt: raw.CreatedAt,
		Payload:   payload,
	}
	return nil
}

// DecodePayload turns a JSON payload into the model registered for kind.
func DecodePayload(kind Kind, data []byte) (Model, error) {
	target, err := newPayload(kind)
	if err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, target); err != nil {
		return nil, fmt.Errorf("message: decode %s payload: %w", kind, err)
	}
	return deref(target), nil
}

// DecodeYAMLPayload decodes a YAML node straight into the model registered for
// kind, so unquoted scalars such as 7.10 land in string fields verbatim.
func DecodeYAMLPayload(kind Kind, node *yaml.Node) (Model, error) {
	target, err := newPayload(kind)
	if err != nil {
		return nil, err
	}
	if node == nil || node.Kind == 0 {
		return nil, fmt.Errorf("message: %s payload is missing", kind)
	}
	if err := node.Decode(target); err != nil {
		return nil, fmt.Errorf("message: decode %s payload: %w", kind, err)
	}
	return deref(target), nil
}

func newPayload(kind Kind) (Model, error) {
	factory, ok := decoders[kind]
	if !ok {
		known := make([]string, 0, len(decoders))
		for _, k := range Kinds() {
			known = append(known, string(k))
		}
		return nil, fmt.Errorf("message: unknown kind %q (known: %s)", string(kind), strings.Join(known, ", "))
	}
	return factory(), nil
}
