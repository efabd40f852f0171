package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Type is the value of the "type" tag carried by every message.
type Type string

// Message tags.
const (
	TypeInit          Type = "init"
	TypeClickResponse Type = "click_response"
	TypeGlobalUpdate  Type = "global_update"
	TypeClick         Type = "click"
	TypePing          Type = "ping"
	TypePong          Type = "pong"
)

var (
	// ErrMalformed is returned by Decode for payloads that are not a valid
	// message object, or that lack a field required by their type.
	ErrMalformed = errors.New("protocol: malformed message")

	// ErrUnknownType is returned by Decode for a well-formed object whose
	// "type" tag is not one of the six known values.
	ErrUnknownType = errors.New("protocol: unknown message type")
)

// TimestampLayout is the layout of ClickResponse.Timestamp.
const TimestampLayout = time.RFC3339Nano

// Message is implemented by exactly the six message types of this package.
type Message interface {
	Type() Type
	isMessage()
}

// Init is sent to a client once, right after it connects.
type Init struct {
	TotalClicks uint64
}

// ClickResponse acknowledges a click to the client that sent it.
type ClickResponse struct {
	ClientClicks uint64
	TotalClicks  uint64
	Timestamp    string
}

// GlobalUpdate tells every other client the new total after a click.
type GlobalUpdate struct {
	TotalClicks uint64
}

// Click is a single click event sent by a client.
type Click struct{}

// Ping asks the server for a Pong. It is unrelated to WebSocket ping frames.
type Ping struct{}

// Pong answers a Ping.
type Pong struct{}

func (Init) Type() Type          { return TypeInit }
func (ClickResponse) Type() Type { return TypeClickResponse }
func (GlobalUpdate) Type() Type  { return TypeGlobalUpdate }
func (Click) Type() Type         { return TypeClick }
func (Ping) Type() Type          { return TypePing }
func (Pong) Type() Type          { return TypePong }

func (Init) isMessage()          {}
func (ClickResponse) isMessage() {}
func (GlobalUpdate) isMessage()  {}
func (Click) isMessage()         {}
func (Ping) isMessage()          {}
func (Pong) isMessage()          {}

// FormatTimestamp renders t in UTC using TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// ParseTimestamp is the inverse of FormatTimestamp.
func ParseTimestamp(s string) (time.Time, error) {
	return time.Parse(TimestampLayout, s)
}

// wire is the flat JSON shape shared by all message types.
type wire struct {
	Type         Type    `json:"type"`
	ClientClicks *uint64 `json:"client_clicks,omitempty"`
	TotalClicks  *uint64 `json:"total_clicks,omitempty"`
	Timestamp    *string `json:"timestamp,omitempty"`
}

// Encode serializes m to its tagged JSON form.
func Encode(m Message) ([]byte, error) {
	w := wire{}
	switch v := m.(type) {
	case Init:
		w.Type = TypeInit
		w.TotalClicks = &v.TotalClicks
	case ClickResponse:
		w.Type = TypeClickResponse
		w.ClientClicks = &v.ClientClicks
		w.TotalClicks = &v.TotalClicks
		w.Timestamp = &v.Timestamp
	case GlobalUpdate:
		w.Type = TypeGlobalUpdate
		w.TotalClicks = &v.TotalClicks
	case Click:
		w.Type = TypeClick
	case Ping:
		w.Type = TypePing
	case Pong:
		w.Type = TypePong
	default:
		return nil, fmt.Errorf("protocol: cannot encode %T", m)
	}
	return json.Marshal(w)
}

// MustEncode is Encode for messages known to be encodable. It panics on error
// and is meant for tests and package-level constants only.
func MustEncode(m Message) []byte {
	b, err := Encode(m)
	if err != nil {
		panic(err)
	}
	return b
}

// Decode parses one message. Unknown JSON fields are ignored. Keys are
// matched exactly: "TYPE" or "Total_Clicks" are unknown fields, not aliases.
func Decode(data []byte) (Message, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var t Type
	if err := field(obj, "", "type", &t); err != nil {
		return nil, err
	}

	switch t {
	case TypeInit:
		var total uint64
		if err := field(obj, t, "total_clicks", &total); err != nil {
			return nil, err
		}
		return Init{TotalClicks: total}, nil
	case TypeClickResponse:
		var m ClickResponse
		if err := field(obj, t, "client_clicks", &m.ClientClicks); err != nil {
			return nil, err
		}
		if err := field(obj, t, "total_clicks", &m.TotalClicks); err != nil {
			return nil, err
		}
		if err := field(obj, t, "timestamp", &m.Timestamp); err != nil {
			return nil, err
		}
		return m, nil
	case TypeGlobalUpdate:
		var total uint64
		if err := field(obj, t, "total_clicks", &total); err != nil {
			return nil, err
		}
		return GlobalUpdate{TotalClicks: total}, nil
	case TypeClick:
		return Click{}, nil
	case TypePing:
		return Ping{}, nil
	case TypePong:
		return Pong{}, nil
	case "":
		return nil, fmt.Errorf("%w: missing type", ErrMalformed)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownType, t)
	}
}

// field decodes obj[name] into dst. An absent or null key is reported as
// missing; a value of the wrong JSON type is malformed.
func field(obj map[string]json.RawMessage, t Type, name string, dst interface{}) error {
	raw, ok := obj[name]
	if !ok || string(raw) == "null" {
		if t == "" {
			return fmt.Errorf("%w: missing %s", ErrMalformed, name)
		}
		return missing(t, name)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrMalformed, name, err)
	}
	return nil
}

func missing(t Type, field string) error {
	return fmt.Errorf("%w: %s without %s", ErrMalformed, t, field)
}
