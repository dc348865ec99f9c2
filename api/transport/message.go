package transport

import (
	"encoding/json"

	"github.com/taskstream/backend/domain"
)

// WebSocket frame types that are not event-log entries.
const (
	MsgConnectionEstablished = "connection.established"
	MsgPing                  = "ping"
	MsgPong                  = "pong"
)

// Frame is the wire envelope for every websocket message: a discriminating
// type tag plus a type-specific data object. Event frames also carry the log
// id so clients can track their catch-up cursor; control frames omit it.
type Frame struct {
	ID   int64           `json:"id,omitempty"`
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// EncodeEvent serializes an event-log entry into its wire frame. The payload
// stored in the log already has the wire shape, so it rides through untouched.
func EncodeEvent(event *domain.TaskEvent) ([]byte, error) {
	data := event.Payload
	if len(data) == 0 {
		data = json.RawMessage(`{}`)
	}
	return json.Marshal(Frame{
		ID:   event.ID,
		Type: string(event.Type),
		Data: data,
	})
}

// EncodeConnectionEstablished builds the greeting sent right after register.
func EncodeConnectionEstablished(userID string) []byte {
	data, _ := json.Marshal(map[string]string{"user_id": userID})
	frame, _ := json.Marshal(Frame{Type: MsgConnectionEstablished, Data: data})
	return frame
}

// EncodePong builds the reply to a client ping.
func EncodePong() []byte {
	frame, _ := json.Marshal(Frame{Type: MsgPong})
	return frame
}

// EncodePing builds the client-side liveness probe.
func EncodePing() []byte {
	frame, _ := json.Marshal(Frame{Type: MsgPing})
	return frame
}

// DecodeFrame parses a wire frame.
func DecodeFrame(payload []byte) (Frame, error) {
	var frame Frame
	if err := json.Unmarshal(payload, &frame); err != nil {
		return Frame{}, domain.WrapError(domain.ErrCodeInvalid, "malformed frame", err)
	}
	return frame, nil
}
