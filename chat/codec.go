package chat

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	// ErrMalformedFrame marks a text frame whose payload failed to parse or
	// carried an unknown variant. Recoverable: skip the frame, keep reading.
	ErrMalformedFrame = errors.New("malformed chat frame")

	// ErrUnexpectedFrameType marks a frame that is neither text nor close.
	ErrUnexpectedFrameType = errors.New("unexpected websocket frame type")
)

// Encode serializes a ChatMessage into a WebSocket frame. Close encodes to
// the transport's native close frame with no payload; every other variant
// encodes to a text frame carrying the JSON envelope.
func Encode(msg ChatMessage) (messageType int, data []byte, err error) {
	if msg.Content.Kind == KindClose {
		return websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), nil
	}

	data, err = json.Marshal(msg)
	if err != nil {
		return 0, nil, fmt.Errorf("encode chat message: %w", err)
	}
	return websocket.TextMessage, data, nil
}

// Decode parses a WebSocket frame into a ChatMessage. A native close frame
// decodes to a Close message with empty identities, matching the structured
// {"Close":[]} encoding.
func Decode(messageType int, data []byte) (ChatMessage, error) {
	switch messageType {
	case websocket.TextMessage:
		var msg ChatMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			if errors.Is(err, ErrMalformedFrame) {
				return ChatMessage{}, fmt.Errorf("parse %q: %w", data, err)
			}
			return ChatMessage{}, fmt.Errorf("%w: parse %q: %v", ErrMalformedFrame, data, err)
		}
		return msg, nil

	case websocket.CloseMessage:
		return NewMessage("", "", CloseContent()), nil

	default:
		return ChatMessage{}, fmt.Errorf("%w: %d", ErrUnexpectedFrameType, messageType)
	}
}
