package chat

import (
	"encoding/json"
	"fmt"
)

// ServerIdentity is the reserved sender name for messages originated by the
// relay itself, such as routing errors and user list responses.
const ServerIdentity = "__SERVER__"

// ChatError enumerates protocol-level failure notices delivered to clients.
type ChatError string

// UserNotOnline reports that the recipient of a prompt has no active
// connection registered with the relay.
const UserNotOnline ChatError = "UserNotOnline"

// ContentKind identifies which MessageContent variant is present.
type ContentKind int

// Message content variants. Exactly one is present per message.
const (
	KindClose ContentKind = iota
	KindPrompt
	KindGetUsersList
	KindListUsers
	KindError
)

// String returns the variant tag used on the wire.
func (k ContentKind) String() string {
	switch k {
	case KindClose:
		return "Close"
	case KindPrompt:
		return "Prompt"
	case KindGetUsersList:
		return "GetUsersList"
	case KindListUsers:
		return "ListUsers"
	case KindError:
		return "Error"
	default:
		return fmt.Sprintf("ContentKind(%d)", int(k))
	}
}

// MessageContent is the closed variant set carried by a ChatMessage. Kind
// selects the variant; only the payload field belonging to that variant is
// meaningful.
type MessageContent struct {
	Kind  ContentKind
	Text  string    // Prompt payload
	Users []string  // ListUsers payload
	Err   ChatError // Error payload
}

// CloseContent returns the orderly-shutdown variant.
func CloseContent() MessageContent {
	return MessageContent{Kind: KindClose}
}

// PromptContent returns a user-to-user text message variant.
func PromptContent(text string) MessageContent {
	return MessageContent{Kind: KindPrompt, Text: text}
}

// GetUsersListContent returns the user list request variant.
func GetUsersListContent() MessageContent {
	return MessageContent{Kind: KindGetUsersList}
}

// ListUsersContent returns the user list response variant.
func ListUsersContent(users []string) MessageContent {
	return MessageContent{Kind: KindListUsers, Users: users}
}

// ErrorContent returns a failure notice variant.
func ErrorContent(err ChatError) MessageContent {
	return MessageContent{Kind: KindError, Err: err}
}

// MarshalJSON encodes the content in its externally tagged wire form.
func (c MessageContent) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindClose:
		// Tuple variant with no payload.
		return []byte(`{"Close":[]}`), nil
	case KindPrompt:
		return json.Marshal(map[string]string{"Prompt": c.Text})
	case KindGetUsersList:
		// Unit variant: a bare string.
		return []byte(`"GetUsersList"`), nil
	case KindListUsers:
		users := c.Users
		if users == nil {
			users = []string{}
		}
		return json.Marshal(map[string][]string{"ListUsers": users})
	case KindError:
		return json.Marshal(map[string]ChatError{"Error": c.Err})
	default:
		return nil, fmt.Errorf("cannot encode unknown content variant %v", c.Kind)
	}
}

// UnmarshalJSON decodes the externally tagged wire form into a content value.
func (c *MessageContent) UnmarshalJSON(data []byte) error {
	// Unit variants arrive as a bare string.
	var unit string
	if err := json.Unmarshal(data, &unit); err == nil {
		if unit != "GetUsersList" {
			return fmt.Errorf("%w: unknown content variant %q", ErrMalformedFrame, unit)
		}
		*c = GetUsersListContent()
		return nil
	}

	var tagged map[string]json.RawMessage
	if err := json.Unmarshal(data, &tagged); err != nil {
		return fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}
	if len(tagged) != 1 {
		return fmt.Errorf("%w: content must carry exactly one variant, got %d", ErrMalformedFrame, len(tagged))
	}

	for tag, payload := range tagged {
		switch tag {
		case "Close":
			*c = CloseContent()
		case "Prompt":
			var text string
			if err := json.Unmarshal(payload, &text); err != nil {
				return fmt.Errorf("%w: prompt payload: %v", ErrMalformedFrame, err)
			}
			*c = PromptContent(text)
		case "ListUsers":
			var users []string
			if err := json.Unmarshal(payload, &users); err != nil {
				return fmt.Errorf("%w: user list payload: %v", ErrMalformedFrame, err)
			}
			*c = ListUsersContent(users)
		case "Error":
			var kind ChatError
			if err := json.Unmarshal(payload, &kind); err != nil {
				return fmt.Errorf("%w: error payload: %v", ErrMalformedFrame, err)
			}
			if kind != UserNotOnline {
				return fmt.Errorf("%w: unknown error kind %q", ErrMalformedFrame, kind)
			}
			*c = ErrorContent(kind)
		default:
			return fmt.Errorf("%w: unknown content variant %q", ErrMalformedFrame, tag)
		}
	}
	return nil
}

// ChatMessage is the envelope routed by the relay. From and To are client
// identities; To selects the delivery target for Prompt messages.
type ChatMessage struct {
	From    string         `json:"from"`
	To      string         `json:"to"`
	Content MessageContent `json:"content"`
}

// UnmarshalJSON decodes the envelope, requiring all three fields to be
// present. A missing field is malformed, never a zero value: an absent
// content key must not decode into a fabricated Close.
func (m *ChatMessage) UnmarshalJSON(data []byte) error {
	var raw struct {
		From    *string         `json:"from"`
		To      *string         `json:"to"`
		Content *MessageContent `json:"content"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	switch {
	case raw.From == nil:
		return fmt.Errorf("%w: missing field %q", ErrMalformedFrame, "from")
	case raw.To == nil:
		return fmt.Errorf("%w: missing field %q", ErrMalformedFrame, "to")
	case raw.Content == nil:
		return fmt.Errorf("%w: missing field %q", ErrMalformedFrame, "content")
	}

	*m = ChatMessage{From: *raw.From, To: *raw.To, Content: *raw.Content}
	return nil
}

// NewMessage builds a ChatMessage envelope.
func NewMessage(from, to string, content MessageContent) ChatMessage {
	return ChatMessage{From: from, To: to, Content: content}
}
