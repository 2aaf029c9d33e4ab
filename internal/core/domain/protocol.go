package domain

import "encoding/json"

// Request types accepted on a client socket.
const (
	RequestConversations = "conversations"
	RequestGetContact    = "get_contact"
	RequestGetMessages   = "get_messages"
	RequestSendMessage   = "send_message"
)

// Event types pushed or returned on a client socket.
const (
	EventConversations = "conversations"
	EventContact       = "contact"
	EventMessages      = "messages"
	EventMessageSent   = "message_sent"
	EventNewMessage    = "new_message"
	EventConversation  = "conversation"
	EventError         = "error"
)

// ClientRequest is the envelope for every inbound socket frame. Type selects
// the operation; the remaining fields are per-operation.
type ClientRequest struct {
	Type   string       `json:"type"`
	WaID   string       `json:"wa_id,omitempty"`
	Offset int          `json:"offset,omitempty"`
	Limit  int          `json:"limit,omitempty"`
	Send   *SendRequest `json:"payload,omitempty"`
}

// SendRequest is the body of a send_message request.
type SendRequest struct {
	To      string          `json:"to"`
	Type    MessageType     `json:"message_type"`
	Payload json.RawMessage `json:"payload"`
}

// ConversationsEvent answers a conversations request.
type ConversationsEvent struct {
	Type          string                `json:"type"`
	Conversations []ConversationSummary `json:"conversations"`
}

// ContactEvent answers a get_contact request.
type ContactEvent struct {
	Type    string   `json:"type"`
	Contact *Contact `json:"contact"`
}

// MessagesEvent answers a get_messages request with one ascending page.
type MessagesEvent struct {
	Type     string    `json:"type"`
	WaID     string    `json:"wa_id"`
	Messages []Message `json:"messages"`
	Count    int       `json:"count"`
	Total    int       `json:"total"`
}

// MessageSentEvent answers a send_message request. Delivered is the hint
// for whether the provider accepted the message; the record is persisted
// either way.
type MessageSentEvent struct {
	Type      string   `json:"type"`
	WaID      string   `json:"wa_id"`
	Message   *Message `json:"message"`
	Delivered bool     `json:"delivered"`
}

// NewMessageEvent is pushed to every live session of an app when a message
// arrives or is mirrored from another session.
type NewMessageEvent struct {
	Type    string   `json:"type"`
	WaID    string   `json:"wa_id"`
	Message *Message `json:"message"`
}

// ConversationEvent is pushed alongside NewMessageEvent so inbox views
// update without polling.
type ConversationEvent struct {
	Type         string              `json:"type"`
	Conversation ConversationSummary `json:"conversation"`
}

// ErrorEvent is the structured failure answer; the socket stays open.
type ErrorEvent struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"error"`
}

// NewErrorEvent builds the wire error for err using the domain error code.
func NewErrorEvent(err error) ErrorEvent {
	return ErrorEvent{Type: EventError, Code: ErrorCode(err), Message: err.Error()}
}
