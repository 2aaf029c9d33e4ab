package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Direction marks which way a message travelled relative to the business.
type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Status follows the provider delivery lifecycle. Transitions are monotonic:
// sent -> delivered -> read, and sent -> failed (terminal).
type Status string

const (
	StatusSent      Status = "sent"
	StatusDelivered Status = "delivered"
	StatusRead      Status = "read"
	StatusFailed    Status = "failed"
)

var statusRank = map[Status]int{
	StatusSent:      0,
	StatusDelivered: 1,
	StatusRead:      2,
}

// CanTransition reports whether moving from s to next is a legal status change.
func (s Status) CanTransition(next Status) bool {
	if s == StatusFailed || next == s {
		return false
	}
	if next == StatusFailed {
		return s == StatusSent
	}
	from, ok := statusRank[s]
	if !ok {
		return false
	}
	to, ok := statusRank[next]
	if !ok {
		return false
	}
	return to > from
}

type MessageType string

const (
	TypeText     MessageType = "text"
	TypeImage    MessageType = "image"
	TypeVideo    MessageType = "video"
	TypeAudio    MessageType = "audio"
	TypeDocument MessageType = "document"
	TypeSticker  MessageType = "sticker"
	TypeLocation MessageType = "location"
	TypeContacts MessageType = "contacts"
)

// App is one tenant: a business account bound to a WhatsApp number.
type App struct {
	ID             uuid.UUID `json:"id"`
	BusinessName   string    `json:"business_name"`
	WhatsappNumber string    `json:"whatsapp_number"`
	Active         bool      `json:"is_active"`
	Verified       bool      `json:"is_whatsapp_verified"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Contact is one end user of a tenant, keyed externally by wa_id
// (country code + mobile number).
type Contact struct {
	ID           uuid.UUID  `json:"id"`
	AppID        uuid.UUID  `json:"app_id"`
	WaID         string     `json:"wa_id"`
	CountryCode  string     `json:"country_code"`
	MobileNumber string     `json:"mobile_number"`
	Name         string     `json:"name"`
	ProfileName  string     `json:"profile_name"`
	Source       string     `json:"source,omitempty"`
	Active       bool       `json:"is_active"`
	LastActiveAt *time.Time `json:"last_active_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// Tag is a tenant-scoped label assignable to contacts.
type Tag struct {
	ID        uuid.UUID `json:"id"`
	AppID     uuid.UUID `json:"app_id"`
	Name      string    `json:"name"`
	Enabled   bool      `json:"status"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one persisted inbound or outbound message. Payload holds the
// type-specific body as validated JSON (see ParsePayload).
type Message struct {
	ID         uuid.UUID       `json:"id"`
	AppID      uuid.UUID       `json:"app_id"`
	ContactID  uuid.UUID       `json:"contact_id"`
	FromNumber string          `json:"from_number"`
	ToNumber   string          `json:"to_number"`
	Type       MessageType     `json:"message_type"`
	Payload    json.RawMessage `json:"payload"`
	Direction  Direction       `json:"direction"`
	Status     Status          `json:"status"`
	SentAt     *time.Time      `json:"sent_at,omitempty"`
	ReceivedAt *time.Time      `json:"received_at,omitempty"`
	ReadAt     *time.Time      `json:"read_at,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// ConversationSummary is one row of the inbox view: the most recent message
// per contact, newest conversation first.
type ConversationSummary struct {
	WaID            string      `json:"wa_id"`
	ContactName     string      `json:"contact_name"`
	LastMessageType MessageType `json:"last_message_type"`
	LastMessageAt   time.Time   `json:"last_message_time"`
	Online          bool        `json:"online"`
}

// NormalizedEvent is the internal form of one inbound provider webhook:
// who sent it, which business number it was sent to, and the message body.
type NormalizedEvent struct {
	SenderWaID    string
	SenderName    string
	DisplayNumber string
	MessageType   MessageType
	Payload       json.RawMessage
	Timestamp     time.Time
}
