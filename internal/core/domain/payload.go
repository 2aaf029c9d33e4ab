package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
)

// Payload is one validated, type-specific message body. Construct via
// ParsePayload; a Payload that exists has already passed Validate.
type Payload interface {
	Validate() error
}

// TextPayload carries a plain text body.
type TextPayload struct {
	Body string `json:"body"`
}

func (p TextPayload) Validate() error {
	if p.Body == "" {
		return fmt.Errorf("%w: text requires body", ErrInvalidPayload)
	}
	return nil
}

// MediaPayload carries a hosted media reference for image, video, audio,
// document and sticker messages.
type MediaPayload struct {
	URL      string `json:"url"`
	Caption  string `json:"caption,omitempty"`
	MimeType string `json:"mime_type,omitempty"`
}

func (p MediaPayload) Validate() error {
	if p.URL == "" {
		return fmt.Errorf("%w: media requires url", ErrInvalidPayload)
	}
	u, err := url.ParseRequestURI(p.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%w: media url %q is not reachable", ErrInvalidPayload, p.URL)
	}
	return nil
}

// LocationPayload carries a shared geographic position. Coordinates are
// pointers so an absent field is distinguishable from 0,0.
type LocationPayload struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
	Name      string   `json:"name,omitempty"`
	Address   string   `json:"address,omitempty"`
}

func (p LocationPayload) Validate() error {
	if p.Latitude == nil || p.Longitude == nil {
		return fmt.Errorf("%w: location requires latitude and longitude", ErrInvalidPayload)
	}
	if *p.Latitude < -90 || *p.Latitude > 90 || *p.Longitude < -180 || *p.Longitude > 180 {
		return fmt.Errorf("%w: location coordinates out of range", ErrInvalidPayload)
	}
	return nil
}

// ContactCardPayload carries a shared contact card.
type ContactCardPayload struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (p ContactCardPayload) Validate() error {
	if p.Name == "" || p.Phone == "" {
		return fmt.Errorf("%w: contact card requires name and phone", ErrInvalidPayload)
	}
	return nil
}

// ParsePayload decodes raw JSON into the variant declared by t and
// validates it. Unknown types and shape mismatches yield ErrInvalidPayload.
func ParsePayload(t MessageType, raw json.RawMessage) (Payload, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", ErrInvalidPayload)
	}
	var p Payload
	switch t {
	case TypeText:
		p = &TextPayload{}
	case TypeImage, TypeVideo, TypeAudio, TypeDocument, TypeSticker:
		p = &MediaPayload{}
	case TypeLocation:
		p = &LocationPayload{}
	case TypeContacts:
		p = &ContactCardPayload{}
	default:
		return nil, fmt.Errorf("%w: unsupported message type %q", ErrInvalidPayload, t)
	}
	if err := json.Unmarshal(raw, p); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return p, nil
}
