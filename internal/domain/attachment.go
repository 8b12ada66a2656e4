package domain

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// AttachmentKind tags the Attachment variant.
type AttachmentKind string

const (
	AttachmentLink AttachmentKind = "link"
	AttachmentFile AttachmentKind = "file"
)

// Attachment is either a link (URL) or an inline file. Only the fields of its
// own variant are populated. AddedAt is set on deliveries only.
type Attachment struct {
	Kind     AttachmentKind `json:"type"`
	URL      string         `json:"url,omitempty"`
	Filename string         `json:"filename,omitempty"`
	MimeType string         `json:"mime_type,omitempty"`
	Payload  []byte         `json:"file_data,omitempty"`
	AddedAt  *time.Time     `json:"added_at,omitempty"`
}

// Upload is a named binary received from a client.
type Upload struct {
	Filename string
	MimeType string
	Payload  []byte
}

// NewLinkAttachment builds a link variant.
func NewLinkAttachment(url string) (Attachment, error) {
	a := Attachment{Kind: AttachmentLink, URL: url}
	return a, a.Validate()
}

// NewFileAttachment builds a file variant. A nil payload is stored as empty.
func NewFileAttachment(filename, mimeType string, payload []byte) (Attachment, error) {
	if payload == nil {
		payload = []byte{}
	}
	a := Attachment{Kind: AttachmentFile, Filename: filename, MimeType: mimeType, Payload: payload}
	return a, a.Validate()
}

// Validate enforces the per-variant required fields.
func (a Attachment) Validate() error {
	switch a.Kind {
	case AttachmentLink:
		if strings.TrimSpace(a.URL) == "" {
			return fmt.Errorf("%w: link attachment requires url", ErrValidation)
		}
	case AttachmentFile:
		if strings.TrimSpace(a.Filename) == "" {
			return fmt.Errorf("%w: file attachment requires filename", ErrValidation)
		}
	default:
		return fmt.Errorf("%w: unknown attachment type %q", ErrValidation, a.Kind)
	}
	return nil
}

// IsImage reports whether the attachment is a file with an image media type.
func (a Attachment) IsImage() bool {
	return a.Kind == AttachmentFile && strings.HasPrefix(a.MimeType, "image/") && len(a.Payload) > 0
}

// Label renders the attachment as it appears in listings.
func (a Attachment) Label() string {
	if a.Kind == AttachmentLink {
		return "Link: " + a.URL
	}
	return "Arquivo: " + a.Filename
}

// UnmarshalJSON rejects stored attachments that do not form a valid variant.
func (a *Attachment) UnmarshalJSON(data []byte) error {
	type plain Attachment
	var decoded plain
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	candidate := Attachment(decoded)
	if err := candidate.Validate(); err != nil {
		return err
	}
	*a = candidate
	return nil
}

// ParseLinks splits a comma separated list, trimming each entry and dropping
// empty ones.
func ParseLinks(raw string) []Attachment {
	var out []Attachment
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, Attachment{Kind: AttachmentLink, URL: part})
	}
	return out
}

// BuildAttachments returns the links from raw followed by the named uploads,
// each group in input order. Uploads without a name are dropped. The result is
// nil when nothing survives.
func BuildAttachments(rawLinks string, uploads []Upload) []Attachment {
	out := ParseLinks(rawLinks)
	for _, u := range uploads {
		if strings.TrimSpace(u.Filename) == "" {
			continue
		}
		file, err := NewFileAttachment(u.Filename, u.MimeType, u.Payload)
		if err != nil {
			continue
		}
		out = append(out, file)
	}
	return NormalizeAttachments(out)
}

// StampAdded sets AddedAt on every item to the same instant.
func StampAdded(items []Attachment, at time.Time) {
	for i := range items {
		stamp := at
		items[i].AddedAt = &stamp
	}
}

// NormalizeAttachments maps an empty sequence to nil, the single in-memory
// form of "no attachments".
func NormalizeAttachments(items []Attachment) []Attachment {
	if len(items) == 0 {
		return nil
	}
	return items
}

// CloneAttachments copies the slice and every payload.
func CloneAttachments(items []Attachment) []Attachment {
	if len(items) == 0 {
		return nil
	}
	out := make([]Attachment, len(items))
	for i, item := range items {
		out[i] = item
		if item.Payload != nil {
			out[i].Payload = append([]byte(nil), item.Payload...)
		}
		if item.AddedAt != nil {
			at := *item.AddedAt
			out[i].AddedAt = &at
		}
	}
	return out
}
