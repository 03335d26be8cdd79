package model

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// AttachmentRef is derived once when a file is uploaded and never changes.
type AttachmentRef struct {
	Filename      string `json:"filename"`
	ContentType   string `json:"content_type"`
	ExtractedText string `json:"extracted_text"`
}

type Message struct {
	ID          string          `json:"id"`
	SessionID   string          `json:"session_id"`
	Role        string          `json:"role"`
	Content     string          `json:"content"`
	Attachments []AttachmentRef `json:"attachments,omitempty"`
	Kind        string          `json:"kind,omitempty"` // assistant only: ok, transport, status, malformed
	Timestamp   time.Time       `json:"timestamp"`
}

type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Clone returns a copy that shares no slices with s.
func (s *Session) Clone() *Session {
	c := *s
	c.Messages = make([]Message, len(s.Messages))
	for i, m := range s.Messages {
		c.Messages[i] = m
		if m.Attachments != nil {
			c.Messages[i].Attachments = append([]AttachmentRef(nil), m.Attachments...)
		}
	}
	return &c
}
