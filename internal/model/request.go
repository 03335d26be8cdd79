package model

// AgentFile is one attachment as the webhook receives it.
type AgentFile struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Content     string `json:"content"`
}

// AgentRequest is the body POSTed to the webhook. Files is dropped from
// the wire form when empty; the backend tells the two shapes apart.
type AgentRequest struct {
	Message string      `json:"message"`
	Files   []AgentFile `json:"files,omitempty"`
}

type ChatRequest struct {
	Message   string `json:"message"`
	SessionID string `json:"session_id" binding:"required"`
}

type CreateSessionRequest struct {
	Title string `json:"title"`
}
