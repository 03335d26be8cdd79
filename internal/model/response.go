package model

import "time"

type ChatResponse struct {
	SessionID string  `json:"session_id"`
	User      Message `json:"user"`
	Reply     Message `json:"reply"`
	Timestamp int64   `json:"timestamp"`
}

type SessionResponse struct {
	SessionID    string    `json:"session_id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

type CreateSessionResponse struct {
	SessionResponse
	Greeting string `json:"greeting"`
}
