package storage

import (
	"cashly-copilot/internal/model"
)

type Storage interface {
	// Sessions
	CreateSession(session *model.Session) error
	GetSession(sessionID string) (*model.Session, error)
	UpdateSession(session *model.Session) error
	DeleteSession(sessionID string) error
	ListSessions() ([]*model.Session, error)

	// Messages are append-only.
	AddMessage(sessionID string, message *model.Message) error
	GetMessages(sessionID string) ([]*model.Message, error)

	Init() error
	Close() error
}
