package storage

import (
	"sort"
	"sync"

	"cashly-copilot/internal/model"
)

// MemoryStorage keeps every session in process memory. Nothing survives a
// restart. Callers always receive copies, so a returned session can be
// mutated freely and written back with UpdateSession.
type MemoryStorage struct {
	sessions map[string]*model.Session
	mu       sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sessions: make(map[string]*model.Session),
	}
}

func (m *MemoryStorage) Init() error {
	return nil
}

func (m *MemoryStorage) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions = make(map[string]*model.Session)
	return nil
}

func (m *MemoryStorage) CreateSession(session *model.Session) error {
	if session == nil || session.ID == "" {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[session.ID]; exists {
		return ErrSessionExists
	}

	m.sessions[session.ID] = session.Clone()
	return nil
}

func (m *MemoryStorage) GetSession(sessionID string) (*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	return session.Clone(), nil
}

// UpdateSession replaces the session metadata. The stored message log is
// kept as is; messages only ever change through AddMessage.
func (m *MemoryStorage) UpdateSession(session *model.Session) error {
	if session == nil {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	current, exists := m.sessions[session.ID]
	if !exists {
		return ErrSessionNotFound
	}

	current.Title = session.Title
	current.UpdatedAt = session.UpdatedAt
	return nil
}

func (m *MemoryStorage) DeleteSession(sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[sessionID]; !exists {
		return ErrSessionNotFound
	}

	delete(m.sessions, sessionID)
	return nil
}

// ListSessions returns sessions most recently updated first.
func (m *MemoryStorage) ListSessions() ([]*model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sessions := make([]*model.Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		sessions = append(sessions, session.Clone())
	}

	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})

	return sessions, nil
}

func (m *MemoryStorage) AddMessage(sessionID string, message *model.Message) error {
	if message == nil {
		return ErrInvalidData
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return ErrSessionNotFound
	}

	msg := *message
	if msg.Attachments != nil {
		msg.Attachments = append([]model.AttachmentRef(nil), msg.Attachments...)
	}
	session.Messages = append(session.Messages, msg)
	if msg.Timestamp.After(session.UpdatedAt) {
		session.UpdatedAt = msg.Timestamp
	}
	return nil
}

func (m *MemoryStorage) GetMessages(sessionID string) ([]*model.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, ErrSessionNotFound
	}

	messages := make([]*model.Message, len(session.Messages))
	for i := range session.Messages {
		msg := session.Messages[i]
		messages[i] = &msg
	}

	return messages, nil
}
