package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"cashly-copilot/internal/composer"
	"cashly-copilot/internal/config"
	"cashly-copilot/internal/formatter"
	"cashly-copilot/internal/gateway"
	"cashly-copilot/internal/model"
	"cashly-copilot/internal/storage"
	"cashly-copilot/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultTitle = "New chat"
	Greeting     = "Welcome to Cashly Copilot! How can I assist you today?"

	titleRunes = 30
)

var (
	ErrEmptyTurn      = errors.New("message or attachment required")
	ErrTurnInProgress = errors.New("a turn is already in progress for this session")
)

// Gateway is the webhook side of a turn.
type Gateway interface {
	Send(ctx context.Context, req model.AgentRequest) gateway.Result
}

// Turn is the outcome of one user message: the message as logged, the
// assistant reply as logged and the raw gateway result behind it.
type Turn struct {
	User   model.Message
	Reply  model.Message
	Result gateway.Result
}

type ChatService struct {
	storage  storage.Storage
	gateway  Gateway
	composer *composer.Composer
	config   config.SessionConfig

	mu       sync.Mutex
	inFlight map[string]struct{}

	stop     chan struct{}
	stopOnce sync.Once
	now      func() time.Time
}

func NewChatService(cfg *config.Config, gw Gateway, comp *composer.Composer) *ChatService {
	store := storage.NewMemoryStorage()
	if err := store.Init(); err != nil {
		logger.Errorf("Failed to initialize storage: %v", err)
	}

	if comp == nil {
		comp = composer.Default()
	}

	cs := &ChatService{
		storage:  store,
		gateway:  gw,
		composer: comp,
		config:   cfg.Session,
		inFlight: make(map[string]struct{}),
		stop:     make(chan struct{}),
		now:      time.Now,
	}

	if cs.config.TTL > 0 && cs.config.CleanupInterval > 0 {
		go cs.cleanupLoop()
	}

	return cs
}

// Close stops the idle-session janitor and drops every session.
func (s *ChatService) Close() error {
	s.stopOnce.Do(func() { close(s.stop) })
	return s.storage.Close()
}

func (s *ChatService) CreateSession(title string) (*model.Session, error) {
	if strings.TrimSpace(title) == "" {
		title = DefaultTitle
	}

	now := s.now()
	session := &model.Session{
		ID:        uuid.New().String(),
		Title:     title,
		Messages:  make([]model.Message, 0),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.storage.CreateSession(session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	logger.WithFields(logger.Fields{"session_id": session.ID}).Info("Session started")
	return session, nil
}

func (s *ChatService) GetSession(sessionID string) (*model.Session, error) {
	session, err := s.storage.GetSession(sessionID)
	if err != nil {
		return nil, fmt.Errorf("get session %s: %w", sessionID, err)
	}
	return session, nil
}

func (s *ChatService) GetSessionMessages(sessionID string) ([]model.Message, error) {
	messages, err := s.storage.GetMessages(sessionID)
	if err != nil {
		return nil, fmt.Errorf("get messages %s: %w", sessionID, err)
	}

	result := make([]model.Message, len(messages))
	for i, msg := range messages {
		result[i] = *msg
	}
	return result, nil
}

func (s *ChatService) GetAllSessions() ([]*model.Session, error) {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteSession ends a session and discards its log.
func (s *ChatService) DeleteSession(sessionID string) error {
	if err := s.storage.DeleteSession(sessionID); err != nil {
		return fmt.Errorf("delete session %s: %w", sessionID, err)
	}
	logger.WithFields(logger.Fields{"session_id": sessionID}).Info("Session ended")
	return nil
}

func (s *ChatService) ClearAllSessions() error {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		return fmt.Errorf("failed to list sessions: %w", err)
	}

	for _, session := range sessions {
		if err := s.storage.DeleteSession(session.ID); err != nil && !errors.Is(err, storage.ErrSessionNotFound) {
			logger.Errorf("Failed to delete session %s: %v", session.ID, err)
		}
	}
	return nil
}

// SendTurn runs one user turn: log the user message, make exactly one
// webhook call, log exactly one assistant reply. Webhook failures are
// not errors here; they come back as the reply text with a non-ok kind.
func (s *ChatService) SendTurn(ctx context.Context, sessionID, text string, uploads []composer.Upload) (*Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" && len(uploads) == 0 {
		return nil, ErrEmptyTurn
	}

	if _, err := s.GetSession(sessionID); err != nil {
		return nil, err
	}

	if !s.beginTurn(sessionID) {
		return nil, ErrTurnInProgress
	}
	defer s.endTurn(sessionID)

	// Read under the turn lock so the retitle check sees every prior turn.
	session, err := s.GetSession(sessionID)
	if err != nil {
		return nil, err
	}

	req, refs := s.composer.Compose(text, uploads)

	userMsg := model.Message{
		Role:        model.RoleUser,
		Content:     text,
		Attachments: refs,
	}
	if err := s.addMessage(sessionID, &userMsg); err != nil {
		return nil, err
	}
	s.retitle(session, userMsg)

	res := s.gateway.Send(ctx, req)

	content := res.Text
	if res.OK() {
		content = formatter.Format(content)
	} else {
		logger.WithFields(logger.Fields{
			"session_id": sessionID,
			"kind":       res.Kind,
			"status":     res.StatusCode,
		}).Warnf("Webhook turn failed: %v", res.Err)
	}

	reply := model.Message{
		Role:    model.RoleAssistant,
		Content: content,
		Kind:    string(res.Kind),
	}
	if err := s.addMessage(sessionID, &reply); err != nil {
		return nil, err
	}

	return &Turn{User: userMsg, Reply: reply, Result: res}, nil
}

func (s *ChatService) addMessage(sessionID string, msg *model.Message) error {
	msg.ID = uuid.New().String()
	msg.SessionID = sessionID
	msg.Timestamp = s.now()

	if err := s.storage.AddMessage(sessionID, msg); err != nil {
		return fmt.Errorf("add message to %s: %w", sessionID, err)
	}
	return nil
}

// retitle names a default-titled session after its first user message.
func (s *ChatService) retitle(session *model.Session, first model.Message) {
	if session.Title != DefaultTitle || len(session.Messages) > 0 {
		return
	}

	title := first.Content
	if title == "" && len(first.Attachments) > 0 {
		title = first.Attachments[0].Filename
	}
	session.Title = truncateString(title, titleRunes)
	session.UpdatedAt = s.now()

	if err := s.storage.UpdateSession(session); err != nil {
		logger.Warnf("Failed to retitle session %s: %v", session.ID, err)
	}
}

func (s *ChatService) beginTurn(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, busy := s.inFlight[sessionID]; busy {
		return false
	}
	s.inFlight[sessionID] = struct{}{}
	return true
}

func (s *ChatService) endTurn(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, sessionID)
}

func (s *ChatService) busy(sessionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inFlight[sessionID]
	return ok
}

func (s *ChatService) cleanupLoop() {
	ticker := time.NewTicker(s.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.cleanupExpired()
		case <-s.stop:
			return
		}
	}
}

// cleanupExpired ends every session idle for longer than the TTL and
// returns how many were removed.
func (s *ChatService) cleanupExpired() int {
	sessions, err := s.storage.ListSessions()
	if err != nil {
		logger.Errorf("Failed to list sessions for cleanup: %v", err)
		return 0
	}

	removed := 0
	cutoff := s.now().Add(-s.config.TTL)
	for _, session := range sessions {
		if !session.UpdatedAt.Before(cutoff) || s.busy(session.ID) {
			continue
		}
		if err := s.storage.DeleteSession(session.ID); err != nil {
			logger.Errorf("Failed to delete expired session %s: %v", session.ID, err)
			continue
		}
		removed++
		logger.Infof("Cleaned up expired session: %s", session.ID)
	}
	return removed
}

func truncateString(str string, maxLen int) string {
	runes := []rune(str)
	if len(runes) <= maxLen {
		return str
	}
	return string(runes[:maxLen]) + "..."
}
