package handler

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"cashly-copilot/internal/composer"
	"cashly-copilot/internal/model"
	"cashly-copilot/internal/service"
	"cashly-copilot/internal/storage"
	"cashly-copilot/pkg/logger"

	"github.com/gin-gonic/gin"
)

var errFileTooLarge = errors.New("file too large")

type ChatHandler struct {
	chatService    *service.ChatService
	maxUploadBytes int64
}

func NewChatHandler(chatService *service.ChatService, maxUploadBytes int64) *ChatHandler {
	return &ChatHandler{
		chatService:    chatService,
		maxUploadBytes: maxUploadBytes,
	}
}

// SendMessage handles one user turn. It accepts either a JSON body or a
// multipart form carrying session_id, message and any number of files.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	var (
		sessionID string
		text      string
		uploads   []composer.Upload
	)

	if c.ContentType() == gin.MIMEMultipartPOSTForm {
		sessionID = c.PostForm("session_id")
		text = c.PostForm("message")

		var status int
		var err error
		uploads, status, err = h.readUploads(c)
		if err != nil {
			c.JSON(status, gin.H{"error": err.Error()})
			return
		}
	} else {
		var req model.ChatRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		sessionID, text = req.SessionID, req.Message
	}

	if sessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "session_id is required"})
		return
	}

	logger.Debugf("Turn for session %s: %d chars, %d files", sessionID, len(text), len(uploads))

	turn, err := h.chatService.SendTurn(c.Request.Context(), sessionID, text, uploads)
	if err != nil {
		c.JSON(turnErrorStatus(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.ChatResponse{
		SessionID: sessionID,
		User:      turn.User,
		Reply:     turn.Reply,
		Timestamp: turn.Reply.Timestamp.Unix(),
	})
}

func (h *ChatHandler) readUploads(c *gin.Context) ([]composer.Upload, int, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, http.StatusBadRequest, err
	}

	headers := form.File["files"]
	uploads := make([]composer.Upload, 0, len(headers))
	for _, fh := range headers {
		if !composer.Allowed(fh.Filename) {
			return nil, http.StatusBadRequest, fmt.Errorf("unsupported file type: %s (only .pdf and .txt)", fh.Filename)
		}

		data, err := h.readFile(fh)
		if errors.Is(err, errFileTooLarge) {
			return nil, http.StatusRequestEntityTooLarge, fmt.Errorf("%s exceeds %d bytes", fh.Filename, h.maxUploadBytes)
		}
		if err != nil {
			return nil, http.StatusBadRequest, fmt.Errorf("read %s: %w", fh.Filename, err)
		}

		uploads = append(uploads, composer.Upload{
			Filename:    fh.Filename,
			ContentType: fh.Header.Get("Content-Type"),
			Data:        data,
		})
	}

	return uploads, http.StatusOK, nil
}

func (h *ChatHandler) readFile(fh *multipart.FileHeader) ([]byte, error) {
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return nil, errFileTooLarge
	}

	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return io.ReadAll(f)
}

func turnErrorStatus(err error) int {
	switch {
	case errors.Is(err, service.ErrEmptyTurn):
		return http.StatusBadRequest
	case errors.Is(err, storage.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTurnInProgress):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func (h *ChatHandler) CreateSession(c *gin.Context) {
	var req model.CreateSessionRequest
	// An empty body falls back to the default title.
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.chatService.CreateSession(req.Title)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, model.CreateSessionResponse{
		SessionResponse: toSessionResponse(session),
		Greeting:        service.Greeting,
	})
}

func (h *ChatHandler) GetSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	session, err := h.chatService.GetSession(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, toSessionResponse(session))
}

func (h *ChatHandler) GetMessages(c *gin.Context) {
	sessionID := c.Param("session_id")

	messages, err := h.chatService.GetSessionMessages(sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session_id": sessionID,
		"messages":   messages,
	})
}

func (h *ChatHandler) GetSessionList(c *gin.Context) {
	sessions, err := h.chatService.GetAllSessions()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	list := make([]model.SessionResponse, 0, len(sessions))
	for _, s := range sessions {
		list = append(list, toSessionResponse(s))
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": list,
	})
}

func (h *ChatHandler) DeleteSession(c *gin.Context) {
	sessionID := c.Param("session_id")

	if err := h.chatService.DeleteSession(sessionID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Session deleted successfully"})
}

func (h *ChatHandler) ClearAllSessions(c *gin.Context) {
	if err := h.chatService.ClearAllSessions(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "All sessions cleared successfully"})
}

func (h *ChatHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().Unix(),
	})
}

func toSessionResponse(s *model.Session) model.SessionResponse {
	return model.SessionResponse{
		SessionID:    s.ID,
		Title:        s.Title,
		CreatedAt:    s.CreatedAt,
		UpdatedAt:    s.UpdatedAt,
		MessageCount: len(s.Messages),
	}
}
