package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"cashly-copilot/internal/composer"
	"cashly-copilot/internal/config"
	"cashly-copilot/internal/gateway"
	"cashly-copilot/internal/model"
	"cashly-copilot/internal/storage"
)

type fakeGateway struct {
	mu       sync.Mutex
	requests []model.AgentRequest
	result   gateway.Result
	block    chan struct{}
	entered  chan struct{}
}

func (f *fakeGateway) Send(ctx context.Context, req model.AgentRequest) gateway.Result {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	return f.result
}

func (f *fakeGateway) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestService(t *testing.T, gw Gateway) *ChatService {
	t.Helper()
	cs := NewChatService(&config.Config{}, gw, composer.New(nil))
	t.Cleanup(func() { cs.Close() })
	return cs
}

func TestSendTurnAppendsUserAndReply(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{Text: "## Plan- save 1. more", Kind: gateway.KindOK, StatusCode: 200}}
	cs := newTestService(t, gw)

	session, err := cs.CreateSession("")
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}

	turn, err := cs.SendTurn(context.Background(), session.ID, "  how do I budget?  ", []composer.Upload{
		{Filename: "notes.txt", Data: []byte("abc")},
	})
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}

	if gw.calls() != 1 {
		t.Fatalf("expected exactly one webhook call, got %d", gw.calls())
	}
	if got := gw.requests[0].Message; got != "how do I budget?" {
		t.Errorf("request message = %q", got)
	}
	if got := gw.requests[0].Files[0].Content; got != "abc" {
		t.Errorf("request file content = %q", got)
	}

	if want := "\n\n## Plan\n- save \n1. more"; turn.Reply.Content != want {
		t.Errorf("reply = %q, want %q", turn.Reply.Content, want)
	}
	if turn.Reply.Kind != string(gateway.KindOK) {
		t.Errorf("reply kind = %q", turn.Reply.Kind)
	}

	msgs, err := cs.GetSessionMessages(session.ID)
	if err != nil {
		t.Fatalf("GetSessionMessages: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(msgs))
	}
	if msgs[0].Role != model.RoleUser || msgs[1].Role != model.RoleAssistant {
		t.Errorf("unexpected roles: %s, %s", msgs[0].Role, msgs[1].Role)
	}
	if len(msgs[0].Attachments) != 1 || msgs[0].Attachments[0].Filename != "notes.txt" {
		t.Errorf("attachments not logged: %+v", msgs[0].Attachments)
	}
	if msgs[0].ID == "" || msgs[0].ID == msgs[1].ID {
		t.Errorf("message ids not assigned: %q %q", msgs[0].ID, msgs[1].ID)
	}
}

func TestSendTurnFailureBecomesReply(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{
		Text:       "Error: Webhook returned status code 500",
		Kind:       gateway.KindStatus,
		StatusCode: 500,
		Err:        errors.New("webhook status 500"),
	}}
	cs := newTestService(t, gw)
	session, _ := cs.CreateSession("")

	turn, err := cs.SendTurn(context.Background(), session.ID, "hi - there", nil)
	if err != nil {
		t.Fatalf("SendTurn returned error for webhook failure: %v", err)
	}
	if turn.Reply.Content != "Error: Webhook returned status code 500" {
		t.Errorf("error text was altered: %q", turn.Reply.Content)
	}
	if turn.Reply.Kind != string(gateway.KindStatus) {
		t.Errorf("kind = %q", turn.Reply.Kind)
	}

	// A failed turn does not affect the next one.
	gw.result = gateway.Result{Text: "fine", Kind: gateway.KindOK}
	turn, err = cs.SendTurn(context.Background(), session.ID, "again", nil)
	if err != nil || turn.Reply.Content != "fine" {
		t.Errorf("second turn = %+v, %v", turn, err)
	}

	msgs, _ := cs.GetSessionMessages(session.ID)
	if len(msgs) != 4 {
		t.Errorf("expected 4 messages, got %d", len(msgs))
	}
}

func TestSendTurnRejects(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{Text: "x", Kind: gateway.KindOK}}
	cs := newTestService(t, gw)
	session, _ := cs.CreateSession("")

	if _, err := cs.SendTurn(context.Background(), session.ID, "   ", nil); !errors.Is(err, ErrEmptyTurn) {
		t.Errorf("empty turn: err = %v", err)
	}
	if _, err := cs.SendTurn(context.Background(), "missing", "hi", nil); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("unknown session: err = %v", err)
	}
	if gw.calls() != 0 {
		t.Errorf("rejected turns reached the webhook %d times", gw.calls())
	}
}

func TestSendTurnAttachmentOnly(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{Text: "read it", Kind: gateway.KindOK}}
	cs := newTestService(t, gw)
	session, _ := cs.CreateSession("")

	_, err := cs.SendTurn(context.Background(), session.ID, "", []composer.Upload{{Filename: "statement.pdf"}})
	if err != nil {
		t.Fatalf("SendTurn: %v", err)
	}
	if got := gw.requests[0].Files[0].Content; got != composer.PDFPlaceholder("statement.pdf") {
		t.Errorf("pdf content = %q", got)
	}

	got, _ := cs.GetSession(session.ID)
	if got.Title != "statement.pdf" {
		t.Errorf("title = %q", got.Title)
	}
}

func TestSendTurnInProgress(t *testing.T) {
	gw := &fakeGateway{
		result:  gateway.Result{Text: "done", Kind: gateway.KindOK},
		block:   make(chan struct{}),
		entered: make(chan struct{}, 1),
	}
	cs := newTestService(t, gw)
	session, _ := cs.CreateSession("")
	other, _ := cs.CreateSession("")

	errc := make(chan error, 1)
	go func() {
		_, err := cs.SendTurn(context.Background(), session.ID, "first", nil)
		errc <- err
	}()
	<-gw.entered

	if _, err := cs.SendTurn(context.Background(), session.ID, "second", nil); !errors.Is(err, ErrTurnInProgress) {
		t.Errorf("concurrent turn: err = %v", err)
	}

	// Other sessions are independent. Release both blocked calls once
	// the second one has reached the webhook.
	go func() {
		<-gw.entered
		gw.block <- struct{}{}
		gw.block <- struct{}{}
	}()
	if _, err := cs.SendTurn(context.Background(), other.ID, "elsewhere", nil); err != nil {
		t.Errorf("other session blocked: %v", err)
	}

	if err := <-errc; err != nil {
		t.Fatalf("first turn: %v", err)
	}

	gw.block, gw.entered = nil, nil
	if _, err := cs.SendTurn(context.Background(), session.ID, "third", nil); err != nil {
		t.Fatalf("turn after release: %v", err)
	}
}

func TestRetitleOnFirstMessage(t *testing.T) {
	gw := &fakeGateway{result: gateway.Result{Text: "ok", Kind: gateway.KindOK}}
	cs := newTestService(t, gw)

	session, _ := cs.CreateSession("")
	if session.Title != DefaultTitle {
		t.Fatalf("default title = %q", session.Title)
	}

	long := strings.Repeat("ab", 20)
	cs.SendTurn(context.Background(), session.ID, long, nil)
	got, _ := cs.GetSession(session.ID)
	if want := long[:30] + "..."; got.Title != want {
		t.Errorf("title = %q, want %q", got.Title, want)
	}

	cs.SendTurn(context.Background(), session.ID, "second message", nil)
	got, _ = cs.GetSession(session.ID)
	if got.Title != long[:30]+"..." {
		t.Errorf("title changed on second message: %q", got.Title)
	}

	named, _ := cs.CreateSession("Taxes")
	cs.SendTurn(context.Background(), named.ID, "hello", nil)
	got, _ = cs.GetSession(named.ID)
	if got.Title != "Taxes" {
		t.Errorf("custom title replaced: %q", got.Title)
	}
}

// pausingStorage holds the first armed GetSession caller until resume is closed.
type pausingStorage struct {
	storage.Storage
	armed  atomic.Bool
	paused chan struct{}
	resume chan struct{}
}

func (p *pausingStorage) GetSession(id string) (*model.Session, error) {
	s, err := p.Storage.GetSession(id)
	if p.armed.CompareAndSwap(true, false) {
		close(p.paused)
		<-p.resume
	}
	return s, err
}

func TestRetitleSeesTurnThatFinishedFirst(t *testing.T) {
	cs := newTestService(t, &fakeGateway{result: gateway.Result{Text: "ok", Kind: gateway.KindOK}})
	ps := &pausingStorage{Storage: cs.storage, paused: make(chan struct{}), resume: make(chan struct{})}
	cs.storage = ps

	session, _ := cs.CreateSession("")

	ps.armed.Store(true)
	done := make(chan error, 1)
	go func() {
		_, err := cs.SendTurn(context.Background(), session.ID, "second message", nil)
		done <- err
	}()
	<-ps.paused

	if _, err := cs.SendTurn(context.Background(), session.ID, "first message", nil); err != nil {
		t.Fatalf("first turn: %v", err)
	}
	close(ps.resume)
	if err := <-done; err != nil {
		t.Fatalf("second turn: %v", err)
	}

	got, _ := cs.GetSession(session.ID)
	if got.Title != "first message" {
		t.Errorf("title = %q, want %q", got.Title, "first message")
	}
}

func TestDeleteAndClearSessions(t *testing.T) {
	cs := newTestService(t, &fakeGateway{})

	a, _ := cs.CreateSession("a")
	cs.CreateSession("b")

	if err := cs.DeleteSession(a.ID); err != nil {
		t.Fatalf("DeleteSession: %v", err)
	}
	if err := cs.DeleteSession(a.ID); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("second delete: err = %v", err)
	}
	if _, err := cs.GetSessionMessages(a.ID); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("messages of ended session: err = %v", err)
	}

	if err := cs.ClearAllSessions(); err != nil {
		t.Fatalf("ClearAllSessions: %v", err)
	}
	sessions, _ := cs.GetAllSessions()
	if len(sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(sessions))
	}
}

func TestCleanupExpired(t *testing.T) {
	cs := newTestService(t, &fakeGateway{})
	cs.config.TTL = time.Hour

	base := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	cs.now = func() time.Time { return base }
	stale, _ := cs.CreateSession("stale")

	cs.now = func() time.Time { return base.Add(90 * time.Minute) }
	fresh, _ := cs.CreateSession("fresh")

	if removed := cs.cleanupExpired(); removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := cs.GetSession(stale.ID); !errors.Is(err, storage.ErrSessionNotFound) {
		t.Errorf("stale session survived: %v", err)
	}
	if _, err := cs.GetSession(fresh.ID); err != nil {
		t.Errorf("fresh session removed: %v", err)
	}
}

func TestTruncateString(t *testing.T) {
	if got := truncateString("héllo", 10); got != "héllo" {
		t.Errorf("short string changed: %q", got)
	}
	if got := truncateString("héllo wörld", 5); got != "héllo..." {
		t.Errorf("got %q", got)
	}
}
