package assistant

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/Mayuresh-22/NimbusWave/internal/domain"
	"github.com/Mayuresh-22/NimbusWave/internal/repository"
)

type stubChatRepository struct {
	chats   map[string]domain.Chat
	updated []byte
}

func (s *stubChatRepository) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	if chat, ok := s.chats[chatID]; ok {
		return &chat, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubChatRepository) UpdateChatContext(ctx context.Context, chatID string, context []byte) error {
	s.updated = context
	return nil
}

type stubCompletion struct {
	reply *Reply
	err   error
	seen  []Turn
}

func (s *stubCompletion) Complete(ctx context.Context, turns []Turn) (*Reply, error) {
	s.seen = turns
	if s.err != nil {
		return nil, s.err
	}
	return s.reply, nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestChatAppendsBothTurns(t *testing.T) {
	prior := []Turn{
		{Role: "user", Content: "hi"},
		{Role: "assistant", Content: "What is your project name?"},
	}
	rawPrior, _ := json.Marshal(prior)
	chats := &stubChatRepository{chats: map[string]domain.Chat{
		"chat-1": {ID: "chat-1", Context: rawPrior},
	}}
	tool := "saveProjectName"
	value := "demo"
	completion := &stubCompletion{reply: &Reply{Message: "Saved. What framework?", Tool: &tool, Value: &value}}
	svc := New(chats, completion, discardLogger())

	reply, err := svc.Chat(context.Background(), "chat-1", "demo")
	if err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if reply.Tool == nil || *reply.Tool != "saveProjectName" {
		t.Fatalf("tool call lost: %+v", reply)
	}
	if len(completion.seen) != 3 {
		t.Fatalf("model saw %d turns, want prior 2 plus the new user turn", len(completion.seen))
	}

	var stored []Turn
	if err := json.Unmarshal(chats.updated, &stored); err != nil {
		t.Fatalf("stored context is not JSON: %v", err)
	}
	if len(stored) != 4 {
		t.Fatalf("stored %d turns, want 4", len(stored))
	}
	if stored[3].Role != "assistant" || stored[3].Content != "Saved. What framework?" {
		t.Fatalf("assistant turn not appended: %+v", stored[3])
	}
}

func TestChatUnknownChat(t *testing.T) {
	svc := New(&stubChatRepository{}, &stubCompletion{reply: &Reply{}}, discardLogger())
	if _, err := svc.Chat(context.Background(), "missing", "hi"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChatDiscardsCorruptContext(t *testing.T) {
	chats := &stubChatRepository{chats: map[string]domain.Chat{
		"chat-1": {ID: "chat-1", Context: json.RawMessage("not json")},
	}}
	completion := &stubCompletion{reply: &Reply{Message: "hello"}}
	svc := New(chats, completion, discardLogger())

	if _, err := svc.Chat(context.Background(), "chat-1", "hi"); err != nil {
		t.Fatalf("Chat returned error: %v", err)
	}
	if len(completion.seen) != 1 {
		t.Fatalf("model saw %d turns, want only the new user turn", len(completion.seen))
	}
}

func TestChatPropagatesCompletionFailure(t *testing.T) {
	chats := &stubChatRepository{chats: map[string]domain.Chat{
		"chat-1": {ID: "chat-1"},
	}}
	boom := errors.New("upstream down")
	svc := New(chats, &stubCompletion{err: boom}, discardLogger())

	if _, err := svc.Chat(context.Background(), "chat-1", "hi"); !errors.Is(err, boom) {
		t.Fatalf("expected completion error, got %v", err)
	}
	if chats.updated != nil {
		t.Fatal("context must not be saved when the model call fails")
	}
}
