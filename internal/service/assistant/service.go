package assistant

import (
	"context"
	"encoding/json"
	"fmt"

	"log/slog"

	"github.com/Mayuresh-22/NimbusWave/internal/repository"
)

// Service runs chat turns against the completion client and persists the
// growing transcript on the chat row.
type Service struct {
	chats  repository.ChatRepository
	client CompletionClient
	logger *slog.Logger
}

// New returns an assistant service.
func New(chats repository.ChatRepository, client CompletionClient, logger *slog.Logger) Service {
	return Service{chats: chats, client: client, logger: logger}
}

// Chat appends the user's message to the stored transcript, asks the model
// for a reply, and saves both turns before returning.
func (s Service) Chat(ctx context.Context, chatID, message string) (*Reply, error) {
	chat, err := s.chats.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}

	var transcript []Turn
	if len(chat.Context) > 0 {
		if err := json.Unmarshal(chat.Context, &transcript); err != nil {
			s.logger.Warn("discarding unreadable chat context", "chat_id", chatID, "error", err)
			transcript = nil
		}
	}

	turns := append(append([]Turn{}, transcript...), Turn{Role: "user", Content: message})
	reply, err := s.client.Complete(ctx, turns)
	if err != nil {
		return nil, err
	}

	updated := append(turns, Turn{Role: "assistant", Content: reply.Message})
	raw, err := json.Marshal(updated)
	if err != nil {
		return nil, fmt.Errorf("assistant: marshal chat context: %w", err)
	}
	if err := s.chats.UpdateChatContext(ctx, chatID, raw); err != nil {
		return nil, err
	}
	return reply, nil
}
