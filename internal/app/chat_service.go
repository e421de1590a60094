package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"
	"unicode/utf8"

	"gemmachat/internal/ai"
	"gemmachat/internal/model"
)

var (
	ErrMessageEmpty = errors.New("message cannot be empty")
	ErrBadEncoding  = errors.New("invalid character encoding in request")
)

// ModelClient is the opaque backend capability: a finished string, or a
// forward-only sequence of deltas ending in a terminal chunk.
type ModelClient interface {
	Complete(ctx context.Context, message, systemPrompt string) (string, error)
	Stream(ctx context.Context, message, systemPrompt string, onChunk func(ai.StreamChunk) error) error
}

type UsagePublisher interface {
	Publish(ctx context.Context, event model.UsageEvent) error
}

// ChatService validates chat requests and dispatches them to the model
// backend. It holds no per-request state; authentication happens before it
// and the streaming relay after it touch nothing it owns.
type ChatService struct {
	modelClient ModelClient
	publisher   UsagePublisher
}

func NewChatService(modelClient ModelClient, publisher UsagePublisher) *ChatService {
	return &ChatService{
		modelClient: modelClient,
		publisher:   publisher,
	}
}

type ChatInput struct {
	User         *model.User
	Message      string
	SystemPrompt string
}

// Validate applies the request preconditions: non-blank message and sound
// encoding of both texts. Safe to call before committing to a response mode.
func (s *ChatService) Validate(input ChatInput) error {
	if strings.TrimSpace(input.Message) == "" {
		return ErrMessageEmpty
	}
	// transport should guarantee this already; double-check defensively
	if !utf8.ValidString(input.Message) || !utf8.ValidString(input.SystemPrompt) {
		return ErrBadEncoding
	}
	return nil
}

// Complete runs the one-shot path and returns the finished response text.
func (s *ChatService) Complete(ctx context.Context, input ChatInput) (string, error) {
	if err := s.Validate(input); err != nil {
		return "", err
	}

	response, err := s.modelClient.Complete(ctx, input.Message, input.SystemPrompt)
	if err != nil {
		return "", err
	}
	if !utf8.ValidString(response) {
		return "", fmt.Errorf("%w: invalid character encoding in model response", ai.ErrUnavailable)
	}

	s.recordUsage(input.User, false)
	return response, nil
}

// Stream runs the incremental path, delivering each delta through onChunk in
// production order. Validation failures surface before any chunk is produced.
func (s *ChatService) Stream(ctx context.Context, input ChatInput, onChunk func(ai.StreamChunk) error) error {
	if err := s.Validate(input); err != nil {
		return err
	}

	if err := s.modelClient.Stream(ctx, input.Message, input.SystemPrompt, onChunk); err != nil {
		return err
	}

	s.recordUsage(input.User, true)
	return nil
}

// recordUsage publishes fire-and-forget; a broker outage never fails a chat
// request that already succeeded.
func (s *ChatService) recordUsage(user *model.User, streamed bool) {
	if s.publisher == nil || user == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	event := model.UsageEvent{
		UserID:   user.ID,
		Username: user.Username,
		Streamed: streamed,
		At:       time.Now(),
	}
	if err := s.publisher.Publish(ctx, event); err != nil {
		log.Printf("publish usage event failed: %v", err)
	}
}
