package chat

import (
	"context"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/supahealth/supahealth/internal/model"
	"github.com/supahealth/supahealth/internal/rid"
	"github.com/supahealth/supahealth/internal/store"
)

// historyLimit caps how much transcript is replayed to the provider.
const historyLimit = 20

// Service runs the assistant flow: find or start the user's active
// conversation, persist the user's message, ask the provider, persist
// the reply.
type Service struct {
	chats    store.Chats
	provider Provider
	logger   zerolog.Logger
}

func NewService(chats store.Chats, provider Provider, logger zerolog.Logger) *Service {
	return &Service{
		chats:    chats,
		provider: provider,
		logger:   logger.With().Str("component", "chat").Logger(),
	}
}

// Exchange is one completed user/assistant turn.
type Exchange struct {
	Conversation *model.Conversation `json:"conversation"`
	UserMessage  *model.Message      `json:"user_message"`
	Reply        *model.Message      `json:"assistant_message"`
}

// Send appends the user's message to a conversation and returns the
// assistant's reply. With an empty conversationID the user's active
// conversation is used, starting one if needed. The user message is
// persisted even when the provider fails, so a retry continues the
// same conversation.
func (s *Service) Send(ctx context.Context, userID, conversationID, content string) (*Exchange, error) {
	if content == "" {
		return nil, model.Fieldf("message", "message must not be empty")
	}

	conv, err := s.resolve(ctx, userID, conversationID)
	if err != nil {
		return nil, err
	}

	userMsg, err := s.chats.AppendMessage(ctx, &model.Message{
		ID:             rid.New("message"),
		ConversationID: conv.ID,
		UserID:         userID,
		Role:           "user",
		Content:        content,
	})
	if err != nil {
		return nil, errors.Wrap(err, "append user message")
	}

	history, err := s.chats.ListMessages(ctx, userID, conv.ID)
	if err != nil {
		return nil, errors.Wrap(err, "load transcript")
	}
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}

	replyText, err := s.provider.Complete(ctx, history)
	if err != nil {
		s.logger.Error().Stack().Err(err).
			Str("conversation_id", conv.ID).
			Msg("completion failed")
		return nil, err
	}

	reply, err := s.chats.AppendMessage(ctx, &model.Message{
		ID:             rid.New("message"),
		ConversationID: conv.ID,
		UserID:         userID,
		Role:           "assistant",
		Content:        replyText,
	})
	if err != nil {
		return nil, errors.Wrap(err, "append assistant message")
	}

	return &Exchange{Conversation: conv, UserMessage: userMsg, Reply: reply}, nil
}

// History returns a conversation transcript. With an empty
// conversationID the user's active conversation is used; a user who
// has never chatted gets an empty transcript, not an error. A foreign
// or unknown conversationID returns model.ErrNotFound.
func (s *Service) History(ctx context.Context, userID, conversationID string) (*model.Conversation, []*model.Message, error) {
	var conv *model.Conversation
	var err error
	if conversationID != "" {
		conv, err = s.chats.GetConversation(ctx, userID, conversationID)
		if err != nil {
			return nil, nil, err
		}
	} else {
		conv, err = s.chats.ActiveConversation(ctx, userID)
		if errors.Is(err, model.ErrNotFound) {
			return nil, nil, nil
		}
		if err != nil {
			return nil, nil, err
		}
	}
	msgs, err := s.chats.ListMessages(ctx, userID, conv.ID)
	if err != nil {
		return nil, nil, err
	}
	return conv, msgs, nil
}

func (s *Service) resolve(ctx context.Context, userID, conversationID string) (*model.Conversation, error) {
	if conversationID != "" {
		return s.chats.GetConversation(ctx, userID, conversationID)
	}
	conv, err := s.chats.ActiveConversation(ctx, userID)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, model.ErrNotFound) {
		return nil, err
	}
	return s.chats.CreateConversation(ctx, &model.Conversation{
		ID:     rid.New("conversation"),
		UserID: userID,
		Title:  "Health Chat",
		Status: "active",
	})
}
