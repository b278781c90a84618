package service

import (
	"context"
	"errors"
	"strings"

	"chemlab/internal/chatbot"
	"chemlab/internal/knowledge"
	"chemlab/internal/model"
)

// ChatRequest carries an optional UserID; with it, the user's own trained
// uploads are consulted too.
type ChatRequest struct {
	UserID  string `json:"user_id,omitempty" validate:"max=128"`
	Message string `json:"message" validate:"max=2000"`
}

func (s *Service) Chat(ctx context.Context, req ChatRequest) (chatbot.Reply, error) {
	if err := s.check(req); err != nil {
		return chatbot.Reply{}, err
	}
	reply, err := s.bot.ReplyFor(ctx, strings.TrimSpace(req.UserID), req.Message)
	if errors.Is(err, chatbot.ErrEmptyMessage) {
		return chatbot.Reply{}, ErrEmptyChatMessage
	}
	if err != nil {
		return chatbot.Reply{}, err
	}
	s.metrics.ChatReply(string(reply.Source))
	return reply, nil
}

func (s *Service) ChatTopics(userID string) []string {
	return s.bot.TopicsFor(strings.TrimSpace(userID))
}

// Elements returns the catalog, filtered by query when it is not empty.
func (s *Service) Elements(query string) []model.Element {
	if query == "" {
		return knowledge.Elements()
	}
	return knowledge.SearchElements(query)
}

func (s *Service) Element(number int) (model.Element, error) {
	el, ok := knowledge.ElementByNumber(number)
	if !ok {
		return model.Element{}, ErrElementNotFound
	}
	return el, nil
}
