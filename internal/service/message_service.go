package service

import (
	"context"

	"github.com/guvercin/messaging-backend/internal/domain"
	"github.com/guvercin/messaging-backend/internal/repository"
)

// MessageService business logic for the HTTP message surface
type MessageService interface {
	Conversation(viewer, peer string) ([]*domain.MessageResponse, error)
	SoftDelete(user string, id uint) (domain.DeleteOutcome, error)
	HardDelete(ctx context.Context, id uint) error
	Partners(username string) ([]string, error)
}

type messageService struct {
	repo  repository.MessageRepository
	files FileService
}

// NewMessageService creates a new MessageService
func NewMessageService(repo repository.MessageRepository, files FileService) MessageService {
	return &messageService{repo: repo, files: files}
}

// Conversation returns the viewer's view of the conversation with peer,
// oldest first. Messages the viewer soft-deleted are hidden; the peer's
// view is unaffected.
func (s *messageService) Conversation(viewer, peer string) ([]*domain.MessageResponse, error) {
	messages, err := s.repo.ConversationBetween(viewer, peer)
	if err != nil {
		return nil, err
	}

	responses := make([]*domain.MessageResponse, len(messages))
	for i, m := range messages {
		responses[i] = m.ToResponse()
	}
	return responses, nil
}

// SoftDelete hides the message for one user only.
func (s *messageService) SoftDelete(user string, id uint) (domain.DeleteOutcome, error) {
	return s.repo.SoftDelete(user, id)
}

// HardDelete removes the message row permanently, along with its stored
// file when one exists. Irreversible.
func (s *messageService) HardDelete(ctx context.Context, id uint) error {
	msg, err := s.repo.HardDelete(id)
	if err != nil {
		return err
	}
	if msg.HasFile() {
		s.files.Remove(ctx, msg.Receiver, msg.FileName)
	}
	return nil
}

// Partners returns the usernames the given user has conversations with.
func (s *messageService) Partners(username string) ([]string, error) {
	return s.repo.Partners(username)
}
