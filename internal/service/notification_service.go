package service

import (
	"context"

	"github.com/guvercin/messaging-backend/internal/repository"
	pkglogger "github.com/guvercin/messaging-backend/pkg/logger"
)

// PushSender submits one push notification to an external delivery
// service and returns its receipt id.
type PushSender interface {
	Send(ctx context.Context, title, token string) (string, error)
}

// Notifier is the best-effort push fallback used when a receiver cannot
// be reached live. It never returns an error: every failure is absorbed
// and logged at this boundary.
type Notifier interface {
	Notify(ctx context.Context, receiver string)
}

type notificationService struct {
	tokens repository.PushTokenStore
	push   PushSender
	title  string
}

// NewNotificationService creates a new Notifier
func NewNotificationService(tokens repository.PushTokenStore, push PushSender, title string) Notifier {
	return &notificationService{
		tokens: tokens,
		push:   push,
		title:  title,
	}
}

// Notify pushes a fixed-title notification to the receiver's registered
// device. The message content is deliberately omitted from the push.
// A missing token is a logged no-op, not an error.
func (s *notificationService) Notify(ctx context.Context, receiver string) {
	log := pkglogger.WithUsername(receiver)

	token, err := s.tokens.Token(ctx, receiver)
	if err != nil {
		log.Warn().Err(err).Msg("push token lookup failed")
		return
	}
	if token == "" {
		log.Info().Msg("no push token registered, skipping notification")
		return
	}

	receipt, err := s.push.Send(ctx, s.title, token)
	if err != nil {
		log.Warn().Err(err).Msg("push dispatch failed")
		return
	}
	log.Info().Str("receipt", receipt).Msg("push notification dispatched")
}

// DisabledSender is used when push delivery is turned off in config.
type DisabledSender struct{}

// Send drops the notification.
func (DisabledSender) Send(ctx context.Context, title, token string) (string, error) {
	return "", nil
}
