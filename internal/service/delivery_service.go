package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/guvercin/messaging-backend/internal/common"
	"github.com/guvercin/messaging-backend/internal/domain"
	"github.com/guvercin/messaging-backend/internal/repository"
	"github.com/guvercin/messaging-backend/internal/ws"
	pkglogger "github.com/guvercin/messaging-backend/pkg/logger"
)

// SessionRegistry is the slice of the connection registry the pipeline
// needs: receiver lookup and seen-channel fan-out.
type SessionRegistry interface {
	Lookup(username string) (ws.Session, bool)
	Broadcast(payload []byte)
}

// DeliveryService drives a message from inbound frame to delivered or
// pending state: persist first, then live send or push fallback, then
// echo to the sender.
type DeliveryService interface {
	HandleMessage(ctx context.Context, sender ws.Session, in *domain.InboundMessage) (*domain.Envelope, error)
	HandleSeen(ctx context.Context, raw []byte) error
}

type deliveryService struct {
	repo     repository.MessageRepository
	sessions SessionRegistry
	seen     SessionRegistry
	notifier Notifier
}

// NewDeliveryService creates a new DeliveryService
func NewDeliveryService(repo repository.MessageRepository, sessions, seen SessionRegistry, notifier Notifier) DeliveryService {
	return &deliveryService{
		repo:     repo,
		sessions: sessions,
		seen:     seen,
		notifier: notifier,
	}
}

// HandleMessage persists the inbound message, attempts live delivery to
// the receiver and echoes the finalized envelope back to the sender.
// Persistence failure aborts everything: no delivery or notification is
// attempted without a durable, id-bearing record. A transport failure
// on the live send degrades to one push attempt; recovery then relies
// on the receiver reconnecting and polling the conversation.
func (s *deliveryService) HandleMessage(ctx context.Context, sender ws.Session, in *domain.InboundMessage) (*domain.Envelope, error) {
	msgType := in.Type
	if msgType == "" {
		msgType = domain.TypeText
	}

	msg := &domain.Message{
		Sender:   in.Sender,
		Receiver: in.Receiver,
		Type:     msgType,
		Content:  in.Content,
		FileURL:  in.FileURL,
		FileName: in.FileName,
		MimeType: in.MimeType,
	}

	if _, err := s.repo.Insert(msg); err != nil {
		return nil, err
	}
	messagesPersisted.Inc()

	env := domain.NewEnvelope(msg)
	payload, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}

	log := pkglogger.GetLogger().With().
		Uint("message_id", msg.ID).
		Str("sender", msg.Sender).
		Str("receiver", msg.Receiver).
		Logger()

	if peer, ok := s.sessions.Lookup(msg.Receiver); ok {
		if err := peer.SendText(payload); err != nil {
			log.Warn().Err(err).Msg("live delivery failed, falling back to push")
			pushFallbacks.Inc()
			s.notifier.Notify(ctx, msg.Receiver)
		} else {
			if err := s.repo.UpdateDelivered(msg.ID); err != nil {
				log.Error().Err(err).Msg("delivered flag update failed")
			}
			env.Delivered = true
			liveDeliveries.Inc()
		}
	} else {
		log.Info().Msg("receiver offline, dispatching push notification")
		pushFallbacks.Inc()
		s.notifier.Notify(ctx, msg.Receiver)
	}

	// The echo is the sender's only confirmation channel.
	echo, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	if err := sender.SendText(echo); err != nil {
		log.Error().Err(err).Msg("envelope echo to sender failed")
	}

	return env, nil
}

// HandleSeen applies a seen acknowledgment to the store, then relays
// the raw payload verbatim to every live seen-channel connection,
// originator included.
func (s *deliveryService) HandleSeen(ctx context.Context, raw []byte) error {
	var ev domain.SeenEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return fmt.Errorf("%w: malformed seen frame", common.ErrInvalidInput)
	}
	if ev.MessageID == 0 {
		return fmt.Errorf("%w: missing message_id", common.ErrInvalidInput)
	}

	if err := s.repo.UpdateSeen(ev.MessageID, ev.Seen, time.Now()); err != nil {
		return err
	}
	seenUpdates.Inc()

	s.seen.Broadcast(raw)
	return nil
}
