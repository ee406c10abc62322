package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"

	"github.com/clubline/clubline-backend/pkg/config"
	"github.com/clubline/clubline-backend/pkg/db"
	"github.com/clubline/clubline-backend/pkg/enums"
	"github.com/clubline/clubline-backend/pkg/logger"
	"github.com/clubline/clubline-backend/pkg/outbox"
	"github.com/clubline/clubline-backend/pkg/pubsub"
	"github.com/clubline/clubline-backend/pkg/redis"
)

// processor is the shared shape of the envelope consumers. Each one ignores
// event types it does not own, so a message can fan out to several.
type processor interface {
	Process(ctx context.Context, eventType enums.OutboxEventType, envelope outbox.PayloadEnvelope) error
}

type ServiceParams struct {
	Config        *config.Config
	Logger        *logger.Logger
	DB            *db.Client
	Redis         *redis.Client
	PubSub        *pubsub.Client
	Receipts      processor
	Notifications processor
	Registrations processor
}

// Service pumps the two delivery subscriptions: receipt and alert requests
// from the receipts topic, recorded payments from the payments topic.
type Service struct {
	cfg           *config.Config
	logg          *logger.Logger
	db            *db.Client
	redis         *redis.Client
	pubsub        *pubsub.Client
	receipts      processor
	notifications processor
	registrations processor
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Redis == nil {
		return nil, errors.New("redis client is required")
	}
	if params.PubSub == nil {
		return nil, errors.New("pubsub client is required")
	}
	if params.Receipts == nil {
		return nil, errors.New("receipts consumer is required")
	}
	if params.Notifications == nil {
		return nil, errors.New("notifications consumer is required")
	}
	if params.Registrations == nil {
		return nil, errors.New("registrations consumer is required")
	}

	return &Service{
		cfg:           params.Config,
		logg:          params.Logger,
		db:            params.DB,
		redis:         params.Redis,
		pubsub:        params.PubSub,
		receipts:      params.Receipts,
		notifications: params.Notifications,
		registrations: params.Registrations,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "redis", s.redis.Ping); err != nil {
		return err
	}
	if err := pingDependency(ctx, s.logg, "pubsub", s.pubsub.Ping); err != nil {
		return err
	}
	s.logg.Info(ctx, "all receipt worker dependencies are ready")
	return nil
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}

	receiptsSub := s.pubsub.ReceiptsSubscription()
	paymentsSub := s.pubsub.PaymentsSubscription()
	if receiptsSub == nil || paymentsSub == nil {
		return errors.New("pubsub subscriptions are not configured")
	}

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	errCh := make(chan error, 2)
	go func() {
		errCh <- receiptsSub.Receive(ctx, s.handler(s.receipts, s.notifications))
	}()
	go func() {
		errCh <- paymentsSub.Receive(ctx, s.handler(s.registrations))
	}()

	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "receipt worker context canceled")
			return ctx.Err()
		case err := <-errCh:
			if err != nil && !errors.Is(err, context.Canceled) {
				s.logg.Error(ctx, "subscription pump stopped unexpectedly", err)
				return err
			}
			return err
		case <-ticker.C:
		}
	}
}

func (s *Service) handler(processors ...processor) func(context.Context, *gcppubsub.Message) {
	return func(ctx context.Context, msg *gcppubsub.Message) {
		result := s.dispatch(ctx, msg, processors)
		if result.nack {
			msg.Nack()
			return
		}
		msg.Ack()
	}
}

type processResult struct {
	ack  bool
	nack bool
}

// dispatch decodes one message and fans it to the given consumers. Malformed
// messages are acked: the outbox wrote them, redelivery cannot repair them.
func (s *Service) dispatch(ctx context.Context, msg *gcppubsub.Message, processors []processor) processResult {
	fields := map[string]any{
		"message_id": msg.ID,
		"event_type": msg.Attributes["event_type"],
	}
	logCtx := s.logg.WithFields(ctx, fields)

	eventType, err := enums.ParseOutboxEventType(msg.Attributes["event_type"])
	if err != nil {
		s.logg.Warn(logCtx, "dropping message with unknown event type")
		return processResult{ack: true}
	}

	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(msg.Data, &envelope); err != nil {
		s.logg.Error(logCtx, "failed to decode envelope", err)
		return processResult{ack: true}
	}

	for _, p := range processors {
		if err := p.Process(ctx, eventType, envelope); err != nil {
			s.logg.Error(logCtx, "consumer processing failed", err)
			return processResult{nack: true}
		}
	}
	return processResult{ack: true}
}
