package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"paypal-billing/internal/client"
	"paypal-billing/internal/metrics"
	"paypal-billing/internal/model"
	"paypal-billing/internal/paypal"
	"paypal-billing/internal/repository"

	"go.uber.org/zap"
)

// PaypalService verifies, decodes and reconciles inbound PayPal notifications.
type PaypalService interface {
	HandleWebhook(ctx context.Context, headers http.Header, body []byte) (Outcome, error)
	HandleIPN(ctx context.Context, body []byte) (Outcome, error)
}

type paypalServiceImpl struct {
	log              *zap.Logger
	paypalClient     client.PaypalClient
	ipnClient        client.IpnClient
	reconciler       Reconciler
	notificationRepo repository.NotificationRepository
	now              func() time.Time
}

func NewPaypalService(
	log *zap.Logger,
	paypalClient client.PaypalClient,
	ipnClient client.IpnClient,
	reconciler Reconciler,
	notificationRepo repository.NotificationRepository,
) PaypalService {
	return &paypalServiceImpl{
		log:              log.Named("paypal"),
		paypalClient:     paypalClient,
		ipnClient:        ipnClient,
		reconciler:       reconciler,
		notificationRepo: notificationRepo,
		now:              time.Now,
	}
}

func (s *paypalServiceImpl) HandleWebhook(ctx context.Context, headers http.Header, body []byte) (Outcome, error) {
	if err := s.paypalClient.VerifyWebhookSignature(ctx, headers, body); err != nil {
		return Outcome{}, verifyError("verify webhook signature", err)
	}

	receivedAt := s.now()
	ev, err := paypal.ParseWebhook(body, receivedAt)
	return s.handle(ctx, paypal.SourceWebhook, ev, err, receivedAt)
}

func (s *paypalServiceImpl) HandleIPN(ctx context.Context, body []byte) (Outcome, error) {
	if err := s.ipnClient.VerifyIPN(ctx, body); err != nil {
		if errors.Is(err, client.ErrUnverified) {
			s.log.Warn("unverified IPN received")
		}
		return Outcome{}, verifyError("verify ipn", err)
	}

	receivedAt := s.now()
	ev, err := paypal.ParseIPN(body, receivedAt)
	return s.handle(ctx, paypal.SourceIPN, ev, err, receivedAt)
}

func verifyError(op string, err error) error {
	if errors.Is(err, client.ErrUnverified) {
		return fmt.Errorf("%s: %w: %v", op, ErrUnverified, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *paypalServiceImpl) handle(ctx context.Context, source paypal.Source, ev *paypal.Event, parseErr error, receivedAt time.Time) (Outcome, error) {
	switch {
	case errors.Is(parseErr, paypal.ErrEventIgnored):
		s.log.Debug("notification ignored", zap.String("source", string(source)), zap.Error(parseErr))
		metrics.IncNotification(string(source), "other", string(StatusIgnored), string(ReasonOutOfPolicy))
		return ignored(ReasonOutOfPolicy, "%v", parseErr), nil
	case parseErr != nil:
		s.log.Warn("malformed notification", zap.String("source", string(source)), zap.Error(parseErr))
		metrics.IncNotification(string(source), "other", string(StatusRejected), "malformed")
		return Outcome{}, parseErr
	}

	log := s.log.With(
		zap.String("source", string(source)),
		zap.String("kind", string(ev.Kind)),
		zap.String("gateway_id", ev.ProviderTxnID),
		zap.String("delivery_key", ev.DeliveryKey()),
	)

	done, err := s.notificationRepo.ProcessedBefore(ctx, string(source), ev.DeliveryKey(), string(StatusProcessed))
	if err != nil {
		log.Warn("notification log lookup failed", zap.Error(err))
	} else if done {
		log.Info("delivery already processed")
		metrics.IncNotification(string(source), string(ev.Kind), string(StatusIgnored), string(ReasonDuplicateEvent))
		return ignored(ReasonDuplicateEvent, "delivery %s already processed", ev.DeliveryKey()), nil
	}

	start := time.Now()
	outcome, err := s.reconciler.Reconcile(ctx, ev)
	metrics.ObserveReconcile(string(source), time.Since(start))
	if err != nil {
		log.Error("reconcile failed", zap.Error(err))
		metrics.IncNotification(string(source), string(ev.Kind), "failed", "")
		return Outcome{}, err
	}

	log.Info("notification reconciled",
		zap.String("status", string(outcome.Status)),
		zap.String("reason", string(outcome.Reason)),
		zap.String("detail", outcome.Detail),
	)
	metrics.IncNotification(string(source), string(ev.Kind), string(outcome.Status), string(outcome.Reason))

	err = s.notificationRepo.Record(ctx, &model.Notification{
		Source:      string(source),
		DeliveryKey: ev.DeliveryKey(),
		Kind:        string(ev.Kind),
		GatewayID:   ev.ProviderTxnID,
		Status:      string(outcome.Status),
		Reason:      string(outcome.Reason),
		ReceivedAt:  receivedAt.UTC(),
		ProcessedAt: s.now().UTC(),
	})
	if err != nil {
		log.Warn("record notification failed", zap.Error(err))
	}

	return outcome, nil
}
