package service

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/karma-nest/job-nest/internal/config"
	"github.com/karma-nest/job-nest/internal/domain"
	"github.com/karma-nest/job-nest/internal/events"
)

// Email is an outbound message. Delivery is stubbed; messages are logged.
type Email struct {
	From    string
	To      string
	Subject string
	Link    string
}

// NotificationService turns account events into emails.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventAccountRegistered, n.handleActivationLink)
	n.dispatcher.Subscribe(events.EventActivationRequested, n.handleActivationLink)
	n.dispatcher.Subscribe(events.EventPasswordResetRequested, n.handlePasswordReset)
	n.dispatcher.Subscribe(events.EventPasswordChanged, n.handlePasswordChanged)
}

func (n *NotificationService) handleActivationLink(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LinkTokenPayload)
	if !ok {
		return fmt.Errorf("%s: missing link token", event.Type)
	}
	subject := fmt.Sprintf("Welcome Aboard! Activate Your %s Account", n.cfg.ProductName)
	if event.Type == events.EventActivationRequested {
		subject = fmt.Sprintf("Reactivate your %s account", n.cfg.ProductName)
	}
	n.sendEmailStub(ctx, Email{
		From:    n.cfg.EmailFrom,
		To:      event.Email,
		Subject: subject,
		Link:    n.ActivationLink(payload.Token),
	})
	return nil
}

func (n *NotificationService) handlePasswordReset(ctx context.Context, event events.Event) error {
	payload, ok := event.Payload.(events.LinkTokenPayload)
	if !ok {
		return fmt.Errorf("%s: missing link token", event.Type)
	}
	n.sendEmailStub(ctx, Email{
		From:    n.cfg.EmailFrom,
		To:      event.Email,
		Subject: fmt.Sprintf("%s account password reset", n.cfg.ProductName),
		Link:    n.PasswordResetLink(event.Role, payload.Token),
	})
	return nil
}

func (n *NotificationService) handlePasswordChanged(ctx context.Context, event events.Event) error {
	n.sendEmailStub(ctx, Email{
		From:    n.cfg.EmailFrom,
		To:      event.Email,
		Subject: fmt.Sprintf("%s account password change", n.cfg.ProductName),
	})
	return nil
}

// ActivationLink points at the API activation endpoint.
func (n *NotificationService) ActivationLink(token string) string {
	return strings.TrimSuffix(n.cfg.APIBaseURL, "/") + "/auth/activate?token=" + url.QueryEscape(token)
}

// PasswordResetLink points at the reset page of the role's frontend.
func (n *NotificationService) PasswordResetLink(role domain.Role, token string) string {
	var base string
	switch role {
	case domain.RoleAdmin:
		base = n.cfg.AdminURL
	case domain.RoleRecruiter:
		base = n.cfg.RecruiterURL
	default:
		base = n.cfg.CandidateURL
	}
	return strings.TrimSuffix(base, "/") + "/auth/reset-password?token=" + url.QueryEscape(token)
}

func (n *NotificationService) sendEmailStub(_ context.Context, email Email) {
	if strings.TrimSpace(email.From) == "" {
		return
	}
	n.logger.Info("sendEmailStub",
		zap.String("from", email.From),
		zap.String("to", email.To),
		zap.String("subject", email.Subject),
		zap.String("link", email.Link))
}
