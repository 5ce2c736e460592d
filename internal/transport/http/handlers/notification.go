package handlers

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ordexa/catalog-iam/internal/infra/logger"
)

// NotificationDispatcher fans out credential deliveries to downstream notifiers.
// Actual mail delivery lives outside this service; the dispatcher is the seam
// where it plugs in.
type NotificationDispatcher interface {
	SendVerificationEmail(ctx context.Context, payload VerificationNotification) error
	SendPasswordReset(ctx context.Context, payload PasswordResetNotification) error
}

// VerificationNotification captures data needed to deliver an email verification link.
type VerificationNotification struct {
	Email       string
	CompanyName string
	DevToken    string
	Expires     time.Time
}

// PasswordResetNotification captures data needed to deliver password reset credentials.
type PasswordResetNotification struct {
	Email    string
	DevToken string
	Expires  time.Time
}

type noopDispatcher struct{}

func (noopDispatcher) SendVerificationEmail(ctx context.Context, payload VerificationNotification) error {
	return nil
}

func (noopDispatcher) SendPasswordReset(ctx context.Context, payload PasswordResetNotification) error {
	return nil
}

// LoggingNotificationDispatcher records credential dispatch events for observability without delivering them.
type LoggingNotificationDispatcher struct {
	logger *zap.Logger
}

// NewLoggingNotificationDispatcher constructs a notification dispatcher backed by structured logging.
func NewLoggingNotificationDispatcher(logger *zap.Logger) NotificationDispatcher {
	if logger == nil {
		return noopDispatcher{}
	}
	return &LoggingNotificationDispatcher{logger: logger}
}

func (d *LoggingNotificationDispatcher) SendVerificationEmail(ctx context.Context, payload VerificationNotification) error {
	if d == nil || d.logger == nil {
		return nil
	}

	fields := []zap.Field{
		zap.String("email", logger.MaskEmail(payload.Email)),
		zap.Time("expires_at", payload.Expires),
	}

	if payload.CompanyName != "" {
		fields = append(fields, zap.String("company_name", payload.CompanyName))
	}
	if payload.DevToken != "" {
		fields = append(fields, zap.String("dev_token", payload.DevToken))
	}

	d.logger.Info("dispatch verification email", fields...)
	return nil
}

func (d *LoggingNotificationDispatcher) SendPasswordReset(ctx context.Context, payload PasswordResetNotification) error {
	if d == nil || d.logger == nil {
		return nil
	}

	fields := []zap.Field{
		zap.String("email", logger.MaskEmail(payload.Email)),
		zap.Time("expires_at", payload.Expires),
	}

	if payload.DevToken != "" {
		fields = append(fields, zap.String("dev_token", payload.DevToken))
	}

	d.logger.Info("dispatch password reset", fields...)
	return nil
}
