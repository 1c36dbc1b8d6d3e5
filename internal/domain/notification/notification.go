// Package notification defines the outbound notification collaborator.
// Delivery mechanics (email, push, SMS) live behind the Sender interface;
// the core only decides when to notify.
package notification

import (
	"context"

	"go.uber.org/zap"
)

// Template identifies a notification message template.
type Template string

const (
	// TemplateFirstOrder congratulates a user on their first purchase.
	TemplateFirstOrder Template = "FIRST_ORDER"
	// TemplateWelcomeCoupon announces the welcome coupon issued after the
	// first purchase.
	TemplateWelcomeCoupon Template = "WELCOME_COUPON"
)

// Sender delivers a templated notification to a user.
type Sender interface {
	Send(ctx context.Context, userID string, tpl Template) error
}

// LogSender is a Sender that only logs. Used in development and as the
// default when no delivery backend is configured.
type LogSender struct {
	lg *zap.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(lg *zap.Logger) *LogSender {
	return &LogSender{lg: lg}
}

func (s *LogSender) Send(_ context.Context, userID string, tpl Template) error {
	s.lg.Info("notification sent",
		zap.String("user_id", userID),
		zap.String("template", string(tpl)),
	)
	return nil
}
