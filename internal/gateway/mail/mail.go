// Package mail delivers verification and password reset links.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// Notifier sends a token-bearing link to an address. The purpose decides the
// template and the link shape.
type Notifier interface {
	Deliver(ctx context.Context, address, token string, purpose types.TokenPurpose) error
}

// Links builds the client facing URLs embedded in emails.
type Links struct {
	BaseURL string
}

func (l Links) base() string {
	return strings.TrimRight(l.BaseURL, "/")
}

// VerifyEmail returns {base}/verify-email?token=<token>.
func (l Links) VerifyEmail(token string) string {
	return l.base() + "/verify-email?token=" + url.QueryEscape(token)
}

// ResetPassword returns {base}/reset-password/<token>.
func (l Links) ResetPassword(token string) string {
	return l.base() + "/reset-password/" + url.PathEscape(token)
}

// For returns the link for purpose.
func (l Links) For(purpose types.TokenPurpose, token string) (string, error) {
	switch purpose {
	case types.PurposeEmailVerify:
		return l.VerifyEmail(token), nil
	case types.PurposePasswordReset:
		return l.ResetPassword(token), nil
	default:
		return "", fmt.Errorf("no email template for purpose %q", purpose)
	}
}

// LogNotifier writes links to the log instead of sending mail. Used in
// development and when no SMTP server is configured.
type LogNotifier struct {
	logger *slog.Logger
	links  Links
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger *slog.Logger, links Links) *LogNotifier {
	return &LogNotifier{logger: logger, links: links}
}

func (n *LogNotifier) Deliver(ctx context.Context, address, token string, purpose types.TokenPurpose) error {
	link, err := n.links.For(purpose, token)
	if err != nil {
		return err
	}
	n.logger.InfoContext(ctx, "Email delivery (log driver)",
		slog.String("to", address),
		slog.String("purpose", string(purpose)),
		slog.String("link", link))
	return nil
}
