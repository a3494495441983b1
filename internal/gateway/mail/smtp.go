package mail

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	gomail "github.com/wneessen/go-mail"

	"github.com/FACorreiaa/go-identity-service/internal/types"
)

// SMTPConfig holds the connection settings for an SMTP relay.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	Timeout  time.Duration
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*gomail.Msg) error
	Close() error
}

// SMTPNotifier sends multipart (text and HTML) emails through an SMTP relay.
type SMTPNotifier struct {
	client sender
	from   string
	links  Links
	logger *slog.Logger
}

var _ Notifier = (*SMTPNotifier)(nil)

func NewSMTPNotifier(cfg SMTPConfig, links Links, logger *slog.Logger) (*SMTPNotifier, error) {
	opts := []gomail.Option{
		gomail.WithPort(cfg.Port),
		gomail.WithTLSPortPolicy(gomail.TLSOpportunistic),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, gomail.WithTimeout(cfg.Timeout))
	}
	if cfg.Username != "" {
		opts = append(opts,
			gomail.WithSMTPAuth(gomail.SMTPAuthPlain),
			gomail.WithUsername(cfg.Username),
			gomail.WithPassword(cfg.Password),
		)
	}
	client, err := gomail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create SMTP client: %w", err)
	}
	return newSMTPNotifier(client, cfg.From, links, logger), nil
}

func newSMTPNotifier(client sender, from string, links Links, logger *slog.Logger) *SMTPNotifier {
	return &SMTPNotifier{client: client, from: from, links: links, logger: logger}
}

func (n *SMTPNotifier) Deliver(ctx context.Context, address, token string, purpose types.TokenPurpose) error {
	l := n.logger.With(slog.String("method", "Deliver"), slog.String("purpose", string(purpose)))

	msg, err := n.compose(address, token, purpose)
	if err != nil {
		return err
	}
	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		l.ErrorContext(ctx, "SMTP delivery failed", slog.Any("error", err))
		return fmt.Errorf("%w: smtp delivery: %v", types.ErrUpstream, err)
	}
	l.InfoContext(ctx, "Email delivered")
	return nil
}

func (n *SMTPNotifier) compose(address, token string, purpose types.TokenPurpose) (*gomail.Msg, error) {
	link, err := n.links.For(purpose, token)
	if err != nil {
		return nil, err
	}
	tpl := templates[purpose]

	msg := gomail.NewMsg(gomail.WithEncoding(gomail.NoEncoding))
	if err := msg.From(n.from); err != nil {
		return nil, fmt.Errorf("invalid sender address: %w", err)
	}
	if err := msg.To(address); err != nil {
		return nil, fmt.Errorf("invalid recipient address: %w", err)
	}
	msg.Subject(tpl.subject)
	msg.SetBodyString(gomail.TypeTextPlain, fmt.Sprintf(tpl.text, link))
	msg.AddAlternativeString(gomail.TypeTextHTML, fmt.Sprintf(tpl.html, link, link))
	return msg, nil
}

func (n *SMTPNotifier) Close() error {
	return n.client.Close()
}

type template struct {
	subject string
	text    string
	html    string
}

var templates = map[types.TokenPurpose]template{
	types.PurposeEmailVerify: {
		subject: "Email Verification",
		text:    "Please verify your email by opening this link: %s\n",
		html:    `<p>Please verify your email by clicking the link: <a href="%s">%s</a></p>`,
	},
	types.PurposePasswordReset: {
		subject: "Password Reset",
		text:    "You asked to reset your password. Open this link to choose a new one: %s\nIf you did not ask for this, ignore this email.\n",
		html:    `<p>You asked to reset your password. Click the link to choose a new one: <a href="%s">%s</a></p><p>If you did not ask for this, ignore this email.</p>`,
	},
}
