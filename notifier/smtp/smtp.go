// Package smtp delivers notifications over SMTP.
package smtp

import (
	"context"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-member-auth"
	"github.com/wneessen/go-mail"
)

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

// Notifier sends each notification as a plain text email.
type Notifier struct {
	from   string
	client sender
}

type sender interface {
	DialAndSendWithContext(ctx context.Context, messages ...*mail.Msg) error
}

var _ auth.Notifier = (*Notifier)(nil)

// New creates a Notifier. Authentication is only enabled when a username is
// configured.
func New(cfg Config) (*Notifier, error) {
	if cfg.Host == "" {
		return nil, goerrors.New("smtp host is required", goerrors.CategoryBadInput)
	}
	if cfg.From == "" {
		return nil, goerrors.New("smtp sender is required", goerrors.CategoryBadInput)
	}

	opts := []mail.Option{
		mail.WithTLSPortPolicy(mail.TLSOpportunistic),
	}
	if cfg.Port > 0 {
		opts = append(opts, mail.WithPort(cfg.Port))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to create smtp client")
	}

	return &Notifier{from: cfg.From, client: client}, nil
}

// Send implements auth.Notifier.
func (n *Notifier) Send(ctx context.Context, note auth.Notification) error {
	msg, err := buildMessage(n.from, note)
	if err != nil {
		return err
	}

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "smtp delivery failed").
			WithMetadata(map[string]any{"to": note.To})
	}
	return nil
}

func buildMessage(from string, note auth.Notification) (*mail.Msg, error) {
	msg := mail.NewMsg()
	if err := msg.From(from); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid sender address")
	}
	if err := msg.To(note.To); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryBadInput, "invalid recipient address").
			WithMetadata(map[string]any{"to": note.To})
	}
	msg.Subject(note.Subject)
	msg.SetBodyString(mail.TypeTextPlain, note.Body)
	return msg, nil
}
