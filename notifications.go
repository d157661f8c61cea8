package auth

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// Notification is a single message to one recipient.
type Notification struct {
	To      string
	Subject string
	Body    string
}

// Messages renders the notifications sent by the package.
type Messages struct {
	AppName string
}

func (m Messages) appName() string {
	if m.AppName == "" {
		return "Membership"
	}
	return m.AppName
}

// EmailVerification asks the recipient to confirm their address.
func (m Messages) EmailVerification(to, name, link string) Notification {
	return Notification{
		To:      to,
		Subject: fmt.Sprintf("[%s] Confirm your email address", m.appName()),
		Body: fmt.Sprintf("Hello %s,\n\nPlease confirm your email address by opening the link below:\n\n%s\n\n"+
			"Your account will be reviewed by an administrator once your email is confirmed.\n", name, link),
	}
}

// VerificationApproved tells the recipient their account was approved.
func (m Messages) VerificationApproved(to, name string) Notification {
	return Notification{
		To:      to,
		Subject: fmt.Sprintf("[%s] Your account was approved", m.appName()),
		Body:    fmt.Sprintf("Hello %s,\n\nYour identity document was reviewed and your account is now active.\n", name),
	}
}

// VerificationDenied tells the recipient their document was rejected. The
// reason line is left out when no reason was given.
func (m Messages) VerificationDenied(to, name, reason string) Notification {
	var b strings.Builder
	fmt.Fprintf(&b, "Hello %s,\n\nYour identity document could not be accepted.\n\n", name)
	if reason = strings.TrimSpace(reason); reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n\n", reason)
	}
	b.WriteString("You may upload a new document at any time.\n")

	return Notification{
		To:      to,
		Subject: fmt.Sprintf("[%s] Your verification was declined", m.appName()),
		Body:    b.String(),
	}
}

// TemporaryPassword delivers a generated password.
func (m Messages) TemporaryPassword(to, name, password string) Notification {
	return Notification{
		To:      to,
		Subject: fmt.Sprintf("[%s] Your temporary password", m.appName()),
		Body: fmt.Sprintf("Hello %s,\n\nYour password was reset. Your temporary password is:\n\n%s\n\n"+
			"Please sign in and change it right away.\n", name, password),
	}
}

// DefaultAsyncTimeout bounds background deliveries.
const DefaultAsyncTimeout = 30 * time.Second

// Dispatcher sends notifications either awaited or in the background.
type Dispatcher struct {
	notifier Notifier
	logger   Logger
	timeout  time.Duration
	wg       sync.WaitGroup
}

// NewDispatcher wraps notifier.
func NewDispatcher(notifier Notifier, logger Logger) *Dispatcher {
	return &Dispatcher{
		notifier: notifier,
		logger:   normalizeLogger(logger),
		timeout:  DefaultAsyncTimeout,
	}
}

// Send delivers n and returns the transport error.
func (d *Dispatcher) Send(ctx context.Context, n Notification) error {
	if err := d.notifier.Send(ctx, n); err != nil {
		d.logger.Error("notification delivery failed", "to", n.To, "subject", n.Subject, "error", err)
		return err
	}
	return nil
}

// Go delivers n in the background. The request context may end before the
// delivery does; failures are logged only.
func (d *Dispatcher) Go(ctx context.Context, n Notification) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(ctx, d.timeout)
		defer cancel()
		if err := d.notifier.Send(ctx, n); err != nil {
			d.logger.Warn("background notification failed", "to", n.To, "subject", n.Subject, "error", err)
		}
	}()
}

// Wait blocks until background deliveries finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// LogNotifier writes notifications to a logger instead of delivering them.
type LogNotifier struct {
	Logger Logger
}

// Send implements Notifier.
func (l LogNotifier) Send(_ context.Context, n Notification) error {
	normalizeLogger(l.Logger).Info("notification", "to", n.To, "subject", n.Subject, "body", n.Body)
	return nil
}
