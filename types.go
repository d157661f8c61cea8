package auth

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the structured logger used across the package. Arguments after
// msg are key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// SessionBoundary persists the authenticated identity between requests.
type SessionBoundary interface {
	Establish(ctx context.Context, identity SessionIdentity) error
	Terminate(ctx context.Context) error
	Current(ctx context.Context) (SessionIdentity, bool)
}

// Notifier delivers a notification. A nil error means the message was
// accepted by the transport.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification) error

// Send implements Notifier.
func (f NotifierFunc) Send(ctx context.Context, n Notification) error {
	return f(ctx, n)
}

// BlobStore stores opaque bytes and returns a publicly resolvable URL.
type BlobStore interface {
	Put(ctx context.Context, key string, body []byte, contentType string) (string, error)
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) {
	fmt.Print("[DBG] AUTH " + format(msg, args...))
}

func (d defLogger) Info(msg string, args ...any) {
	fmt.Print("[INF] AUTH " + format(msg, args...))
}

func (d defLogger) Warn(msg string, args ...any) {
	fmt.Print("[WRN] AUTH " + format(msg, args...))
}

func (d defLogger) Error(msg string, args ...any) {
	fmt.Print("[ERR] AUTH " + format(msg, args...))
}

func format(msg string, args ...any) string {
	var b strings.Builder
	b.WriteString(msg)
	for i := 0; i < len(args); i += 2 {
		if i+1 < len(args) {
			fmt.Fprintf(&b, " %v=%v", args[i], args[i+1])
		} else {
			fmt.Fprintf(&b, " %v", args[i])
		}
	}
	return newline(b.String())
}

func newline(s string) string {
	if len(s) > 0 && s[len(s)-1] != '\n' {
		s += "\n"
	}
	return s
}

func normalizeLogger(l Logger) Logger {
	if l == nil {
		return defLogger{}
	}
	return l
}
