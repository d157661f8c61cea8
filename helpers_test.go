package auth

import (
	"context"
	"database/sql"
	"strings"
	"sync"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-member-auth/storage/memblob"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/sqlitedialect"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// captureNotifier records delivered notifications. fail, when set, decides
// whether a notification is rejected.
type captureNotifier struct {
	mu   sync.Mutex
	sent []Notification
	fail func(n Notification) error
}

func (c *captureNotifier) Send(_ context.Context, n Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		if err := c.fail(n); err != nil {
			return err
		}
	}
	c.sent = append(c.sent, n)
	return nil
}

func (c *captureNotifier) setFail(fn func(n Notification) error) {
	c.mu.Lock()
	c.fail = fn
	c.mu.Unlock()
}

func (c *captureNotifier) all() []Notification {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Notification, len(c.sent))
	copy(out, c.sent)
	return out
}

func (c *captureNotifier) lastTo(to string) (Notification, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.sent) - 1; i >= 0; i-- {
		if c.sent[i].To == to {
			return c.sent[i], true
		}
	}
	return Notification{}, false
}

type captureActivity struct {
	mu     sync.Mutex
	events []ActivityEvent
}

func (c *captureActivity) Record(_ context.Context, event ActivityEvent) error {
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	return nil
}

func (c *captureActivity) types() []ActivityEventType {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]ActivityEventType, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.EventType)
	}
	return out
}

// memorySessions is a SessionBoundary kept in memory.
type memorySessions struct {
	identity   *SessionIdentity
	terminated int
}

func (m *memorySessions) Establish(_ context.Context, identity SessionIdentity) error {
	m.identity = &identity
	return nil
}

func (m *memorySessions) Terminate(context.Context) error {
	m.terminated++
	m.identity = nil
	return nil
}

func (m *memorySessions) Current(context.Context) (SessionIdentity, bool) {
	if m.identity == nil {
		return SessionIdentity{}, false
	}
	return *m.identity, true
}

type MockSessions struct {
	mock.Mock
}

func (m *MockSessions) Establish(ctx context.Context, identity SessionIdentity) error {
	args := m.Called(ctx, identity)
	return args.Error(0)
}

func (m *MockSessions) Terminate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockSessions) Current(ctx context.Context) (SessionIdentity, bool) {
	args := m.Called(ctx)
	return args.Get(0).(SessionIdentity), args.Bool(1)
}

type fixture struct {
	t        *testing.T
	db       *bun.DB
	svc      *Service
	notifier *captureNotifier
	blobs    *memblob.Store
	activity *captureActivity
}

func newTestDB(t *testing.T) *bun.DB {
	t.Helper()

	sqldb, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	sqldb.SetMaxOpenConns(1)

	db := bun.NewDB(sqldb, sqlitedialect.New())
	_, err = db.Exec("PRAGMA foreign_keys = ON;")
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = db.Close()
	})
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		t:        t,
		db:       newTestDB(t),
		notifier: &captureNotifier{},
		blobs:    memblob.New("https://blobs.test"),
		activity: &captureActivity{},
	}

	svc, err := NewService(ServiceOptions{
		DB:          f.db,
		KDF:         KDFConfig{Iterations: 10, SaltBytes: 32},
		Notifier:    f.notifier,
		Blobs:       f.blobs,
		Messages:    Messages{AppName: "Test"},
		Activity:    f.activity,
		Logger:      nopLogger{},
		TokenSecret: "test-secret",
		TokenIssuer: "test",
		LinkBase:    "https://members.test/auth/emailVerify",
	})
	require.NoError(t, err)
	require.NoError(t, svc.Bootstrap(context.Background()))

	// background notifications must finish before the database closes
	t.Cleanup(svc.Dispatcher.Wait)

	f.svc = svc
	return f
}

// account creates an account with credentials and the given flags.
func (f *fixture) account(name, email, password, role string, emailVerified, verified bool) *Account {
	f.t.Helper()
	ctx := context.Background()

	var created *Account
	err := f.svc.Provision.Execute(ctx, ProvisionAccountMessage{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     role,
		OnResponse: func(a *Account) {
			created = a
		},
	})
	require.NoError(f.t, err)

	_, err = f.db.NewUpdate().
		Model(&Account{}).
		Set("email_verified = ?", emailVerified).
		Set("verified = ?", verified).
		Where("id = ?", created.ID).
		Exec(ctx)
	require.NoError(f.t, err)

	created.EmailVerified = emailVerified
	created.Verified = verified
	return created
}

func (f *fixture) member(email string) (*Account, *SessionIdentity) {
	f.t.Helper()
	a := f.account("Member "+email, email, "member-password", RoleMember, true, true)
	id := IdentityFromAccount(a)
	return a, &id
}

func (f *fixture) admin() (*Account, *SessionIdentity) {
	f.t.Helper()
	a := f.account("Admin", "admin@example.com", "admin-password", RoleAdmin, true, true)
	id := IdentityFromAccount(a)
	return a, &id
}

func (f *fixture) reload(id any) *Account {
	f.t.Helper()
	a := &Account{}
	require.NoError(f.t, f.db.NewSelect().Model(a).Where("id = ?", id).Scan(context.Background()))
	return a
}

func (f *fixture) saltOf(a *Account) string {
	f.t.Helper()
	s, err := f.svc.Repo.Salts().GetByAccount(context.Background(), a.ID)
	require.NoError(f.t, err)
	return s.Value
}

func (f *fixture) count(model any) int {
	f.t.Helper()
	n, err := f.db.NewSelect().Model(model).Count(context.Background())
	require.NoError(f.t, err)
	return n
}

// requireTextCode fails unless err is a rich error carrying code.
func requireTextCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	var richErr *goerrors.Error
	require.True(t, goerrors.As(err, &richErr), "expected rich error, got %T: %v", err, err)
	require.Equal(t, code, richErr.TextCode, "unexpected error: %v", err)
}

// tempPasswordFrom extracts the password from a TemporaryPassword body.
func tempPasswordFrom(t *testing.T, body string) string {
	t.Helper()
	lines := strings.Split(body, "\n")
	for i, line := range lines {
		if strings.HasSuffix(line, "password is:") && i+2 < len(lines) {
			return lines[i+2]
		}
	}
	t.Fatalf("no temporary password in %q", body)
	return ""
}
