package auth

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// PendingVerification is a verification request with the public fields of
// its account.
type PendingVerification struct {
	ID        uuid.UUID  `json:"id"`
	FileURL   string     `json:"fileUrl"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
	UpdatedAt *time.Time `json:"updatedAt,omitempty"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Gender    string     `json:"gender"`
	Major     string     `json:"major"`
	ChatID    string     `json:"chatId"`
	Role      string     `json:"role"`
}

type PendingVerificationsMessage struct {
	Actor *SessionIdentity
}

func (e PendingVerificationsMessage) Type() string { return "verification.pending" }

// PendingVerificationsQuery lists outstanding requests for Admins, most
// recently updated first.
type PendingVerificationsQuery struct {
	repo        RepositoryManager
	roles       *RoleDirectory
	concurrency int
	logger      Logger
}

// NewPendingVerificationsQuery creates the query.
func NewPendingVerificationsQuery(repo RepositoryManager, roles *RoleDirectory) *PendingVerificationsQuery {
	return &PendingVerificationsQuery{
		repo:        repo,
		roles:       roles,
		concurrency: 8,
		logger:      defLogger{},
	}
}

// WithConcurrency bounds the number of concurrent account lookups.
func (q *PendingVerificationsQuery) WithConcurrency(n int) *PendingVerificationsQuery {
	if n > 0 {
		q.concurrency = n
	}
	return q
}

// WithLogger overrides the logger.
func (q *PendingVerificationsQuery) WithLogger(logger Logger) *PendingVerificationsQuery {
	if logger != nil {
		q.logger = logger
	}
	return q
}

func (q *PendingVerificationsQuery) Query(ctx context.Context, msg PendingVerificationsMessage) ([]PendingVerification, error) {
	if err := requireAdmin(ctx, q.roles, msg.Actor); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	requests, err := q.repo.Verifications().ListPending(ctx)
	if err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to list verification requests")
	}

	out := make([]PendingVerification, len(requests))
	missing := make([]bool, len(requests))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(q.concurrency)
	for i, req := range requests {
		g.Go(func() error {
			out[i] = PendingVerification{
				ID:        req.ID,
				FileURL:   req.FileURL,
				CreatedAt: req.CreatedAt,
				UpdatedAt: req.UpdatedAt,
			}

			account, err := q.repo.Accounts().GetByID(gctx, req.AccountID.String())
			if err != nil {
				if repository.IsRecordNotFound(err) {
					missing[i] = true
					return nil
				}
				return err
			}

			out[i].Name = account.Name
			out[i].Email = account.Email
			out[i].Gender = account.Gender
			out[i].Major = account.Major
			out[i].ChatID = account.ChatID
			if name, err := q.roles.Name(gctx, account.RoleID); err == nil {
				out[i].Role = name
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load verification accounts")
	}

	result := out[:0]
	for i, p := range out {
		if missing[i] {
			q.logger.Warn("verification request without account", "verification_id", p.ID.String())
			continue
		}
		result = append(result, p)
	}
	return result, nil
}
