package auth

import (
	"context"
	"path"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
)

// DefaultDocumentPrefix is prepended to uploaded document keys.
const DefaultDocumentPrefix = "verifications/"

type UploadDocumentMessage struct {
	Actor       *SessionIdentity
	FileName    string
	ContentType string
	Body        []byte

	OnResponse func(resp *UploadDocumentResponse) `json:"-"`
}

func (e UploadDocumentMessage) Type() string { return "verification.document.upload" }

type UploadDocumentResponse struct {
	URL     string               `json:"url"`
	Request *VerificationRequest `json:"request,omitempty"`
}

// UploadDocumentHandler stores an identity document. When the caller is
// signed in the document becomes their outstanding verification request,
// replacing any earlier one.
type UploadDocumentHandler struct {
	repo     RepositoryManager
	blobs    BlobStore
	prefix   string
	activity ActivitySink
	logger   Logger
}

// NewUploadDocumentHandler creates a handler with sane defaults.
func NewUploadDocumentHandler(repo RepositoryManager, blobs BlobStore) *UploadDocumentHandler {
	return &UploadDocumentHandler{
		repo:     repo,
		blobs:    blobs,
		prefix:   DefaultDocumentPrefix,
		activity: noopActivitySink{},
		logger:   defLogger{},
	}
}

// WithPrefix sets the key prefix for stored documents.
func (h *UploadDocumentHandler) WithPrefix(prefix string) *UploadDocumentHandler {
	h.prefix = prefix
	return h
}

// WithActivitySink sets the activity sink.
func (h *UploadDocumentHandler) WithActivitySink(sink ActivitySink) *UploadDocumentHandler {
	h.activity = normalizeActivitySink(sink)
	return h
}

// WithLogger overrides the logger used by the handler.
func (h *UploadDocumentHandler) WithLogger(logger Logger) *UploadDocumentHandler {
	if logger != nil {
		h.logger = logger
	}
	return h
}

func (h *UploadDocumentHandler) Execute(ctx context.Context, event UploadDocumentMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during document upload",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *UploadDocumentHandler) execute(ctx context.Context, event UploadDocumentMessage) error {
	if len(event.Body) == 0 {
		return ErrMissingBody
	}

	name, ok := SanitizeFileName(event.FileName)
	if !ok {
		return goerrors.New("invalid file name", goerrors.CategoryBadInput).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{"file_name": event.FileName})
	}

	ctx, cancel := context.WithTimeout(ctx, time.Second*30)
	defer cancel()

	contentType := event.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := h.documentKey(event.Actor, name)
	url, err := h.blobs.Put(ctx, key, event.Body, contentType)
	if err != nil {
		h.logger.Error("document upload failed", "key", key, "error", err)
		return ErrUploadFailed
	}

	resp := &UploadDocumentResponse{URL: url}

	if event.Actor != nil {
		err = h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
			req, err := h.repo.Verifications().UpsertTx(ctx, tx, event.Actor.ID, url)
			if err != nil {
				return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store verification request")
			}
			resp.Request = req
			return nil
		})
		if err != nil {
			return asRichError(err, "document upload failed")
		}

		recordActivity(ctx, h.activity, h.logger, ActivityEvent{
			EventType: ActivityEventDocumentUploaded,
			Actor:     actorFromIdentity(*event.Actor),
			AccountID: event.Actor.ID.String(),
			Metadata: map[string]any{
				"url": url,
			},
		})
	}

	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}

// documentKey scopes signed in uploads by account so members sharing a file
// name do not overwrite each other.
func (h *UploadDocumentHandler) documentKey(actor *SessionIdentity, name string) string {
	if actor == nil {
		return h.prefix + name
	}
	return h.prefix + actor.ID.String() + "/" + name
}

// SanitizeFileName reduces name to its final path element.
func SanitizeFileName(name string) (string, bool) {
	name = strings.ReplaceAll(strings.TrimSpace(name), "\\", "/")
	name = path.Base(name)
	name = strings.TrimLeft(name, ".")
	if name == "" || name == "/" {
		return "", false
	}
	return name, true
}
