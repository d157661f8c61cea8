package auth

import (
	"bytes"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
	"github.com/goliatone/go-router"
	"github.com/google/uuid"
)

// DefaultMaxUploadBytes bounds identity document uploads.
const DefaultMaxUploadBytes = 10 << 20

// Controller exposes the service over HTTP.
type Controller struct {
	Service        *Service
	Sessions       *CookieSessions
	Logger         Logger
	Debug          bool
	MaxUploadBytes int64
	// ErrorHandler renders errors returned by handlers.
	ErrorHandler func(ctx router.Context, err error) error
}

// ControllerOption configures a Controller.
type ControllerOption func(*Controller)

// WithControllerLogger sets the logger.
func WithControllerLogger(logger Logger) ControllerOption {
	return func(c *Controller) {
		if logger != nil {
			c.Logger = logger
		}
	}
}

// WithControllerDebug dumps request payloads.
func WithControllerDebug(debug bool) ControllerOption {
	return func(c *Controller) {
		c.Debug = debug
	}
}

// WithMaxUploadBytes bounds uploaded documents.
func WithMaxUploadBytes(n int64) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.MaxUploadBytes = n
		}
	}
}

// WithControllerErrorHandler replaces the JSON error renderer.
func WithControllerErrorHandler(handler func(router.Context, error) error) ControllerOption {
	return func(c *Controller) {
		if handler != nil {
			c.ErrorHandler = handler
		}
	}
}

// NewController creates a controller.
func NewController(svc *Service, sessions *CookieSessions, opts ...ControllerOption) *Controller {
	c := &Controller{
		Service:        svc,
		Sessions:       sessions,
		Logger:         defLogger{},
		MaxUploadBytes: DefaultMaxUploadBytes,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.ErrorHandler == nil {
		c.ErrorHandler = RenderError(c.Logger)
	}
	return c
}

// RegisterRoutes mounts the member routes on app.
func RegisterRoutes[T any](app router.Router[T], a *Controller) {
	app.Post("/signin", a.route(a.SignIn)).SetName("auth.signin")
	app.Post("/signout", a.route(a.SignOut)).SetName("auth.signout")
	app.Post("/signup", a.route(a.SignUp)).SetName("auth.signup")
	app.Get("/sendVerificationEmail/:email", a.route(a.SendVerificationEmail)).SetName("auth.verification.email.send")
	app.Post("/updateAuthPassword", a.route(a.UpdateAuthPassword)).SetName("auth.password.admin")
	app.Post("/updatePassword", a.route(a.UpdatePassword)).SetName("auth.password.update")
	app.Post("/uploadVerificationDocument/:fileName", a.route(a.UploadVerificationDocument)).SetName("auth.verification.upload")
	app.Get("/getToVerify", a.route(a.GetToVerify)).SetName("auth.verification.pending")
	app.Post("/verifyUser", a.route(a.VerifyUser)).SetName("auth.verification.approve")
	app.Post("/declineUser", a.route(a.DeclineUser)).SetName("auth.verification.decline")
	app.Get("/emailVerify/:token", a.route(a.EmailVerify)).SetName("auth.email.verify")
	app.Post("/findPassword", a.route(a.FindPassword)).SetName("auth.password.recover")
	app.Post("/removeAccount", a.route(a.RemoveAccount)).SetName("auth.account.remove")
}

// route loads the session identity and renders handler errors.
func (a *Controller) route(h router.HandlerFunc) router.HandlerFunc {
	return a.renderErrors(a.identify(h))
}

func (a *Controller) renderErrors(next router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		if err := next(ctx); err != nil {
			return a.ErrorHandler(ctx, err)
		}
		return nil
	}
}

// identify loads the session identity into the request context.
func (a *Controller) identify(next router.HandlerFunc) router.HandlerFunc {
	return func(ctx router.Context) error {
		if identity, ok := a.Sessions.For(ctx).Current(ctx.Context()); ok {
			ctx.SetContext(WithIdentity(ctx.Context(), identity))
		}
		return next(ctx)
	}
}

// SignInRequest payload
type SignInRequest struct {
	Email    string `json:"email" form:"email"`
	Password string `json:"password" form:"password"`
}

func (a *Controller) SignIn(ctx router.Context) error {
	payload := new(SignInRequest)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}

	result, err := a.Service.Authenticator.SignIn(ctx.Context(), a.Sessions.For(ctx), payload.Email, payload.Password)
	if err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, result.Profile)
}

func (a *Controller) SignOut(ctx router.Context) error {
	a.Service.Authenticator.SignOut(ctx.Context(), a.Sessions.For(ctx))
	return ctx.Status(router.StatusOK).SendString("Signed out")
}

// SignupResult is returned after a successful signup.
type SignupResult struct {
	ID                    uuid.UUID  `json:"id"`
	Email                 string     `json:"email"`
	VerificationRequestID *uuid.UUID `json:"verificationRequestId,omitempty"`
}

func (a *Controller) SignUp(ctx router.Context) error {
	payload := new(SignupMessage)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}

	var result SignupResult
	payload.OnResponse = func(resp *SignupResponse) {
		result.ID = resp.Account.ID
		result.Email = resp.Account.Email
		if resp.VerificationRequest != nil {
			id := resp.VerificationRequest.ID
			result.VerificationRequestID = &id
		}
	}

	if err := a.Service.Signup.Execute(ctx.Context(), *payload); err != nil {
		return err
	}

	return ctx.JSON(router.StatusOK, result)
}

func (a *Controller) SendVerificationEmail(ctx router.Context) error {
	msg := ResendVerificationEmailMessage{
		Actor: a.actor(ctx),
		Email: ctx.Param("email"),
	}
	if err := a.Service.ResendVerification.Execute(ctx.Context(), msg); err != nil {
		return err
	}
	return ctx.Status(router.StatusOK).SendString("Verification email sent")
}

func (a *Controller) UpdateAuthPassword(ctx router.Context) error {
	actor := a.actor(ctx)
	if actor == nil {
		return ErrUnauthorized
	}

	payload := new(AdminSetPasswordMessage)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}
	payload.Actor = actor

	var profile Profile
	payload.OnResponse = func(p Profile) {
		profile = p
	}

	if err := a.Service.AdminSetPassword.Execute(ctx.Context(), *payload); err != nil {
		return err
	}
	return ctx.JSON(router.StatusOK, profile)
}

func (a *Controller) UpdatePassword(ctx router.Context) error {
	actor := a.actor(ctx)
	if actor == nil {
		return ErrUnauthorized
	}

	payload := new(ChangePasswordMessage)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}
	payload.Actor = actor

	if err := a.Service.ChangePassword.Execute(ctx.Context(), *payload); err != nil {
		return err
	}
	return ctx.Status(router.StatusOK).SendString("Password updated")
}

func (a *Controller) UploadVerificationDocument(ctx router.Context) error {
	body, contentType, err := a.readDocument(ctx)
	if err != nil {
		return err
	}

	msg := UploadDocumentMessage{
		Actor:       a.actor(ctx),
		FileName:    ctx.Param("fileName"),
		ContentType: contentType,
		Body:        body,
	}

	var resp *UploadDocumentResponse
	msg.OnResponse = func(r *UploadDocumentResponse) {
		resp = r
	}

	if err := a.Service.UploadDocument.Execute(ctx.Context(), msg); err != nil {
		return err
	}
	return ctx.JSON(router.StatusOK, resp)
}

func (a *Controller) GetToVerify(ctx router.Context) error {
	pending, err := a.Service.Pending.Query(ctx.Context(), PendingVerificationsMessage{
		Actor: a.actor(ctx),
	})
	if err != nil {
		return err
	}
	return ctx.JSON(router.StatusOK, pending)
}

func (a *Controller) VerifyUser(ctx router.Context) error {
	actor := a.actor(ctx)
	if actor == nil {
		return ErrUnauthorized
	}

	payload := new(ApproveVerificationMessage)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}
	payload.Actor = actor

	if err := a.Service.Review.Approve(ctx.Context(), *payload); err != nil {
		return err
	}
	return ctx.Status(router.StatusOK).SendString("Account verified")
}

func (a *Controller) DeclineUser(ctx router.Context) error {
	actor := a.actor(ctx)
	if actor == nil {
		return ErrUnauthorized
	}

	payload := new(DenyVerificationMessage)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}
	payload.Actor = actor

	if err := a.Service.Review.Deny(ctx.Context(), *payload); err != nil {
		return err
	}
	return ctx.Status(router.StatusOK).SendString("Verification declined")
}

func (a *Controller) EmailVerify(ctx router.Context) error {
	msg := VerifyEmailMessage{Token: ctx.Param("token")}
	if err := a.Service.VerifyEmail.Execute(ctx.Context(), msg); err != nil {
		return err
	}
	return ctx.Status(router.StatusOK).SendString("User's email is successfully verified.")
}

func (a *Controller) FindPassword(ctx router.Context) error {
	payload := new(RecoverPasswordMessage)
	if err := a.bind(ctx, payload); err != nil {
		return err
	}

	if err := a.Service.RecoverPassword.Execute(ctx.Context(), *payload); err != nil {
		return err
	}
	return ctx.Status(router.StatusOK).SendString("Email with temporary password successfully sent.")
}

func (a *Controller) RemoveAccount(ctx router.Context) error {
	actor := a.actor(ctx)
	if actor == nil {
		return ErrUnauthorized
	}

	payload := new(RemoveAccountMessage)
	if len(ctx.Body()) > 0 {
		if err := ctx.Bind(payload); err != nil {
			return ErrMissingBody
		}
	}
	payload.Actor = actor
	payload.Sessions = a.Sessions.For(ctx)

	if err := a.Service.RemoveAccount.Execute(ctx.Context(), *payload); err != nil {
		return err
	}
	return ctx.Status(router.StatusOK).SendString("Deleted Successfully")
}

// bind parses the request body into payload. A body that is empty or cannot
// be parsed is reported as ErrMissingBody.
func (a *Controller) bind(ctx router.Context, payload any) error {
	if len(ctx.Body()) == 0 {
		return ErrMissingBody
	}

	if err := ctx.Bind(payload); err != nil {
		a.Logger.Debug("unparseable request body", "path", ctx.Path(), "error", err)
		return ErrMissingBody
	}

	if a.Debug {
		a.Logger.Debug("request payload", "path", ctx.Path(), "payload", print.MaybePrettyJSON(redacted(payload)))
	}

	return nil
}

func (a *Controller) actor(ctx router.Context) *SessionIdentity {
	return ActorFromContext(ctx.Context())
}

func (a *Controller) readDocument(ctx router.Context) ([]byte, string, error) {
	body := ctx.Body()
	contentType := ctx.Header("Content-Type")

	mediaType, params, _ := mime.ParseMediaType(contentType)
	if mediaType == "multipart/form-data" {
		return a.readMultipartFile(body, params["boundary"])
	}

	if int64(len(body)) > a.MaxUploadBytes {
		return nil, "", errFileTooLarge()
	}
	out := make([]byte, len(body))
	copy(out, body)
	return out, contentType, nil
}

// readMultipartFile returns the part named "file".
func (a *Controller) readMultipartFile(body []byte, boundary string) ([]byte, string, error) {
	if boundary == "" {
		return nil, "", errNoFileAttached()
	}

	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			return nil, "", errNoFileAttached()
		}
		if err != nil {
			return nil, "", goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read file").
				WithCode(goerrors.CodeBadRequest)
		}

		if part.FormName() != "file" || part.FileName() == "" {
			part.Close()
			continue
		}

		data, err := io.ReadAll(io.LimitReader(part, a.MaxUploadBytes+1))
		part.Close()
		if err != nil {
			return nil, "", goerrors.Wrap(err, goerrors.CategoryBadInput, "failed to read file").
				WithCode(goerrors.CodeBadRequest)
		}
		if int64(len(data)) > a.MaxUploadBytes {
			return nil, "", errFileTooLarge()
		}
		return data, part.Header.Get("Content-Type"), nil
	}
}

func errNoFileAttached() error {
	return goerrors.New("No file attached", goerrors.CategoryBadInput).
		WithCode(goerrors.CodeBadRequest)
}

func errFileTooLarge() error {
	return goerrors.New("file too large", goerrors.CategoryBadInput).
		WithCode(http.StatusRequestEntityTooLarge)
}

// redacted hides secrets before payloads are dumped.
func redacted(payload any) any {
	switch p := payload.(type) {
	case *SignInRequest:
		cp := *p
		cp.Password = "***"
		return cp
	case *SignupMessage:
		cp := *p
		cp.Password = "***"
		cp.OnResponse = nil
		return cp
	case *ChangePasswordMessage:
		cp := *p
		cp.PreviousPassword = "***"
		cp.NewPassword = "***"
		return cp
	case *AdminSetPasswordMessage:
		cp := *p
		cp.Password = "***"
		cp.OnResponse = nil
		return cp
	default:
		return payload
	}
}

