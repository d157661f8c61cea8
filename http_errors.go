package auth

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-router"
)

// ErrorResponse is the JSON body of failed requests.
type ErrorResponse struct {
	Error      string `json:"error"`
	Code       string `json:"code,omitempty"`
	Validation any    `json:"validation,omitempty"`
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		if richErr.Code != 0 {
			return richErr.Code
		}
		switch richErr.Category {
		case goerrors.CategoryBadInput, goerrors.CategoryValidation:
			return http.StatusBadRequest
		case goerrors.CategoryNotFound:
			return http.StatusNotFound
		case goerrors.CategoryAuth, goerrors.CategoryAuthz:
			return http.StatusUnauthorized
		case goerrors.CategoryConflict:
			return http.StatusConflict
		case goerrors.CategoryRateLimit:
			return http.StatusTooManyRequests
		case goerrors.CategoryOperation:
			return http.StatusRequestTimeout
		default:
			return http.StatusInternalServerError
		}
	}

	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}

	return http.StatusInternalServerError
}

// errorResponse builds the status and body for err. Internal errors are
// logged with detail and answered with a generic message.
func errorResponse(logger Logger, method, path string, err error) (int, ErrorResponse) {
	status := HTTPStatus(err)
	body := ErrorResponse{Error: http.StatusText(status)}

	var richErr *goerrors.Error
	switch {
	case goerrors.As(err, &richErr) && status < http.StatusInternalServerError:
		if IsDependencyFailure(richErr) {
			logger.Warn("dependency failure", "path", path, "error", err)
		}
		body.Error = richErr.Message
		body.Code = richErr.TextCode
		if richErr.Category == goerrors.CategoryValidation {
			body.Validation = richErr.ValidationMap()
		}
	default:
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			body.Error = fiberErr.Message
		} else if status >= http.StatusInternalServerError {
			logger.Error("request failed", "path", path, "method", method, "error", err)
		}
	}

	return status, body
}

// RenderError renders errors returned by route handlers.
func RenderError(logger Logger) func(router.Context, error) error {
	logger = normalizeLogger(logger)
	return func(ctx router.Context, err error) error {
		status, body := errorResponse(logger, ctx.Method(), ctx.Path(), err)
		if status == http.StatusNoContent {
			return ctx.NoContent(status)
		}
		return ctx.JSON(status, body)
	}
}

// ErrorHandler renders errors that reach the fiber app, such as unknown
// routes or oversized bodies.
func ErrorHandler(logger Logger) fiber.ErrorHandler {
	logger = normalizeLogger(logger)
	return func(c *fiber.Ctx, err error) error {
		status, body := errorResponse(logger, c.Method(), c.Path(), err)
		if status == http.StatusNoContent {
			return c.SendStatus(status)
		}
		return c.Status(status).JSON(body)
	}
}
