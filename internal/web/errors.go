package web

// errors.go turns handler errors into JSON responses.
//
// The technical error is logged with the request id; the client receives the
// message, suggested action and code from core.MapError.

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/JonMunkholm/AddressImport/internal/core"
	"github.com/JonMunkholm/AddressImport/internal/logging"
)

var (
	errRateLimited     = errors.New("rate limit exceeded")
	errInvalidRecordID = errors.New("invalid record id")
	errInvalidPatch    = errors.New("invalid patch")
	errTooManyFiles    = errors.New("too many files")
)

// ErrorResponse is the JSON body of every error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Action  string `json:"action,omitempty"`
	Code    string `json:"code"`
}

// respondError logs err and writes its user-facing form with status.
func respondError(w http.ResponseWriter, r *http.Request, err error, status int) {
	msg := core.MapError(err)

	logging.FromContext(r.Context()).Warn("request error",
		"path", r.URL.Path,
		"method", r.Method,
		"status", status,
		"error", err.Error(),
		"code", msg.Code,
	)

	writeJSON(w, status, ErrorResponse{
		Error:   msg.Message,
		Message: msg.Message,
		Action:  msg.Action,
		Code:    msg.Code,
	})
}

// statusFor picks the HTTP status for an error returned by core.
func statusFor(err error) int {
	var decodeErr *core.DecodeError
	switch {
	case errors.Is(err, core.ErrRecordNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrTooManyImports), errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, core.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, core.ErrUnsupportedFormat):
		return http.StatusUnsupportedMediaType
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, core.ErrDuplicateID):
		return http.StatusConflict
	case errors.Is(err, core.ErrNoFiles),
		errors.Is(err, core.ErrUnsupportedExportFormat),
		errors.Is(err, errInvalidRecordID),
		errors.Is(err, errInvalidPatch),
		errors.Is(err, errTooManyFiles),
		errors.As(err, &decodeErr):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// clientIP returns the host part of RemoteAddr.
func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
