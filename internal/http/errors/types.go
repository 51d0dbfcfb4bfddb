package errors

import (
	"fmt"
	"net/http"
)

// AppError es el error que llega al cliente.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	Detail     string `json:"detail,omitempty"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error { return e.Err }

func New(status int, code, message string) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// WithDetail devuelve una COPIA con detalle.
func (e *AppError) WithDetail(detail string) *AppError {
	cp := *e
	cp.Detail = detail
	return &cp
}

// WithCause devuelve una COPIA con la causa.
func (e *AppError) WithCause(err error) *AppError {
	cp := *e
	cp.Err = err
	return &cp
}

// ─── 400 ───

var (
	ErrBadRequest       = New(http.StatusBadRequest, "BAD_REQUEST", "The request is malformed or missing parameters.")
	ErrInvalidJSON      = New(http.StatusBadRequest, "INVALID_JSON", "The request body is not valid JSON.")
	ErrInvalidParameter = New(http.StatusBadRequest, "INVALID_PARAMETER", "A path or query parameter is invalid.")
	ErrBodyTooLarge     = New(http.StatusRequestEntityTooLarge, "BODY_TOO_LARGE", "The request body is too large.")
)

// ─── auth ───

var (
	ErrUnauthorized  = New(http.StatusUnauthorized, "UNAUTHORIZED", "Authentication required.")
	ErrTokenMissing  = New(http.StatusUnauthorized, "TOKEN_MISSING", "Missing bearer token.")
	ErrTokenInvalid  = New(http.StatusUnauthorized, "TOKEN_INVALID", "Invalid access token.")
	ErrTokenExpired  = New(http.StatusUnauthorized, "TOKEN_EXPIRED", "Token has expired.")
	ErrForbidden     = New(http.StatusForbidden, "FORBIDDEN", "Insufficient permissions")
	ErrSpotifyNeeded = New(http.StatusConflict, "SPOTIFY_REQUIRED", "Spotify account must be linked.")
)

// ─── 404 / 405 / 409 / 429 ───

var (
	ErrNotFound          = New(http.StatusNotFound, "NOT_FOUND", "Resource not found.")
	ErrRouteNotFound     = New(http.StatusNotFound, "ROUTE_NOT_FOUND", "Route not found.")
	ErrMethodNotAllowed  = New(http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed.")
	ErrConflict          = New(http.StatusConflict, "CONFLICT", "The request conflicts with the current state.")
	ErrRateLimitExceeded = New(http.StatusTooManyRequests, "RATE_LIMIT_EXCEEDED", "Too many requests, try again later.")
)

// ─── 5xx ───

var (
	ErrInternalServerError = New(http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error.")
	ErrServiceUnavailable  = New(http.StatusServiceUnavailable, "SERVICE_UNAVAILABLE", "Service temporarily unavailable.")
	ErrBadGateway          = New(http.StatusBadGateway, "BAD_GATEWAY", "Upstream provider error.")
)
