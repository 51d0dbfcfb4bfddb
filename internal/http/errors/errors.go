// Package errors traduce los errores de dominio (errs.Kind) a respuestas HTTP.
package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/tunetrail/tunetrail/internal/domain/errs"
	"github.com/tunetrail/tunetrail/internal/upstream"
)

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// StatusFor mapea un Kind al status HTTP.
func StatusFor(k errs.Kind) int {
	switch k {
	case errs.KindClientInput:
		return http.StatusBadRequest
	case errs.KindAuthentication:
		return http.StatusUnauthorized
	case errs.KindForbidden:
		return http.StatusForbidden
	case errs.KindConflict:
		return http.StatusConflict
	case errs.KindNotFound:
		return http.StatusNotFound
	case errs.KindUpstreamTransient, errs.KindUpstreamExhausted:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// FromError convierte cualquier error en un AppError. Los *errs.Error
// conservan su código y mensaje; un status inesperado de un provider es 502;
// el resto es 500 sin exponer la causa.
func FromError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var de *errs.Error
	if errors.As(err, &de) {
		status := StatusFor(de.Kind)
		if status == http.StatusInternalServerError {
			return ErrInternalServerError.WithCause(err)
		}
		return &AppError{
			Code:       strings.ToUpper(de.Code),
			Message:    de.Message,
			HTTPStatus: status,
			Err:        err,
		}
	}
	if _, ok := upstream.AsStatus(err); ok {
		return ErrBadGateway.WithCause(err)
	}
	return ErrInternalServerError.WithCause(err)
}

// WriteError escribe err como JSON.
func WriteError(w http.ResponseWriter, err error) {
	appErr := FromError(err)
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(appErr.HTTPStatus)
	_ = json.NewEncoder(w).Encode(errorResponse{
		Code:    appErr.Code,
		Message: appErr.Message,
		Detail:  appErr.Detail,
	})
}

// WriteJSON escribe v con el status dado.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
