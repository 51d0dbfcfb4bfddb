// Package errs define la taxonomía de errores de dominio que cruza las capas
// de servicio hasta el borde HTTP.
package errs

import (
	"errors"
	"fmt"
)

// Kind clasifica un error para que el borde HTTP lo mapee a un status.
type Kind int

const (
	KindInternal Kind = iota
	KindClientInput
	KindAuthentication
	KindForbidden
	KindConflict
	KindNotFound
	KindUpstreamTransient
	KindUpstreamExhausted
)

func (k Kind) String() string {
	switch k {
	case KindClientInput:
		return "client_input"
	case KindAuthentication:
		return "authentication"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindNotFound:
		return "not_found"
	case KindUpstreamTransient:
		return "upstream_transient"
	case KindUpstreamExhausted:
		return "upstream_exhausted"
	default:
		return "internal"
	}
}

// Error es un error con Kind y un código estable (snake_case) para clientes.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// Is compara por Code, así errors.Is(err, errs.ErrSessionInvalid) funciona
// aunque el error haya sido copiado con WithCause.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Kind == t.Kind
}

// WithCause devuelve una copia con la causa adjunta.
func (e *Error) WithCause(err error) *Error {
	cp := *e
	cp.Err = err
	return &cp
}

// WithMessage devuelve una copia con otro mensaje.
func (e *Error) WithMessage(msg string) *Error {
	cp := *e
	cp.Message = msg
	return &cp
}

func New(kind Kind, code, message string) *Error {
	return &Error{Kind: kind, Code: code, Message: message}
}

// KindOf devuelve el Kind del primer *Error en la cadena, o KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err carries the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
