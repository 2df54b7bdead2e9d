package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation    Code = "VALIDATION_ERROR"
	CodeUnauthorized  Code = "UNAUTHORIZED"
	CodeForbidden     Code = "FORBIDDEN"
	CodeNotFound      Code = "NOT_FOUND"
	CodeConflict      Code = "CONFLICT"
	CodeStateConflict Code = "STATE_CONFLICT"
	CodeIdempotency   Code = "IDEMPOTENCY_KEY_REUSED"
	CodeRateLimit     Code = "RATE_LIMIT_EXCEEDED"
	CodeInternal      Code = "INTERNAL_ERROR"
	CodeDependency    Code = "DEPENDENCY_ERROR"

	CodeBadRequest         Code = "BAD_REQUEST"
	CodeEmptyCart          Code = "EMPTY_CART"
	CodeInvalidQuantity    Code = "INVALID_QUANTITY"
	CodeProductNotFound    Code = "PRODUCT_NOT_FOUND"
	CodeOrderNotFound      Code = "ORDER_NOT_FOUND"
	CodeCartNotFound       Code = "CART_NOT_FOUND"
	CodeUserNotFound       Code = "USER_NOT_FOUND"
	CodeProductUnavailable Code = "PRODUCT_NOT_AVAILABLE"
	CodeInsufficientStock  Code = "INSUFFICIENT_STOCK"
	CodeInvalidTransition  Code = "INVALID_TRANSITION"
)

// Kind groups codes into the categories callers branch on.
type Kind string

const (
	KindValidation     Kind = "validation"
	KindNotFound       Kind = "not_found"
	KindConflict       Kind = "conflict"
	KindState          Kind = "state"
	KindAuthorization  Kind = "authorization"
	KindInfrastructure Kind = "infrastructure"
)

type Metadata struct {
	Kind           Kind
	HTTPStatus     int
	Retryable      bool
	PublicMessage  string
	DetailsAllowed bool
}

var metadataByCode = map[Code]Metadata{
	CodeValidation: {
		Kind:           KindValidation,
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "validation failed",
		DetailsAllowed: true,
	},
	CodeBadRequest: {
		Kind:           KindValidation,
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "bad request",
		DetailsAllowed: true,
	},
	CodeEmptyCart: {
		Kind:          KindValidation,
		HTTPStatus:    http.StatusBadRequest,
		PublicMessage: "cart is empty",
	},
	CodeInvalidQuantity: {
		Kind:           KindValidation,
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "invalid quantity",
		DetailsAllowed: true,
	},
	CodeUnauthorized: {
		Kind:          KindAuthorization,
		HTTPStatus:    http.StatusUnauthorized,
		PublicMessage: "authentication required",
	},
	CodeForbidden: {
		Kind:          KindAuthorization,
		HTTPStatus:    http.StatusForbidden,
		PublicMessage: "access denied",
	},
	CodeNotFound: {
		Kind:          KindNotFound,
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "resource not found",
	},
	CodeProductNotFound: {
		Kind:           KindNotFound,
		HTTPStatus:     http.StatusNotFound,
		PublicMessage:  "product not found",
		DetailsAllowed: true,
	},
	CodeOrderNotFound: {
		Kind:          KindNotFound,
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "order not found",
	},
	CodeCartNotFound: {
		Kind:          KindNotFound,
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "cart not found",
	},
	CodeUserNotFound: {
		Kind:          KindNotFound,
		HTTPStatus:    http.StatusNotFound,
		PublicMessage: "user not found",
	},
	CodeConflict: {
		Kind:          KindConflict,
		HTTPStatus:    http.StatusConflict,
		PublicMessage: "conflict detected",
	},
	CodeProductUnavailable: {
		Kind:           KindConflict,
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "product not available",
		DetailsAllowed: true,
	},
	CodeInsufficientStock: {
		Kind:           KindConflict,
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "insufficient stock",
		DetailsAllowed: true,
	},
	CodeIdempotency: {
		Kind:           KindConflict,
		HTTPStatus:     http.StatusConflict,
		PublicMessage:  "idempotency key reused",
		DetailsAllowed: true,
	},
	CodeStateConflict: {
		Kind:           KindState,
		HTTPStatus:     http.StatusUnprocessableEntity,
		PublicMessage:  "state transition disallowed",
		DetailsAllowed: true,
	},
	CodeInvalidTransition: {
		Kind:           KindState,
		HTTPStatus:     http.StatusBadRequest,
		PublicMessage:  "invalid status transition",
		DetailsAllowed: true,
	},
	CodeRateLimit: {
		Kind:          KindConflict,
		HTTPStatus:    http.StatusTooManyRequests,
		PublicMessage: "rate limit exceeded",
	},
	CodeInternal: {
		Kind:          KindInfrastructure,
		HTTPStatus:    http.StatusInternalServerError,
		Retryable:     true,
		PublicMessage: "internal server error",
	},
	CodeDependency: {
		Kind:           KindInfrastructure,
		HTTPStatus:     http.StatusServiceUnavailable,
		Retryable:      true,
		PublicMessage:  "dependency unavailable",
		DetailsAllowed: true,
	},
}

func MetadataFor(code Code) Metadata {
	if meta, ok := metadataByCode[code]; ok {
		return meta
	}
	return metadataByCode[CodeInternal]
}

type Error struct {
	code    Code
	message string
	details any
	cause   error
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Newf(code Code, format string, args ...any) *Error {
	return &Error{code: code, message: fmt.Sprintf(format, args...)}
}

func Wrap(code Code, err error, message string) *Error {
	if err == nil {
		return New(code, message)
	}
	return &Error{code: code, message: message, cause: err}
}

func (e *Error) Code() Code {
	if e == nil {
		return CodeInternal
	}
	return e.code
}

func (e *Error) Kind() Kind {
	return MetadataFor(e.Code()).Kind
}

func (e *Error) Message() string {
	if e == nil {
		return ""
	}
	return e.message
}

func (e *Error) Details() any {
	if e == nil {
		return nil
	}
	return e.details
}

func (e *Error) WithDetails(details any) *Error {
	if e == nil {
		return nil
	}
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s", e.code, e.message)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.cause
}

func As(err error) *Error {
	if err == nil {
		return nil
	}
	var typed *Error
	if stdErrors.As(err, &typed) {
		return typed
	}
	return nil
}

// CodeOf returns the code carried by err, or CodeInternal for untyped errors.
func CodeOf(err error) Code {
	if typed := As(err); typed != nil {
		return typed.Code()
	}
	return CodeInternal
}

// IsKind reports whether err carries a code of the given kind.
func IsKind(err error, kind Kind) bool {
	if err == nil {
		return false
	}
	return MetadataFor(CodeOf(err)).Kind == kind
}
