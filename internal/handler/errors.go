package handler

import (
	"context"
	"errors"
	"net/http"

	"gridscope/internal/domain"
	"gridscope/internal/session"
)

// statusFor maps a domain error to its HTTP status
func statusFor(err error) int {
	var (
		shape    *domain.InvalidShapeError
		readOnly *domain.ReadOnlyFieldError
		refs     *domain.ReferenceResolutionError
		network  *domain.NetworkError
		calc     *domain.CalculationError
		tooLarge *http.MaxBytesError
	)

	switch {
	case domain.IsGuardViolation(err),
		errors.Is(err, domain.ErrCalculationInFlight),
		errors.Is(err, domain.ErrNodeExists):
		return http.StatusConflict
	case errors.As(err, &shape), errors.As(err, &readOnly), errors.As(err, &refs):
		return http.StatusBadRequest
	case errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge
	case errors.Is(err, domain.ErrNodeNotFound),
		errors.Is(err, domain.ErrLinkNotFound),
		errors.Is(err, domain.ErrRunNotFound):
		return http.StatusNotFound
	case errors.As(err, &network):
		return http.StatusBadGateway
	case errors.As(err, &calc):
		return http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrNoBackend), session.IsClosed(err):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
