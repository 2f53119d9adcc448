package api

import (
	"context"
	"errors"
	"net/http"

	"eventmarket/internal/apperrors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

var (
	errMissingCredentials = errors.New("missing api key headers")
	errInvalidAPIKey      = errors.New("invalid api key")
	errInvalidExtra       = errors.New("invalid extra header")
	errPermissionDenied   = errors.New("permission denied")
	errRateLimited        = errors.New("rate limit exceeded")
)

// httpStatus maps an error to the status code returned to HTTP callers.
func httpStatus(err error) int {
	switch {
	case errors.Is(err, errPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, errMissingCredentials), errors.Is(err, errInvalidAPIKey), errors.Is(err, errInvalidExtra):
		return http.StatusUnauthorized
	case errors.Is(err, errRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusBadGateway
	}
}

// grpcError converts err into a status error with the matching code.
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(grpcCode(err), err.Error())
}

func grpcCode(err error) codes.Code {
	switch {
	case errors.Is(err, errPermissionDenied):
		return codes.PermissionDenied
	case errors.Is(err, errMissingCredentials), errors.Is(err, errInvalidAPIKey), errors.Is(err, errInvalidExtra):
		return codes.Unauthenticated
	case errors.Is(err, errRateLimited):
		return codes.ResourceExhausted
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	}

	switch apperrors.KindOf(err) {
	case apperrors.KindNotFound:
		return codes.NotFound
	case apperrors.KindConflict:
		return codes.AlreadyExists
	case apperrors.KindValidation:
		return codes.InvalidArgument
	case apperrors.KindTimeout:
		return codes.DeadlineExceeded
	default:
		return codes.Unavailable
	}
}
