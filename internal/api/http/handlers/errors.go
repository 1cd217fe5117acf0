package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/karma-nest/job-nest/internal/service"
	"github.com/karma-nest/job-nest/internal/session"
	apperrors "github.com/karma-nest/job-nest/pkg/util"
)

// mapServiceError converts service failures into the error envelope.
func mapServiceError(err error) error {
	switch {
	case errors.Is(err, service.ErrInvalidLogin):
		return apperrors.NewUnauthorized("Invalid username or password.")
	case errors.Is(err, service.ErrAccountNotVerified):
		return apperrors.NewBadRequest("ACCOUNT_NOT_VERIFIED", "Please verify your account to continue.")
	case errors.Is(err, service.ErrAlreadyVerified):
		return apperrors.NewBadRequest("ACCOUNT_ALREADY_VERIFIED", "Account already verified. Login to continue.")
	case errors.Is(err, service.ErrEmailTaken):
		return apperrors.NewConflict("Sorry, an account with this email already exists.", nil)
	case errors.Is(err, service.ErrAccountNotFound):
		return apperrors.NewDomainError("NOT_FOUND", "Account associated with email not found.", http.StatusNotFound, nil)
	case errors.Is(err, service.ErrPasswordReuse):
		return apperrors.NewBadRequest("PASSWORD_REUSE", "Sorry, new password cannot be the same as the old password.")
	case errors.Is(err, service.ErrNoActiveSession):
		return apperrors.NewBadRequest("NO_ACTIVE_SESSION", "No active session to log out from.")
	case errors.Is(err, session.ErrUnavailable),
		errors.Is(err, service.ErrSessionContended),
		errors.Is(err, context.DeadlineExceeded):
		return apperrors.NewUnavailable(err)
	default:
		return apperrors.NewInternalError(err)
	}
}
