package http

import (
	"errors"
	"net/http"

	"assessment-session-service/internal/domain"
)

// Redirect hints tell clients which read-only view to move to.
const (
	viewDashboard = "dashboard"
	viewResult    = "result"
)

// failure is the user-facing shape of an error. Internal detail never leaves the process.
type failure struct {
	status   int
	message  string
	redirect string
}

func describe(err error) failure {
	switch {
	case errors.Is(err, domain.ErrAlreadyAttempted):
		return failure{http.StatusConflict, "You have already attempted this assessment.", viewResult}
	case errors.Is(err, domain.ErrAlreadyFinalized):
		return failure{http.StatusConflict, "This attempt has already been submitted.", viewResult}
	case errors.Is(err, domain.ErrAttemptClosed):
		return failure{http.StatusConflict, "This attempt is closed.", viewResult}
	case errors.Is(err, domain.ErrArchived):
		return failure{http.StatusGone, "This assessment is no longer accepting attempts.", viewDashboard}
	case errors.Is(err, domain.ErrNotFound):
		return failure{http.StatusNotFound, "This assessment is not available.", viewDashboard}
	case errors.Is(err, domain.ErrDuplicateResponse):
		return failure{http.StatusConflict, "This question was already answered.", ""}
	case errors.Is(err, domain.ErrOutOfOrder):
		return failure{http.StatusConflict, "Answer the current question first.", ""}
	case errors.Is(err, domain.ErrInvalidOption):
		return failure{http.StatusBadRequest, "Select one of the listed options.", ""}
	case errors.Is(err, domain.ErrForbidden):
		return failure{http.StatusForbidden, "You are not allowed to do that.", ""}
	case errors.Is(err, domain.ErrUnknownRole):
		return failure{http.StatusBadRequest, "Unknown role.", ""}
	case errors.Is(err, domain.ErrPersistence):
		return failure{http.StatusServiceUnavailable, "Could not save right now. Please try again.", ""}
	}
	return failure{http.StatusInternalServerError, "Something went wrong. Please try again.", ""}
}
