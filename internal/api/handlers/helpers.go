package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/zatekoja/clearlink/backend/internal/api/middleware"
	"github.com/zatekoja/clearlink/backend/internal/application/services"
	"github.com/zatekoja/clearlink/backend/internal/domain/entities"
	"github.com/zatekoja/clearlink/backend/internal/infrastructure/observability"
	apperrors "github.com/zatekoja/clearlink/backend/pkg/errors"
)

func respondWithJSON(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(payload)
}

func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{
		"error": message,
	})
}

// respondWithAppError maps an error returned by a service onto a status code.
// Internal details are logged, never echoed.
func respondWithAppError(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		observability.ComponentLogger(r.Context(), "api").Error().Err(err).Msg("unhandled error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	switch appErr.Type {
	case apperrors.ErrorTypeNotFound:
		respondWithError(w, http.StatusNotFound, appErr.Message)
	case apperrors.ErrorTypeValidation:
		respondWithError(w, http.StatusBadRequest, appErr.Message)
	case apperrors.ErrorTypeConflict:
		respondWithError(w, http.StatusConflict, appErr.Message)
	case apperrors.ErrorTypeCapability:
		respondWithError(w, http.StatusUnprocessableEntity, appErr.Message)
	case apperrors.ErrorTypeUnauthorized:
		respondWithError(w, http.StatusForbidden, appErr.Message)
	case apperrors.ErrorTypeExternal:
		observability.ComponentLogger(r.Context(), "api").Error().Err(err).Msg("upstream failure")
		respondWithError(w, http.StatusBadGateway, "upstream service unavailable")
	default:
		observability.ComponentLogger(r.Context(), "api").Error().Err(err).Msg("internal error")
		respondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}

// outcomeStatus maps a command outcome onto a status code. The body is always the outcome.
func outcomeStatus(o services.Outcome) int {
	switch o.Result {
	case services.OutcomeSuccess:
		return http.StatusOK
	case services.OutcomeRejected:
		switch o.Reason {
		case services.ReasonForbidden:
			return http.StatusForbidden
		case services.ReasonResolutionLock:
			return http.StatusLocked
		case services.ReasonCapability:
			return http.StatusUnprocessableEntity
		}
		return http.StatusBadRequest
	default:
		if o.Reason == services.ReasonNotFound {
			return http.StatusNotFound
		}
		return http.StatusConflict
	}
}

func respondWithOutcome(w http.ResponseWriter, r *http.Request, o services.Outcome, err error) {
	if err != nil {
		respondWithAppError(w, r, err)
		return
	}
	respondWithJSON(w, outcomeStatus(o), o)
}

// principal returns the caller attached by the identity middleware
func principal(w http.ResponseWriter, r *http.Request) (entities.Principal, bool) {
	p, ok := middleware.PrincipalFromContext(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "authentication required")
	}
	return p, ok
}

func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperrors.NewValidationError("invalid request body: " + err.Error())
	}
	return nil
}
