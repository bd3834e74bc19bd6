package api

import (
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	"github.com/hackgods/telehealth-scheduling/internal/apperror"
)

const maxBodyBytes = 1 << 20

var validate = validator.New(validator.WithRequiredStructEnabled())

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// decodeBody reads a JSON body into dst and runs struct validation on it.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
		return false
	}
	if err := validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", formatValidationError(err))
		return false
	}
	return true
}

func formatValidationError(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err.Error()
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, field+" is required")
		case "oneof":
			msgs = append(msgs, field+" must be one of "+strings.Join(strings.Fields(fe.Param()), ", "))
		case "uuid":
			msgs = append(msgs, field+" must be a valid UUID")
		case "min", "max":
			msgs = append(msgs, field+" must have "+fe.Tag()+" "+fe.Param()+" items")
		default:
			msgs = append(msgs, field+" is invalid")
		}
	}
	return strings.Join(msgs, ", ")
}

var statusByKind = map[apperror.Kind]int{
	apperror.KindAuthorization: http.StatusForbidden,
	apperror.KindNotFound:      http.StatusNotFound,
	apperror.KindValidation:    http.StatusUnprocessableEntity,
}

// writeResult writes data with status, or maps err to an error response. A
// side effect error still returns data along with a warning.
func writeResult(w http.ResponseWriter, r *http.Request, logger *zap.Logger, status int, data any, err error) {
	if err == nil {
		writeJSON(w, status, Envelope{Data: data})
		return
	}

	kind := apperror.KindOf(err)
	if kind == apperror.KindSideEffect {
		logger.Warn("request completed with failed side effects",
			zap.String("request_id", GetRequestID(r.Context())),
			zap.Error(err),
		)
		writeJSON(w, status, Envelope{Data: data, Warning: apperror.Message(err)})
		return
	}

	if code, ok := statusByKind[kind]; ok {
		writeError(w, code, strings.ToLower(string(kind)), apperror.Message(err))
		return
	}

	logger.Error("request failed",
		zap.String("request_id", GetRequestID(r.Context())),
		zap.String("path", r.URL.Path),
		zap.Error(err),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
