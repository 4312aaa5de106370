package response

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kirillqa17/vpn-api/pkg/apperrors"
)

type errorBody struct {
	Code    apperrors.Kind `json:"code"`
	Message string         `json:"message"`
}

// ErrorResponse is the JSON envelope for every failed request.
type ErrorResponse struct {
	Error errorBody `json:"error"`
}

func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}

// Error writes err using the status code of its kind. Internal errors are
// logged with their cause and reported without it.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	kind := apperrors.KindOf(err)
	status := StatusFor(kind)

	message := err.Error()
	if appErr, ok := apperrors.As(err); ok {
		message = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"kind", kind,
			"error", err,
		)
		if kind == apperrors.KindInternal {
			message = "internal error"
		}
	}

	JSON(w, status, ErrorResponse{Error: errorBody{Code: kind, Message: message}})
}

// Body builds the error envelope for err without choosing a status.
func Body(err *apperrors.Error) ErrorResponse {
	return ErrorResponse{Error: errorBody{Code: err.Kind, Message: err.Message}}
}

func BadRequest(w http.ResponseWriter, message string) {
	JSON(w, http.StatusBadRequest, ErrorResponse{Error: errorBody{Code: apperrors.KindValidation, Message: message}})
}

func StatusFor(kind apperrors.Kind) int {
	switch kind {
	case apperrors.KindNotFound:
		return http.StatusNotFound
	case apperrors.KindConflict:
		return http.StatusConflict
	case apperrors.KindValidation:
		return http.StatusBadRequest
	case apperrors.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
