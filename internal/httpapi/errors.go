package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/relayim/socialcore/internal/status"
)

// errorBody is the JSON shape of every non-2xx response.
type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// writeJSON writes a JSON response with the given status code
func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to encode json response")
	}
}

// writeError writes an ad-hoc error with an explicit HTTP status.
func writeError(w http.ResponseWriter, httpCode int, message string) {
	writeJSON(w, httpCode, errorBody{Code: http.StatusText(httpCode), Message: message})
}

// httpStatusOf maps every response code to exactly one HTTP status.
func httpStatusOf(code status.Code) int {
	switch code {
	case status.OK:
		return http.StatusOK
	case status.NoContent:
		return http.StatusNoContent
	case status.AlreadyUpToDate:
		return http.StatusNotModified
	case status.IllegalArgument:
		return http.StatusBadRequest
	case status.BlockedUserSendFriendRequest,
		status.RecallingFriendRequestDisabled,
		status.NotSenderToRecallFriendRequest,
		status.NotRecipientToUpdateFriendRequest:
		return http.StatusForbidden
	case status.CreateExistingFriendRequest,
		status.RecallNonPendingFriendRequest,
		status.UpdateNonPendingFriendRequest:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondErr maps a service error onto the wire. Internal errors are logged
// with detail and surfaced without it.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	code := status.CodeOf(err)
	httpCode := httpStatusOf(code)
	if httpCode == http.StatusInternalServerError {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, httpCode, errorBody{Code: status.ServerInternalError.String()})
		return
	}
	if httpCode == http.StatusNoContent || httpCode == http.StatusNotModified {
		w.WriteHeader(httpCode)
		return
	}
	body := errorBody{Code: code.String()}
	var se *status.Error
	if errors.As(err, &se) {
		body.Message = se.Detail
	}
	writeJSON(w, httpCode, body)
}
