package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/r-osmani/bookpay/services/appointment-service/internal/apperr"
)

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorEnvelope struct {
	Error errorBody `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeError maps the taxonomy code to an HTTP status and emits the coded
// envelope. Uncoded errors surface as internal with the fallback message.
func writeError(w http.ResponseWriter, err error, fallback string) {
	code := apperr.CodeOf(err)
	writeJSON(w, statusForCode(code), errorEnvelope{Error: errorBody{
		Code:    string(code),
		Message: apperr.MessageOf(err, fallback),
	}})
}

func writeCode(w http.ResponseWriter, code apperr.Code, msg string) {
	writeJSON(w, statusForCode(code), errorEnvelope{Error: errorBody{
		Code:    string(code),
		Message: msg,
	}})
}

func statusForCode(code apperr.Code) int {
	switch code {
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeFailedPrecondition:
		return http.StatusConflict
	case apperr.CodeUnauthenticated:
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}
