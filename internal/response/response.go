// Package response writes the JSON envelope shared by every HTTP endpoint.
package response

import (
	"encoding/json"
	"net/http"

	"github.com/pesio-ai/be-plt-taskhub-identity/internal/logger"
	"github.com/pesio-ai/be-plt-taskhub-identity/pkg/errors"
)

// Envelope is the body of every response
type Envelope struct {
	Success    bool              `json:"success"`
	StatusCode int               `json:"statusCode"`
	Message    string            `json:"message"`
	Code       errors.Code       `json:"code,omitempty"`
	Data       any               `json:"data,omitempty"`
	Errors     map[string]string `json:"errors,omitempty"`
}

// JSON writes v with the given status
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// Success writes a success envelope. A nil data is sent as an empty object.
func Success(w http.ResponseWriter, status int, message string, data any) {
	if data == nil {
		data = struct{}{}
	}
	JSON(w, status, Envelope{
		Success:    true,
		StatusCode: status,
		Message:    message,
		Data:       data,
	})
}

// Error writes an error envelope for err. Internal causes are logged and
// replaced by the caller-safe message.
func Error(w http.ResponseWriter, log *logger.Logger, err error) {
	appErr := errors.As(err)
	status := appErr.HTTPStatus()

	if status >= http.StatusInternalServerError {
		log.Error().Err(err).Str("code", string(appErr.Code)).Msg(appErr.Message)
	}

	env := Envelope{
		StatusCode: status,
		Message:    appErr.Message,
		Code:       appErr.Code,
	}
	if appErr.Code == errors.ErrCodeValidation {
		env.Errors = appErr.Details
	}
	JSON(w, status, env)
}
