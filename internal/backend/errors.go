package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"
)

// APIError описывает ответ бэкенда с кодом ошибки.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("backend responded with status %d", e.Status)
	}
	return fmt.Sprintf("backend responded with status %d: %s", e.Status, e.Message)
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{Status: status, Message: extractMessage(body)}
}

// extractMessage достаёт текст ошибки из тела ответа: поле message,
// затем error, иначе само тело, если это не JSON-объект.
func extractMessage(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if gjson.ValidBytes(body) {
		parsed := gjson.ParseBytes(body)
		switch {
		case parsed.Type == gjson.String:
			return parsed.String()
		case parsed.IsObject():
			for _, key := range []string{"message", "error", "detail"} {
				if v := parsed.Get(key); v.Exists() && v.String() != "" {
					return v.String()
				}
			}
			return ""
		}
	}
	return strings.TrimSpace(string(body))
}

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// IsNotFound сообщает, что бэкенд ответил 404.
func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

// IsForbidden сообщает, что бэкенд ответил 403.
func IsForbidden(err error) bool { return statusOf(err) == http.StatusForbidden }

// IsUnauthorized сообщает, что бэкенд ответил 401.
func IsUnauthorized(err error) bool { return statusOf(err) == http.StatusUnauthorized }

// IsAPIError сообщает, что ошибка пришла от бэкенда, а не от транспорта.
func IsAPIError(err error) bool { return statusOf(err) != 0 }

// Message возвращает сообщение бэкенда из ошибки или fallback, если сообщения нет.
func Message(err error, fallback string) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	return fallback
}
