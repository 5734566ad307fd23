package looker

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx response from the platform.
type APIError struct {
	Method  string
	Path    string
	Status  int
	Message string
	Codes   []string
	Body    []byte
}

func (e *APIError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("%s %s: %d %s", e.Method, e.Path, e.Status, msg)
}

// HasCode reports whether the server tagged the error with code.
func (e *APIError) HasCode(code string) bool {
	for _, c := range e.Codes {
		if c == code {
			return true
		}
	}
	return false
}

func newAPIError(method, path string, status int, body []byte) *APIError {
	e := &APIError{Method: method, Path: path, Status: status, Body: body}
	if gjson.ValidBytes(body) {
		e.Message = gjson.GetBytes(body, "message").String()
		for _, c := range gjson.GetBytes(body, "errors.#.code").Array() {
			e.Codes = append(e.Codes, c.String())
		}
	}
	return e
}

// IsNotFound reports whether err is a 404 from the platform.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}
