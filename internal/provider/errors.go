package provider

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is an error response from the identity provider. The message is
// kept verbatim so callers can classify it against known provider phrasings.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned status %d", e.Status)
	}
	return e.Message
}

// errorPayload covers the JSON shapes the provider uses for failures.
type errorPayload struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (p errorPayload) text() string {
	switch {
	case p.ErrorDescription != "":
		return p.ErrorDescription
	case p.Msg != "":
		return p.Msg
	case p.Message != "":
		return p.Message
	default:
		return p.Error
	}
}

// parseErrorResponse drains the body of a non-2xx response into an APIError.
func parseErrorResponse(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	if err != nil {
		return &APIError{Status: resp.StatusCode}
	}

	var payload errorPayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return &APIError{Status: resp.StatusCode}
	}

	return &APIError{Status: resp.StatusCode, Message: payload.text()}
}
