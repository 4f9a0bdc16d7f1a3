package identity

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

const maxErrorBody = 4096

// Error is a non-2xx response from the remote service.
type Error struct {
	Service    string
	Method     string
	URL        string
	StatusCode int
	Code       string
	Message    string
	Details    string
}

func (e *Error) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("%s: %s %s: http %d: %s", e.Service, e.Method, e.URL, e.StatusCode, msg)
}

// remoteError covers both the plain {"message": ...} body and the
// {"error": {...}} envelope returned by the identity service.
type remoteError struct {
	Message string `json:"message"`
	Error   *struct {
		Code             string `json:"code"`
		Message          string `json:"message"`
		Details          string `json:"details"`
		ValidationErrors []struct {
			Message string   `json:"message"`
			Members []string `json:"members"`
		} `json:"validationErrors"`
	} `json:"error"`
}

func errorFromResponse(req *http.Request, resp *http.Response, service string) (error, bool) {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil, false
	}

	e := &Error{
		Service:    service,
		Method:     req.Method,
		URL:        req.URL.String(),
		StatusCode: resp.StatusCode,
	}
	b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	var body remoteError
	if len(b) > 0 && json.Unmarshal(b, &body) == nil {
		e.Message = body.Message
		if env := body.Error; env != nil {
			e.Code = env.Code
			e.Details = env.Details
			if env.Message != "" {
				e.Message = env.Message
			}
			if e.Message == "" && len(env.ValidationErrors) > 0 {
				e.Message = env.ValidationErrors[0].Message
			}
		}
	}
	return e, true
}

func decodeResponseAsJSON(resp *http.Response, body io.Reader, output interface{}) error {
	if output == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, body)
		return nil
	}
	if err := json.NewDecoder(body).Decode(output); err != nil {
		if err == io.EOF {
			return nil
		}
		return errors.Wrapf(err, "decoding response from %s", resp.Request.URL)
	}
	return nil
}

func isStatus(err error, status int) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.StatusCode == status
	}
	return false
}

// IsStatus reports whether err is a remote error with the given HTTP status.
func IsStatus(err error, status int) bool {
	return isStatus(err, status)
}

// MessageOf returns the server supplied message carried by err, if any.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return strings.TrimSpace(e.Message)
	}
	return ""
}

// IsRemote reports whether err came back from the service as a response,
// as opposed to a transport or local failure.
func IsRemote(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

func isRetryable(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return false
	}
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}
