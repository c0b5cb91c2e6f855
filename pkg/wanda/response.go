package wanda

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/tcsc-project/tcsc/pkg/errors"
)

// Response is an HTTP response with its body fully read
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// OK reports a 2xx status
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Decode unmarshals the body; a malformed body is a ResponseError
func (r *Response) Decode(out interface{}) error {
	if err := json.Unmarshal(r.Body, out); err != nil {
		return errors.NewResponseError("could not decode response body", err).
			WithContext("status", r.StatusCode)
	}
	return nil
}

// SubErrors returns the structured errors carried by an error response
func (r *Response) SubErrors() []errors.SubError {
	doc := parseErrorDocument(r.Body)
	subs := make([]errors.SubError, 0, len(doc.Errors))
	for _, e := range doc.Errors {
		subs = append(subs, e.subError())
	}
	return subs
}

// ErrorTitles lists the titles of the structured errors
func (r *Response) ErrorTitles() []string {
	doc := parseErrorDocument(r.Body)
	titles := make([]string, 0, len(doc.Errors))
	for _, e := range doc.Errors {
		if e.Title != "" {
			titles = append(titles, e.Title)
		}
	}
	return titles
}

// ErrorDetail returns error.detail of a 422 response, if any
func (r *Response) ErrorDetail() string {
	doc := parseErrorDocument(r.Body)
	if doc.Error == nil {
		return ""
	}
	return doc.Error.Detail
}

// StatusError is the ConnectionError for an unclassified non-2xx response
func (r *Response) StatusError() error {
	return errors.NewConnectionError(fmt.Sprintf("failed with status code %d: %s", r.StatusCode, strings.TrimSpace(string(r.Body))), nil).
		WithContext("status", r.StatusCode).
		WithContext("body", string(r.Body))
}
