// Package envelope implements the uniform {e, d} response wrapper shared
// between the auth service and whatever transport sits in front of it.
// An error code of zero always means success.
package envelope

import "encoding/json"

// Transport-level codes. Operation-specific codes live with the service
// that owns them.
const (
	CodeOK           = 0
	CodeInternal     = 1
	CodeUnauthorized = 2
)

// Response is the wire shape of every service outcome.
type Response struct {
	Code int `json:"e"`
	Data any `json:"d,omitempty"`
}

// OK wraps data in a success response.
func OK(data any) Response { return Response{Code: CodeOK, Data: data} }

// Err returns a failure response carrying only the code.
func Err(code int) Response { return Response{Code: code} }

// Fail returns a failure response with diagnostic data attached.
func Fail(code int, data any) Response { return Response{Code: code, Data: data} }

// IsSuccess reports whether r represents a successful outcome.
func IsSuccess(r Response) bool { return r.Code == CodeOK }

// String renders the response as compact JSON, mainly for logs and tests.
func (r Response) String() string {
	b, err := json.Marshal(r)
	if err != nil {
		return `{"e":1}`
	}
	return string(b)
}
