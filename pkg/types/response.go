package types

// SuccessEnvelope wraps every 2xx payload, whether an inventory listing or a
// checkout redirect, as {"data": ...}.
type SuccessEnvelope struct {
	Data any `json:"data"`
}

// APIError is the client-facing error body.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// ErrorEnvelope wraps every non-2xx payload as {"error": {...}}.
type ErrorEnvelope struct {
	Error APIError `json:"error"`
}
