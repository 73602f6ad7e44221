package models

// Caller is the authenticated identity behind a start request
type Caller struct {
	Subject string
	Email   string
}

// MetricIdentity returns the value used to tag the start metric
func (c *Caller) MetricIdentity() string {
	if c == nil {
		return "anonymous"
	}
	if c.Email != "" {
		return c.Email
	}
	if c.Subject != "" {
		return c.Subject
	}
	return "anonymous"
}

// ActivationRequest is the transient input of one start invocation
type ActivationRequest struct {
	RequestID string
	Caller    *Caller // nil when the endpoint runs unauthenticated
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Step    string `json:"step,omitempty"`
}
