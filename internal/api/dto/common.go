package dto

// ErrorResponse is the body of every non-2xx answer.
type ErrorResponse struct {
	Message      string            `json:"message"`
	Errors       map[string]string `json:"errors,omitempty"`
	CurrentCount *int64            `json:"current_count,omitempty"`
	Limit        *int              `json:"limit,omitempty"`
}

type MessageResponse struct {
	Message string `json:"message"`
}
