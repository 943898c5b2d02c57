package models

// GenerateRequest is the body of POST /generate. ChatID and Message.ID are
// generated by the client so that a retried request is idempotent.
type GenerateRequest struct {
	ChatID     string  `json:"id" binding:"required"`
	Message    Message `json:"message"`
	Visibility string  `json:"visibility,omitempty"`
}
