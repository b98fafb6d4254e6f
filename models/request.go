package models

// ChatStreamRequest is bound from the query string of GET /chat_stream.
// ConversationID is accepted for client compatibility; no per-conversation
// state is kept and it never reaches the model.
type ChatStreamRequest struct {
	Message        string `form:"message"`
	ConversationID string `form:"conversation_id"`

	// RequestID is filled in by the handler for log correlation.
	RequestID string `form:"-"`
}
