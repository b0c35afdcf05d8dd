// internal/models/models.go
package models

// Mode identifies which advisors a chat request engages.
type Mode string

const (
	ModeCouncil    Mode = "council"
	ModeGPTOnly    Mode = "gpt-only"
	ModeClaudeOnly Mode = "claude-only"
	// ModeDegraded is response-only: council was requested but exactly one
	// advisor failed, so synthesis was skipped.
	ModeDegraded Mode = "degraded"
)

// Valid reports whether m is an acceptable requested mode. Degraded is
// never requestable; it is assigned by the pipeline.
func (m Mode) Valid() bool {
	switch m {
	case ModeCouncil, ModeGPTOnly, ModeClaudeOnly:
		return true
	}
	return false
}

// ImageAttachment is a base64-encoded image sent with a user message.
type ImageAttachment struct {
	Data      string `json:"data"`
	MediaType string `json:"media_type"`
}

// HistoryMessage is one conversation turn as fed to the advisors. Assistant
// turns carry only previously published consensus text, never raw advisor
// output.
type HistoryMessage struct {
	Role    string            `json:"role"` // "user" or "assistant"
	Content string            `json:"content"`
	Images  []ImageAttachment `json:"images,omitempty"`
}

// ChatRequest is the wire shape of POST /api/chat.
type ChatRequest struct {
	ThreadID string            `json:"thread_id"`
	Message  string            `json:"message"`
	Mode     Mode              `json:"mode"`
	Arbiter  bool              `json:"arbiter"`
	Images   []ImageAttachment `json:"images,omitempty"`
}

// ChatResponse is the wire shape of a successful POST /api/chat.
type ChatResponse struct {
	ThreadID       string      `json:"thread_id"`
	MessageID      string      `json:"message_id"`
	GPTResponse    *string     `json:"gpt_response"`
	ClaudeResponse *string     `json:"claude_response"`
	MergeResult    interface{} `json:"merge_result"`
	ArbiterReview  *string     `json:"arbiter_review"`
	Mode           Mode        `json:"mode"`
	TokensUsed     int         `json:"tokens_used"`
	EstimatedCost  string      `json:"estimated_cost"`
}

// ThreadSummary is one row of GET /api/threads.
type ThreadSummary struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// StoredMessage is one persisted message of a thread.
type StoredMessage struct {
	ID             string  `json:"id"`
	Role           string  `json:"role"`
	Content        string  `json:"content"`
	GPTResponse    *string `json:"gpt_response,omitempty"`
	ClaudeResponse *string `json:"claude_response,omitempty"`
	MergeResult    *string `json:"merge_result,omitempty"` // serialized artifact blob
	ArbiterReview  *string `json:"arbiter_review,omitempty"`
	Mode           string  `json:"mode"`
	TokensUsed     int     `json:"tokens_used"`
	EstimatedCost  float64 `json:"estimated_cost"`
	CreatedAt      string  `json:"created_at"`
}
