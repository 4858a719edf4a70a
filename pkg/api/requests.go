package api

// RequestSource identifies the transport a request arrived on. It is carried
// through to usage metrics for attribution and has no routing effect.
type RequestSource string

const (
	SourceAPI       RequestSource = "api"
	SourceWebsocket RequestSource = "websocket"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// ChatRequest is one logical call to the gateway. Either Messages or the
// legacy Prompt field carries the user input; Normalize folds Prompt into
// Messages so downstream code only ever sees one representation.
type ChatRequest struct {
	// The provider hosting the model (e.g. "bedrock").
	Provider string `json:"provider" binding:"required"`

	// Model id or alias. Aliases are resolved through the registry.
	ModelID string `json:"modelId" binding:"required"`

	// Vendor is derived from the model id prefix; clients may omit it.
	Vendor string `json:"vendor,omitempty"`

	Messages []ChatMessage `json:"messages,omitempty" binding:"omitempty,dive"`

	// Prompt is the legacy single-string input. Mutually canonicalized with
	// Messages during normalization.
	Prompt string `json:"prompt,omitempty"`

	SystemPrompt string `json:"systemPrompt,omitempty"`

	// Modality of the request, defaults to "text-to-text". The short alias
	// "text" is accepted and normalized.
	Modality string `json:"modality,omitempty"`

	// Generation parameters. Zero values defer to vendor defaults.
	Temperature   *float64 `json:"temperature,omitempty"`
	MaxTokens     int      `json:"maxTokens,omitempty"`
	TopP          *float64 `json:"topP,omitempty"`
	StopSequences []string `json:"stopSequences,omitempty"`

	Stream bool `json:"stream,omitempty"`

	// TokenGrouping batches this many semantic stream pieces into one
	// emitted chunk. Defaults to 1 (emit immediately).
	TokenGrouping int `json:"tokenGrouping,omitempty"`

	ConversationID string `json:"conversationId,omitempty"`
	UserID         string `json:"userId,omitempty"`

	// Metadata is opaque passthrough; the gateway never inspects it.
	Metadata map[string]interface{} `json:"metadata,omitempty"`

	Source RequestSource `json:"source,omitempty"`
}

type ChatMessage struct {
	Role    Role   `json:"role" binding:"required,oneof=user assistant system"`
	Content string `json:"content"`
}

// Validate checks the structural invariants that hold before any I/O:
// a resolvable model identity, at least one input representation, and
// conversation identity scoped to a user.
func (r *ChatRequest) Validate() error {
	if r.ModelID == "" {
		return ValidationError("modelId is required")
	}
	if r.Provider == "" {
		return ValidationError("provider is required")
	}
	if len(r.Messages) == 0 && r.Prompt == "" && r.ConversationID == "" {
		return ValidationError("request must carry messages, a prompt, or a conversationId")
	}
	if r.ConversationID != "" && r.UserID == "" {
		return ValidationError("conversationId requires userId")
	}
	return nil
}

// Normalize folds the legacy prompt into the message list so that exactly
// one input representation is canonical, and expands the modality alias.
func (r *ChatRequest) Normalize() {
	if r.Prompt != "" {
		r.Messages = append(r.Messages, ChatMessage{Role: RoleUser, Content: r.Prompt})
		r.Prompt = ""
	}
	switch r.Modality {
	case "", "text":
		r.Modality = "text-to-text"
	}
	if r.TokenGrouping <= 0 {
		r.TokenGrouping = 1
	}
	if r.Source == "" {
		r.Source = SourceAPI
	}
}

// Clone returns a shallow copy with its own message slice, so history
// merging never mutates the caller's request.
func (r *ChatRequest) Clone() *ChatRequest {
	out := *r
	out.Messages = make([]ChatMessage, len(r.Messages))
	copy(out.Messages, r.Messages)
	return &out
}
