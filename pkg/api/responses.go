package api

// ChatResponse is one logical result, or one chunk of a streamed result.
type ChatResponse struct {
	// Content may be empty for a pure metadata/final chunk.
	Content  string           `json:"content"`
	Metadata ResponseMetadata `json:"metadata"`
}

type ResponseMetadata struct {
	ModelID  string `json:"modelId"`
	Vendor   string `json:"vendor,omitempty"`
	Provider string `json:"provider,omitempty"`

	Usage Usage `json:"usage"`

	// IsStreaming is false on the final chunk of a stream and on every
	// non-streamed response.
	IsStreaming bool `json:"isStreaming"`

	// PacketNumber increases monotonically within one streamed call.
	PacketNumber int `json:"packetNumber,omitempty"`

	// ConversationID is set on conversation-aware calls.
	ConversationID string `json:"conversationId,omitempty"`
}

type Usage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

// StreamResult is one element of a streamed response sequence. Exactly one
// of Response or Err is set; an Err element is terminal.
type StreamResult struct {
	Response *ChatResponse
	Err      error
}
