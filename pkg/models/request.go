package models

// ChatMessage represents a single message in a chat conversation.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// OllamaChatRequest is an Ollama /api/chat request.
type OllamaChatRequest struct {
	Model    string         `json:"model"`
	Messages []ChatMessage  `json:"messages"`
	Stream   bool           `json:"stream"`
	Options  map[string]any `json:"options,omitempty"`
}

// OllamaChatResponse is a non-streaming Ollama /api/chat response.
type OllamaChatResponse struct {
	Model     string      `json:"model"`
	CreatedAt string      `json:"created_at"`
	Message   ChatMessage `json:"message"`
	Done      bool        `json:"done"`
	Error     string      `json:"error,omitempty"`
}

// QuestionRequest is the JSON body of the HTTP question endpoint.
type QuestionRequest struct {
	Question string `json:"question"`
}

// QuestionResponse is the JSON reply of the HTTP question endpoints.
type QuestionResponse struct {
	Response string `json:"response"`
	Question string `json:"question,omitempty"`
	Key      string `json:"key"`
	Cached   bool   `json:"cached"`
}
