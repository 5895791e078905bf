package completion

type CompletionRequest struct {
	Model       string
	Question    string
	Temperature float64
	MaxTokens   int
}

type CompletionResponse struct {
	Content    string
	TokenUsage int
	Model      string
}
