package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"semantic_cache/engine"
)

const (
	sourceHeader = "X-Cache-Source"
	defaultModel = "semantic-cache"
	// streamed answers are split into chunks of this many runes
	streamChunkRunes = 20
)

func (s *Server) handleAsk(c *gin.Context) {
	var req AskRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "request body must be {\"question\": string}"})
		return
	}

	res, ok := s.answer(c, req.Question)
	if !ok {
		return
	}
	c.Header(sourceHeader, string(res.Source))
	c.JSON(http.StatusOK, AskResponse{
		Answer:  res.Answer,
		Source:  string(res.Source),
		Latency: string(res.Latency),
		Score:   res.Score,
	})
}

func (s *Server) handleChatCompletion(c *gin.Context) {
	var req ChatCompletionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.logger.Debug("fail to parse chat request", zap.Error(err))
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "failed to parse chat completion request"})
		return
	}

	res, ok := s.answer(c, userPrompt(req.Messages))
	if !ok {
		return
	}

	model := req.Model
	if model == "" {
		model = defaultModel
	}
	c.Header(sourceHeader, string(res.Source))
	if req.Stream {
		s.writeStream(c, res.Answer, model, string(res.Source))
		return
	}

	c.JSON(http.StatusOK, ChatCompletionResponse{
		ID:      s.completionID(string(res.Source)),
		Object:  "chat.completion",
		Created: s.now().Unix(),
		Model:   model,
		Choices: []ChatChoice{{
			Index:        0,
			Message:      Message{Role: "assistant", Content: res.Answer},
			FinishReason: "stop",
		}},
	})
}

// answer runs the engine and writes a 400 for blank questions
func (s *Server) answer(c *gin.Context, question string) (*engine.Result, bool) {
	res, err := s.answerer.Answer(c.Request.Context(), question)
	if errors.Is(err, engine.ErrInvalidInput) {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "question must not be empty"})
		return nil, false
	}
	if err != nil {
		s.logger.Error("fail to answer question", zap.Error(err))
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal error"})
		return nil, false
	}
	if res.Cause != nil {
		s.logger.Warn("degraded answer", zap.String("source", string(res.Source)), zap.Error(res.Cause))
	}
	return res, true
}

// userPrompt joins the content of every user message
func userPrompt(messages []Message) string {
	var parts []string
	for _, m := range messages {
		if m.Role == "user" {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}

// writeStream replays a complete answer as OpenAI stream chunks
func (s *Server) writeStream(c *gin.Context, answer string, model string, source string) {
	w := c.Writer
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	id := s.completionID(source)
	created := s.now().Unix()
	chunk := func(delta ChatDelta, finish *string) ChatStreamResponse {
		return ChatStreamResponse{
			ID:      id,
			Object:  "chat.completion.chunk",
			Created: created,
			Model:   model,
			Choices: []ChatStreamChoice{{Index: 0, Delta: delta, FinishReason: finish}},
		}
	}

	runes := []rune(answer)
	for i := 0; i < len(runes); i += streamChunkRunes {
		select {
		case <-c.Request.Context().Done():
			s.logger.Debug("client disconnected, stopping stream")
			return
		default:
		}
		end := min(i+streamChunkRunes, len(runes))
		writeEvent(w, chunk(ChatDelta{Content: string(runes[i:end])}, nil))
		w.Flush()
	}

	stop := "stop"
	writeEvent(w, chunk(ChatDelta{}, &stop))
	fmt.Fprint(w, "data: [DONE]\n\n")
	w.Flush()
}

func writeEvent(w gin.ResponseWriter, v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(w, "data: %s\n\n", data)
}

func (s *Server) completionID(source string) string {
	return fmt.Sprintf("chatcmpl-%s-%d", source, s.now().UnixNano())
}
