package llm

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sashabaranov/go-openai"
)

// CompleteStream streams a chat completion, passing every content delta to
// emit. It stops at the first emit error.
func (c *Client) CompleteStream(ctx context.Context, model string, messages []ChatMessage, emit func(delta string) error) error {
	if model == "" {
		model = c.model
	}

	// Convert messages to OpenAI format
	reqMsgs := make([]openai.ChatCompletionMessage, len(messages))
	for i, msg := range messages {
		reqMsgs[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: reqMsgs,
		Stream:   true,
	})
	if err != nil {
		return fmt.Errorf("open completion stream: %w", err)
	}
	defer stream.Close()

	for {
		response, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive completion: %w", err)
		}

		if len(response.Choices) == 0 {
			continue
		}
		if delta := response.Choices[0].Delta.Content; delta != "" {
			if err := emit(delta); err != nil {
				return err
			}
		}
	}
}
