package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Run stream event names.
const (
	eventMessageDelta   = "thread.message.delta"
	eventRunFailed      = "thread.run.failed"
	eventRunCancelled   = "thread.run.cancelled"
	eventRunExpired     = "thread.run.expired"
	eventRunIncomplete  = "thread.run.incomplete"
	eventRequiresAction = "thread.run.requires_action"
	eventError          = "error"
	eventDone           = "done"

	maxEventSize = 4 << 20
)

// RunError is a run that ended without completing.
type RunError struct {
	Status  string
	Code    string
	Message string
}

func (e *RunError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("run %s", e.Status)
	}
	if e.Code == "" {
		return fmt.Sprintf("run %s: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("run %s: %s (%s)", e.Status, e.Message, e.Code)
}

type runRequest struct {
	AssistantID string `json:"assistant_id"`
	Stream      bool   `json:"stream"`
}

type messageDelta struct {
	Delta struct {
		Content []struct {
			Type string `json:"type"`
			Text *struct {
				Value string `json:"value"`
			} `json:"text"`
		} `json:"content"`
	} `json:"delta"`
}

type runStatus struct {
	Status    string `json:"status"`
	LastError *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"last_error"`
	IncompleteDetails *struct {
		Reason string `json:"reason"`
	} `json:"incomplete_details"`
}

type apiError struct {
	Error *struct {
		Message string `json:"message"`
		Code    any    `json:"code"`
	} `json:"error"`
	Message string `json:"message"`
}

// StreamRun starts a run of assistantID on threadID and passes every text
// delta of the assistant's reply to emit. It returns when the run stream
// ends, the run fails, or emit returns an error.
func (c *Client) StreamRun(ctx context.Context, threadID, assistantID string, emit func(delta string) error) error {
	body, err := json.Marshal(runRequest{AssistantID: assistantID, Stream: true})
	if err != nil {
		return err
	}

	endpoint := c.baseURL + "/threads/" + url.PathEscape(threadID) + "/runs"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build run request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("OpenAI-Beta", "assistants=v2")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeAPIError(resp)
	}

	return readRunEvents(resp.Body, emit)
}

// readRunEvents parses a server-sent event stream of run events.
func readRunEvents(r io.Reader, emit func(string) error) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxEventSize)

	var (
		event string
		data  strings.Builder
	)

	dispatch := func() (bool, error) {
		defer func() {
			event = ""
			data.Reset()
		}()
		if event == "" && data.Len() == 0 {
			return false, nil
		}
		return handleRunEvent(event, data.String(), emit)
	}

	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			done, err := dispatch()
			if err != nil || done {
				return err
			}
		case strings.HasPrefix(line, ":"):
		case strings.HasPrefix(line, "event:"):
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if data.Len() > 0 {
				data.WriteByte('\n')
			}
			data.WriteString(strings.TrimPrefix(strings.TrimPrefix(line, "data:"), " "))
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read run stream: %w", err)
	}

	_, err := dispatch()
	return err
}

func handleRunEvent(event, data string, emit func(string) error) (bool, error) {
	switch event {
	case eventMessageDelta:
		var md messageDelta
		if err := json.Unmarshal([]byte(data), &md); err != nil {
			return false, fmt.Errorf("decode message delta: %w", err)
		}
		for _, part := range md.Delta.Content {
			if part.Type != "text" || part.Text == nil || part.Text.Value == "" {
				continue
			}
			if err := emit(part.Text.Value); err != nil {
				return false, err
			}
		}
		return false, nil

	case eventRunFailed, eventRunCancelled, eventRunExpired, eventRunIncomplete, eventRequiresAction:
		var rs runStatus
		_ = json.Unmarshal([]byte(data), &rs)
		runErr := &RunError{Status: strings.TrimPrefix(event, "thread.run.")}
		switch {
		case rs.LastError != nil:
			runErr.Code = rs.LastError.Code
			runErr.Message = rs.LastError.Message
		case rs.IncompleteDetails != nil:
			runErr.Message = rs.IncompleteDetails.Reason
		}
		return true, runErr

	case eventError:
		return true, &RunError{Status: "error", Message: errorMessage([]byte(data))}

	case eventDone:
		return true, nil

	default:
		return false, nil
	}
}

func decodeAPIError(resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	msg := errorMessage(body)
	if msg == "" {
		msg = http.StatusText(resp.StatusCode)
	}
	return fmt.Errorf("start run: status %d: %s", resp.StatusCode, msg)
}

func errorMessage(body []byte) string {
	var ae apiError
	if err := json.Unmarshal(body, &ae); err != nil {
		return strings.TrimSpace(string(body))
	}
	if ae.Error != nil {
		return ae.Error.Message
	}
	return ae.Message
}
