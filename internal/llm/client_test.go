package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, mux *http.ServeMux) *Client {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{APIKey: "sk-test", BaseURL: srv.URL + "/v1", Model: "gpt-4o"})
	require.NoError(t, err)
	return c
}

func writeSSE(w http.ResponseWriter, events ...[2]string) {
	w.Header().Set("Content-Type", "text/event-stream")
	for _, ev := range events {
		fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev[0], ev[1])
	}
}

func TestNewClient_RequiresKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}

func TestStreamRun(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "thread_1", r.PathValue("id"))
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "assistants=v2", r.Header.Get("OpenAI-Beta"))

		var body runRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "asst_1", body.AssistantID)
		assert.True(t, body.Stream)

		writeSSE(w,
			[2]string{"thread.run.created", `{"id":"run_1","status":"queued"}`},
			[2]string{"thread.message.delta", `{"delta":{"content":[{"index":0,"type":"text","text":{"value":"Ciao"}}]}}`},
			[2]string{"thread.message.delta", `{"delta":{"content":[{"index":0,"type":"text","text":{"value":" mondo【1:0†doc】"}}]}}`},
			[2]string{"thread.run.completed", `{"id":"run_1","status":"completed"}`},
			[2]string{"done", "[DONE]"},
		)
	})
	c := newTestClient(t, mux)

	var deltas []string
	err := c.StreamRun(context.Background(), "thread_1", "asst_1", func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Ciao", " mondo【1:0†doc】"}, deltas)
}

func TestStreamRun_Failed(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			[2]string{"thread.message.delta", `{"delta":{"content":[{"type":"text","text":{"value":"part"}}]}}`},
			[2]string{"thread.run.failed", `{"status":"failed","last_error":{"code":"rate_limit_exceeded","message":"slow down"}}`},
		)
	})
	c := newTestClient(t, mux)

	var got strings.Builder
	err := c.StreamRun(context.Background(), "thread_1", "asst_1", func(d string) error {
		got.WriteString(d)
		return nil
	})

	var runErr *RunError
	require.True(t, errors.As(err, &runErr))
	assert.Equal(t, "failed", runErr.Status)
	assert.Equal(t, "rate_limit_exceeded", runErr.Code)
	assert.Equal(t, "part", got.String())
}

func TestStreamRun_HTTPError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"No thread found with id 'thread_x'."}}`))
	})
	c := newTestClient(t, mux)

	err := c.StreamRun(context.Background(), "thread_x", "asst_1", func(string) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "No thread found")
}

func TestStreamRun_EmitErrorStops(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/threads/{id}/runs", func(w http.ResponseWriter, r *http.Request) {
		writeSSE(w,
			[2]string{"thread.message.delta", `{"delta":{"content":[{"type":"text","text":{"value":"a"}}]}}`},
			[2]string{"thread.message.delta", `{"delta":{"content":[{"type":"text","text":{"value":"b"}}]}}`},
		)
	})
	c := newTestClient(t, mux)

	stop := errors.New("client gone")
	calls := 0
	err := c.StreamRun(context.Background(), "thread_1", "asst_1", func(string) error {
		calls++
		return stop
	})
	assert.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}

func TestReadRunEvents_MultilineDataAndComments(t *testing.T) {
	stream := ": keep-alive\n" +
		"event: thread.message.delta\n" +
		"data: {\"delta\":{\"content\":\n" +
		"data: [{\"type\":\"text\",\"text\":{\"value\":\"x\"}}]}}\n" +
		"\n"

	var deltas []string
	err := readRunEvents(strings.NewReader(stream), func(d string) error {
		deltas = append(deltas, d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, deltas)
}

func TestRetrieveAssistant(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/assistants/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{"id":%q,"object":"assistant","model":"gpt-4o","instructions":"base","tools":[{"type":"file_search"}],"tool_resources":{"file_search":{"vector_store_ids":["vs_1"]}}}`, r.PathValue("id"))
	})
	c := newTestClient(t, mux)

	a, err := c.RetrieveAssistant(context.Background(), "asst_1")
	require.NoError(t, err)
	assert.Equal(t, "asst_1", a.ID)
	assert.Equal(t, "base", a.Instructions)
	assert.Equal(t, []string{"vs_1"}, a.VectorStoreIDs)
}

func TestListVectorStoreFiles_Paginates(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/vector_stores/{id}/files", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.URL.Query().Get("after") == "" {
			fmt.Fprint(w, `{"object":"list","data":[{"id":"file_1"},{"id":"file_2"}],"first_id":"file_1","last_id":"file_2","has_more":true}`)
			return
		}
		assert.Equal(t, "file_2", r.URL.Query().Get("after"))
		fmt.Fprint(w, `{"object":"list","data":[{"id":"file_3"}],"first_id":"file_3","last_id":"file_3","has_more":false}`)
	})
	c := newTestClient(t, mux)

	ids, err := c.ListVectorStoreFiles(context.Background(), "vs_1")
	require.NoError(t, err)
	assert.Equal(t, []string{"file_1", "file_2", "file_3"}, ids)
}

func TestRetrieveFile(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /v1/files/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"file_1","object":"file","filename":"bilancio.pdf","purpose":"assistants"}`)
	})
	c := newTestClient(t, mux)

	f, err := c.RetrieveFile(context.Background(), "file_1")
	require.NoError(t, err)
	assert.Equal(t, "bilancio.pdf", f.Name)
}

func TestCompleteStream(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/chat/completions", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Model    string        `json:"model"`
			Messages []ChatMessage `json:"messages"`
			Stream   bool          `json:"stream"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "gpt-4o", body.Model)
		assert.True(t, body.Stream)
		require.Len(t, body.Messages, 2)
		assert.Equal(t, "system", body.Messages[0].Role)

		w.Header().Set("Content-Type", "text/event-stream")
		for _, chunk := range []string{"Buon", "giorno"} {
			fmt.Fprintf(w, "data: {\"id\":\"c1\",\"object\":\"chat.completion.chunk\",\"model\":\"gpt-4o\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", chunk)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	})
	c := newTestClient(t, mux)

	var got strings.Builder
	err := c.CompleteStream(context.Background(), "", []ChatMessage{
		{Role: "system", Content: "ctx"},
		{Role: "user", Content: "ciao"},
	}, func(d string) error {
		got.WriteString(d)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "Buongiorno", got.String())
}
