package llm

import (
	"context"
	"fmt"
	"slices"

	"github.com/sashabaranov/go-openai"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/corpus"
)

var _ corpus.Backend = (*Client)(nil)

const listPageSize = 100

// RetrieveAssistant fetches an assistant by id.
func (c *Client) RetrieveAssistant(ctx context.Context, id string) (*corpus.Assistant, error) {
	a, err := c.client.RetrieveAssistant(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("retrieve assistant %s: %w", id, err)
	}
	return toAssistant(a), nil
}

// CreateAssistant creates a file search assistant.
func (c *Client) CreateAssistant(ctx context.Context, spec corpus.AssistantSpec) (*corpus.Assistant, error) {
	model := spec.Model
	if model == "" {
		model = c.model
	}

	req := openai.AssistantRequest{
		Model:        model,
		Name:         &spec.Name,
		Instructions: &spec.Instructions,
		Tools:        []openai.AssistantTool{{Type: openai.AssistantToolTypeFileSearch}},
	}
	if spec.VectorStoreID != "" {
		req.ToolResources = fileSearchResources(spec.VectorStoreID)
	}

	a, err := c.client.CreateAssistant(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create assistant: %w", err)
	}
	return toAssistant(a), nil
}

// UpdateInstructions replaces the instructions of an assistant, keeping its
// model.
func (c *Client) UpdateInstructions(ctx context.Context, assistantID, instructions string) error {
	a, err := c.client.RetrieveAssistant(ctx, assistantID)
	if err != nil {
		return fmt.Errorf("retrieve assistant %s: %w", assistantID, err)
	}

	_, err = c.client.ModifyAssistant(ctx, assistantID, openai.AssistantRequest{
		Model:        a.Model,
		Instructions: &instructions,
	})
	if err != nil {
		return fmt.Errorf("update assistant %s: %w", assistantID, err)
	}
	return nil
}

// AttachVectorStore makes vectorStoreID the file search store of the
// assistant, enabling the tool when missing.
func (c *Client) AttachVectorStore(ctx context.Context, assistantID, vectorStoreID string) error {
	a, err := c.client.RetrieveAssistant(ctx, assistantID)
	if err != nil {
		return fmt.Errorf("retrieve assistant %s: %w", assistantID, err)
	}

	tools := a.Tools
	hasFileSearch := slices.ContainsFunc(tools, func(t openai.AssistantTool) bool {
		return t.Type == openai.AssistantToolTypeFileSearch
	})
	if !hasFileSearch {
		tools = append(tools, openai.AssistantTool{Type: openai.AssistantToolTypeFileSearch})
	}

	_, err = c.client.ModifyAssistant(ctx, assistantID, openai.AssistantRequest{
		Model:         a.Model,
		Tools:         tools,
		ToolResources: fileSearchResources(vectorStoreID),
	})
	if err != nil {
		return fmt.Errorf("attach vector store %s: %w", vectorStoreID, err)
	}
	return nil
}

// RetrieveVectorStore checks that a vector store exists.
func (c *Client) RetrieveVectorStore(ctx context.Context, id string) error {
	if _, err := c.client.RetrieveVectorStore(ctx, id); err != nil {
		return fmt.Errorf("retrieve vector store %s: %w", id, err)
	}
	return nil
}

// CreateVectorStore creates an empty vector store.
func (c *Client) CreateVectorStore(ctx context.Context, name string) (string, error) {
	vs, err := c.client.CreateVectorStore(ctx, openai.VectorStoreRequest{Name: name})
	if err != nil {
		return "", fmt.Errorf("create vector store: %w", err)
	}
	return vs.ID, nil
}

// ListVectorStoreFiles returns the ids of every file in a vector store,
// following pagination.
func (c *Client) ListVectorStoreFiles(ctx context.Context, vectorStoreID string) ([]string, error) {
	var (
		ids   []string
		after *string
	)
	limit := listPageSize
	order := "asc"

	for {
		page, err := c.client.ListVectorStoreFiles(ctx, vectorStoreID, openai.Pagination{
			Limit: &limit,
			Order: &order,
			After: after,
		})
		if err != nil {
			return nil, fmt.Errorf("list vector store files %s: %w", vectorStoreID, err)
		}
		for _, f := range page.VectorStoreFiles {
			ids = append(ids, f.ID)
		}
		if !page.HasMore || page.LastID == nil || len(page.VectorStoreFiles) == 0 {
			return ids, nil
		}
		after = page.LastID
	}
}

// AddVectorStoreFile registers an uploaded file with a vector store.
func (c *Client) AddVectorStoreFile(ctx context.Context, vectorStoreID, fileID string) error {
	_, err := c.client.CreateVectorStoreFile(ctx, vectorStoreID, openai.VectorStoreFileRequest{FileID: fileID})
	if err != nil {
		return fmt.Errorf("add file %s to vector store %s: %w", fileID, vectorStoreID, err)
	}
	return nil
}

// DeleteVectorStoreFile detaches a file from a vector store.
func (c *Client) DeleteVectorStoreFile(ctx context.Context, vectorStoreID, fileID string) error {
	if err := c.client.DeleteVectorStoreFile(ctx, vectorStoreID, fileID); err != nil {
		return fmt.Errorf("delete file %s from vector store %s: %w", fileID, vectorStoreID, err)
	}
	return nil
}

// RetrieveFile fetches a file object.
func (c *Client) RetrieveFile(ctx context.Context, fileID string) (corpus.RemoteFile, error) {
	f, err := c.client.GetFile(ctx, fileID)
	if err != nil {
		return corpus.RemoteFile{}, fmt.Errorf("retrieve file %s: %w", fileID, err)
	}
	return corpus.RemoteFile{ID: f.ID, Name: f.FileName}, nil
}

// UploadFile uploads content as an assistants file.
func (c *Client) UploadFile(ctx context.Context, name string, content []byte) (string, error) {
	f, err := c.client.CreateFileBytes(ctx, openai.FileBytesRequest{
		Name:    name,
		Bytes:   content,
		Purpose: openai.PurposeAssistants,
	})
	if err != nil {
		return "", fmt.Errorf("upload %s: %w", name, err)
	}
	return f.ID, nil
}

// DeleteFile deletes a file object.
func (c *Client) DeleteFile(ctx context.Context, fileID string) error {
	if err := c.client.DeleteFile(ctx, fileID); err != nil {
		return fmt.Errorf("delete file %s: %w", fileID, err)
	}
	return nil
}

// CreateThread creates an empty conversation thread.
func (c *Client) CreateThread(ctx context.Context) (string, error) {
	t, err := c.client.CreateThread(ctx, openai.ThreadRequest{})
	if err != nil {
		return "", fmt.Errorf("create thread: %w", err)
	}
	return t.ID, nil
}

// PostMessage appends a user message to a thread.
func (c *Client) PostMessage(ctx context.Context, threadID, content string) error {
	_, err := c.client.CreateMessage(ctx, threadID, openai.MessageRequest{
		Role:    "user",
		Content: content,
	})
	if err != nil {
		return fmt.Errorf("post message to thread %s: %w", threadID, err)
	}
	return nil
}

func fileSearchResources(vectorStoreID string) *openai.AssistantToolResource {
	return &openai.AssistantToolResource{
		FileSearch: &openai.AssistantToolFileSearch{
			VectorStoreIDs: []string{vectorStoreID},
		},
	}
}

func toAssistant(a openai.Assistant) *corpus.Assistant {
	out := &corpus.Assistant{ID: a.ID}
	if a.Instructions != nil {
		out.Instructions = *a.Instructions
	}
	if a.ToolResources != nil && a.ToolResources.FileSearch != nil {
		out.VectorStoreIDs = a.ToolResources.FileSearch.VectorStoreIDs
	}
	return out
}
