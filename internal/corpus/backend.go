// Package corpus binds the session's documents to the remote assistant and
// vector store of the RAG backend.
package corpus

import (
	"context"
)

// Assistant is the backend assistant as seen by the binding.
type Assistant struct {
	ID             string
	Instructions   string
	VectorStoreIDs []string
}

// AssistantSpec describes an assistant to create.
type AssistantSpec struct {
	Name         string
	Model        string
	Instructions string

	// VectorStoreID, when set, is attached to the file search tool.
	VectorStoreID string
}

// RemoteFile is a backend file object.
type RemoteFile struct {
	ID   string
	Name string
}

// Backend is the subset of the RAG provider used by the binding.
type Backend interface {
	RetrieveAssistant(ctx context.Context, id string) (*Assistant, error)
	CreateAssistant(ctx context.Context, spec AssistantSpec) (*Assistant, error)
	UpdateInstructions(ctx context.Context, assistantID, instructions string) error
	AttachVectorStore(ctx context.Context, assistantID, vectorStoreID string) error

	RetrieveVectorStore(ctx context.Context, id string) error
	CreateVectorStore(ctx context.Context, name string) (string, error)
	ListVectorStoreFiles(ctx context.Context, vectorStoreID string) ([]string, error)
	AddVectorStoreFile(ctx context.Context, vectorStoreID, fileID string) error
	DeleteVectorStoreFile(ctx context.Context, vectorStoreID, fileID string) error

	RetrieveFile(ctx context.Context, fileID string) (RemoteFile, error)
	UploadFile(ctx context.Context, name string, content []byte) (string, error)
	DeleteFile(ctx context.Context, fileID string) error
}

// Handle holds the remote identities known to a binding.
type Handle struct {
	AssistantID   string `json:"assistant_id,omitempty"`
	VectorStoreID string `json:"vector_store_id,omitempty"`
}

// Report is the outcome of a reconcile pass.
type Report struct {
	RemoteFiles []string
	Deleted     []string
	Failed      []string
}
