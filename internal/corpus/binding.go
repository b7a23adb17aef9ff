package corpus

import (
	"context"
	"fmt"
	"slices"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/metrics"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/tracing"
)

// Options configures a Binding.
type Options struct {
	AssistantName string
	Model         string

	// Cached identities, typically from the secret layer.
	AssistantID   string
	VectorStoreID string

	// Instructions returns the current composed system instructions.
	Instructions func() string

	// Notify receives user-facing notices, such as freshly created ids
	// that should be persisted by hand.
	Notify func(model.Notice)
}

// Binding owns the mapping between local documents and the backend
// assistant, vector store and file identities. It holds ids only.
//
// Every lookup degrades to recreation when a cached id turns out stale, so
// duplicate remote resources are possible after backend failures.
type Binding struct {
	backend Backend
	opts    Options
	logger  *logger.Logger

	assistant   resource
	vectorStore resource
	current     *Assistant
}

// NewBinding creates a binding over backend.
func NewBinding(backend Backend, opts Options, log *logger.Logger) *Binding {
	if opts.Instructions == nil {
		opts.Instructions = func() string { return "" }
	}
	return &Binding{
		backend:     backend,
		opts:        opts,
		logger:      log,
		assistant:   newResource(opts.AssistantID),
		vectorStore: newResource(opts.VectorStoreID),
	}
}

// Handle returns the identities currently known.
func (b *Binding) Handle() Handle {
	return Handle{AssistantID: b.assistant.id, VectorStoreID: b.vectorStore.id}
}

// AssistantState returns the state of the assistant resource.
func (b *Binding) AssistantState() State { return b.assistant.state }

// VectorStoreState returns the state of the vector store resource.
func (b *Binding) VectorStoreState() State { return b.vectorStore.state }

// EnsureAssistant returns the bound assistant, retrieving a cached id or
// creating a new assistant when there is none or it is stale.
func (b *Binding) EnsureAssistant(ctx context.Context) (*Assistant, error) {
	if b.assistant.state == StateVerified && b.current != nil {
		return b.current, nil
	}

	ctx, span := tracing.Tracer().Start(ctx, "corpus.EnsureAssistant")
	defer span.End()

	if b.assistant.id != "" {
		a, err := b.backend.RetrieveAssistant(ctx, b.assistant.id)
		metrics.RecordCorpusOp("retrieve_assistant", err)
		if err == nil {
			b.assistant.verify(a.ID)
			b.current = a
			return a, nil
		}
		b.logger.Warn("cached assistant is stale, creating a new one",
			zap.String("assistant_id", b.assistant.id), zap.Error(err))
		b.assistant.markStale()
		b.current = nil
	}

	spec := AssistantSpec{
		Name:         b.opts.AssistantName,
		Model:        b.opts.Model,
		Instructions: b.opts.Instructions(),
	}
	if b.vectorStore.state == StateVerified {
		spec.VectorStoreID = b.vectorStore.id
	}

	a, err := b.backend.CreateAssistant(ctx, spec)
	metrics.RecordCorpusOp("create_assistant", err)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("create assistant: %w", err)
	}

	b.assistant.verify(a.ID)
	b.current = a
	span.SetAttributes(attribute.String("assistant_id", a.ID))
	b.logger.Info("assistant created", zap.String("assistant_id", a.ID))
	b.notify(model.Notice{
		Level: model.NoticeInfo,
		Text:  fmt.Sprintf("Nuovo assistente creato: %s. Salvalo come 'assistant_id' nei secrets per riutilizzarlo.", a.ID),
	})
	return a, nil
}

// EnsureVectorStore returns the bound vector store id, retrieving or
// creating it, and makes sure it is attached to the bound assistant.
func (b *Binding) EnsureVectorStore(ctx context.Context) (string, error) {
	ctx, span := tracing.Tracer().Start(ctx, "corpus.EnsureVectorStore")
	defer span.End()

	if b.vectorStore.state != StateVerified && b.vectorStore.id != "" {
		err := b.backend.RetrieveVectorStore(ctx, b.vectorStore.id)
		metrics.RecordCorpusOp("retrieve_vector_store", err)
		if err == nil {
			b.vectorStore.verify(b.vectorStore.id)
		} else {
			b.logger.Warn("cached vector store is stale, creating a new one",
				zap.String("vector_store_id", b.vectorStore.id), zap.Error(err))
			b.vectorStore.markStale()
		}
	}

	a, err := b.EnsureAssistant(ctx)
	if err != nil {
		return "", err
	}

	if b.vectorStore.state != StateVerified {
		id, err := b.backend.CreateVectorStore(ctx, b.opts.AssistantName+" documents")
		metrics.RecordCorpusOp("create_vector_store", err)
		if err != nil {
			span.RecordError(err)
			return "", fmt.Errorf("create vector store: %w", err)
		}
		b.vectorStore.verify(id)
		b.logger.Info("vector store created", zap.String("vector_store_id", id))
		b.notify(model.Notice{
			Level: model.NoticeInfo,
			Text:  fmt.Sprintf("Nuovo vector store creato: %s. Salvalo come 'vector_store_id' nei secrets per riutilizzarlo.", id),
		})
	}

	if !slices.Contains(a.VectorStoreIDs, b.vectorStore.id) {
		err := b.backend.AttachVectorStore(ctx, a.ID, b.vectorStore.id)
		metrics.RecordCorpusOp("attach_vector_store", err)
		if err != nil {
			b.assistant.invalidate()
			return "", fmt.Errorf("attach vector store %s to assistant %s: %w", b.vectorStore.id, a.ID, err)
		}
		a.VectorStoreIDs = []string{b.vectorStore.id}
	}

	return b.vectorStore.id, nil
}

// Upload stores content under filename in the vector store and returns its
// file id. An existing vector store file with the same name is reused.
// Content is not compared: two different files sharing a name are treated
// as the same document.
func (b *Binding) Upload(ctx context.Context, filename string, content []byte) (string, error) {
	ctx, span := tracing.Tracer().Start(ctx, "corpus.Upload")
	defer span.End()
	span.SetAttributes(attribute.String("filename", filename))

	vsID, err := b.EnsureVectorStore(ctx)
	if err != nil {
		return "", err
	}

	ids, err := b.backend.ListVectorStoreFiles(ctx, vsID)
	metrics.RecordCorpusOp("list_vector_store_files", err)
	if err != nil {
		b.vectorStore.invalidate()
		return "", fmt.Errorf("list vector store files: %w", err)
	}
	for _, id := range ids {
		f, err := b.backend.RetrieveFile(ctx, id)
		if err != nil {
			continue
		}
		if f.Name == filename {
			b.logger.Debug("reusing remote file", zap.String("filename", filename), zap.String("file_id", id))
			return id, nil
		}
	}

	fileID, err := b.backend.UploadFile(ctx, filename, content)
	metrics.RecordCorpusOp("upload_file", err)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("upload %s: %w", filename, err)
	}

	if err := b.backend.AddVectorStoreFile(ctx, vsID, fileID); err != nil {
		metrics.RecordCorpusOp("add_vector_store_file", err)
		if derr := b.backend.DeleteFile(ctx, fileID); derr != nil {
			b.logger.Warn("cleanup of unregistered file failed", zap.String("file_id", fileID), zap.Error(derr))
		}
		b.vectorStore.invalidate()
		return "", fmt.Errorf("register %s in vector store: %w", filename, err)
	}
	metrics.RecordCorpusOp("add_vector_store_file", nil)

	return fileID, nil
}

// Delete removes a file from the vector store and the backend. Failures are
// logged and otherwise ignored.
func (b *Binding) Delete(ctx context.Context, fileID string) {
	if fileID == "" {
		return
	}
	ctx, span := tracing.Tracer().Start(ctx, "corpus.Delete")
	defer span.End()

	b.deleteRemote(ctx, fileID)
}

func (b *Binding) deleteRemote(ctx context.Context, fileID string) error {
	var firstErr error
	if b.vectorStore.id != "" {
		err := b.backend.DeleteVectorStoreFile(ctx, b.vectorStore.id, fileID)
		metrics.RecordCorpusOp("delete_vector_store_file", err)
		if err != nil {
			b.logger.Warn("delete vector store file failed", zap.String("file_id", fileID), zap.Error(err))
			firstErr = err
		}
	}
	err := b.backend.DeleteFile(ctx, fileID)
	metrics.RecordCorpusOp("delete_file", err)
	if err != nil {
		b.logger.Debug("delete file failed", zap.String("file_id", fileID), zap.Error(err))
	}
	return firstErr
}

// Reconcile deletes every vector store file not referenced by localIDs. It
// never uploads files that are missing remotely and never creates remote
// resources; a stale vector store yields an empty report.
func (b *Binding) Reconcile(ctx context.Context, localIDs []string) (Report, error) {
	var report Report
	if b.vectorStore.id == "" {
		return report, nil
	}

	ctx, span := tracing.Tracer().Start(ctx, "corpus.Reconcile")
	defer span.End()

	if b.vectorStore.state != StateVerified {
		err := b.backend.RetrieveVectorStore(ctx, b.vectorStore.id)
		metrics.RecordCorpusOp("retrieve_vector_store", err)
		if err != nil {
			b.logger.Warn("cached vector store is stale, nothing to reconcile",
				zap.String("vector_store_id", b.vectorStore.id), zap.Error(err))
			b.vectorStore.markStale()
			return report, nil
		}
		b.vectorStore.verify(b.vectorStore.id)
	}
	vsID := b.vectorStore.id

	remote, err := b.backend.ListVectorStoreFiles(ctx, vsID)
	metrics.RecordCorpusOp("list_vector_store_files", err)
	if err != nil {
		b.vectorStore.invalidate()
		return report, fmt.Errorf("list vector store files: %w", err)
	}

	keep := make(map[string]struct{}, len(localIDs))
	for _, id := range localIDs {
		if id != "" {
			keep[id] = struct{}{}
		}
	}

	for _, id := range remote {
		if _, ok := keep[id]; ok {
			report.RemoteFiles = append(report.RemoteFiles, id)
			continue
		}
		if err := b.deleteRemote(ctx, id); err != nil {
			report.Failed = append(report.Failed, id)
			report.RemoteFiles = append(report.RemoteFiles, id)
			continue
		}
		report.Deleted = append(report.Deleted, id)
		metrics.ReconcileDeletedFiles.Inc()
	}

	span.SetAttributes(attribute.Int("deleted", len(report.Deleted)))
	return report, nil
}

// PushInstructions updates the bound assistant's instructions. It does
// nothing when no assistant is bound.
func (b *Binding) PushInstructions(ctx context.Context, instructions string) error {
	if b.assistant.id == "" {
		return nil
	}
	ctx, span := tracing.Tracer().Start(ctx, "corpus.PushInstructions")
	defer span.End()

	err := b.backend.UpdateInstructions(ctx, b.assistant.id, instructions)
	metrics.RecordCorpusOp("update_instructions", err)
	if err != nil {
		b.assistant.invalidate()
		return fmt.Errorf("update assistant instructions: %w", err)
	}
	if b.current != nil {
		b.current.Instructions = instructions
	}
	return nil
}

func (b *Binding) notify(n model.Notice) {
	if b.opts.Notify != nil {
		b.opts.Notify(n)
	}
}
