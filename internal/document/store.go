// Package document holds the session's loaded documents and mirrors them
// into the remote corpus.
package document

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/metrics"
)

// ErrIndexOutOfRange is returned by Remove for an invalid position.
var ErrIndexOutOfRange = errors.New("document index out of range")

// Remote is the remote side documents are mirrored into.
type Remote interface {
	Upload(ctx context.Context, filename string, content []byte) (string, error)
	Delete(ctx context.Context, fileID string)
}

// Store is the ordered collection of loaded documents, unique by
// (name, source). It is not safe for concurrent use; the owning session
// serializes access.
type Store struct {
	remote       Remote
	logger       *logger.Logger
	extractMedia func(content []byte) (string, error)

	docs     []model.Document
	skipped  map[string]struct{}
	combined string

	lastRemoved string
}

// NewStore creates an empty store mirroring into remote.
func NewStore(remote Remote, log *logger.Logger) *Store {
	return &Store{
		remote:       remote,
		logger:       log,
		extractMedia: ExtractPDF,
		skipped:      make(map[string]struct{}),
	}
}

// Add loads a document. It is a no-op returning false when (name, source)
// is already loaded. The document is stored only after the remote upload
// succeeds, so a failed upload leaves the store unchanged.
func (s *Store) Add(ctx context.Context, name, text string, source model.Source, content []byte) (bool, error) {
	if s.Has(name, source) {
		return false, nil
	}

	fileID, err := s.remote.Upload(ctx, name, content)
	if err != nil {
		metrics.DocumentsTotal.WithLabelValues("add", string(source), "error").Inc()
		return false, fmt.Errorf("upload %s: %w", name, err)
	}

	s.docs = append(s.docs, model.Document{
		Name:         name,
		Text:         text,
		Source:       source,
		RemoteFileID: fileID,
	})
	if source == model.SourceMedia {
		delete(s.skipped, name)
	}
	s.refreshCombined()

	metrics.DocumentsTotal.WithLabelValues("add", string(source), "success").Inc()
	s.logger.Info("document added",
		zap.String("name", name),
		zap.String("source", string(source)),
		zap.String("file_id", fileID),
	)
	return true, nil
}

// Remove drops the document at index. Remote deletion is best effort and
// skipped while another loaded document shares the file; the local removal
// always happens. Media documents are skip-listed so the next
// sweep does not load them again.
func (s *Store) Remove(ctx context.Context, index int) (model.Document, error) {
	if index < 0 || index >= len(s.docs) {
		return model.Document{}, fmt.Errorf("%w: %d", ErrIndexOutOfRange, index)
	}

	removed := s.docs[index]
	s.docs = append(s.docs[:index], s.docs[index+1:]...)

	if !s.referenced(removed.RemoteFileID) {
		s.remote.Delete(ctx, removed.RemoteFileID)
	}

	if removed.Source == model.SourceMedia {
		s.skipped[removed.Name] = struct{}{}
	}
	s.refreshCombined()
	s.lastRemoved = removed.Name

	metrics.DocumentsTotal.WithLabelValues("remove", string(removed.Source), "success").Inc()
	s.logger.Info("document removed",
		zap.String("name", removed.Name),
		zap.String("source", string(removed.Source)),
	)
	return removed, nil
}

// referenced reports whether a loaded document still points at fileID.
// An upload and a media copy of one name share a remote file.
func (s *Store) referenced(fileID string) bool {
	if fileID == "" {
		return false
	}
	for _, d := range s.docs {
		if d.RemoteFileID == fileID {
			return true
		}
	}
	return false
}

// Has reports whether (name, source) is loaded.
func (s *Store) Has(name string, source model.Source) bool {
	for _, d := range s.docs {
		if d.Name == name && d.Source == source {
			return true
		}
	}
	return false
}

// IsSkipped reports whether a media name was removed by the user.
func (s *Store) IsSkipped(name string) bool {
	_, ok := s.skipped[name]
	return ok
}

// Documents returns a copy of the loaded documents in store order.
func (s *Store) Documents() []model.Document {
	out := make([]model.Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Len returns the number of loaded documents.
func (s *Store) Len() int {
	return len(s.docs)
}

// RemoteFileIDs returns the remote ids referenced by loaded documents.
func (s *Store) RemoteFileIDs() []string {
	ids := make([]string, 0, len(s.docs))
	for _, d := range s.docs {
		if d.RemoteFileID != "" {
			ids = append(ids, d.RemoteFileID)
		}
	}
	return ids
}

// LastRemoved returns the name of the last removed document.
func (s *Store) LastRemoved() string {
	return s.lastRemoved
}

// CombinedContext returns the text of every document, each under a header
// naming it. It is empty when no document is loaded.
func (s *Store) CombinedContext() string {
	return s.combined
}

func (s *Store) refreshCombined() {
	if len(s.docs) == 0 {
		s.combined = ""
		return
	}
	parts := make([]string, 0, len(s.docs))
	for _, d := range s.docs {
		parts = append(parts, fmt.Sprintf("=== Documento: %s ===\n%s", d.Name, d.Text))
	}
	s.combined = strings.Join(parts, "\n\n")
}
