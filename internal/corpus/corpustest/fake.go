// Package corpustest provides an in-memory corpus backend for tests.
package corpustest

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/corpus"
)

// ErrNotFound mimics a backend 404.
var ErrNotFound = errors.New("not found")

// Fake is an in-memory corpus.Backend. Failures can be injected per
// operation name (the method name).
type Fake struct {
	mu sync.Mutex

	assistants   map[string]*corpus.Assistant
	vectorStores map[string][]string
	files        map[string]string
	seq          int

	calls      []string
	failNext   map[string]error
	failAlways map[string]error
}

// New returns an empty fake backend.
func New() *Fake {
	return &Fake{
		assistants:   map[string]*corpus.Assistant{},
		vectorStores: map[string][]string{},
		files:        map[string]string{},
		failNext:     map[string]error{},
		failAlways:   map[string]error{},
	}
}

// FailNext makes the next call of op return err.
func (f *Fake) FailNext(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failNext[op] = err
}

// FailAlways makes every call of op return err until cleared with nil.
func (f *Fake) FailAlways(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.failAlways, op)
		return
	}
	f.failAlways[op] = err
}

// Calls returns the operation names invoked so far.
func (f *Fake) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.calls)
}

// CountCalls returns how many times op was invoked.
func (f *Fake) CountCalls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == op {
			n++
		}
	}
	return n
}

// SeedAssistant registers an existing assistant.
func (f *Fake) SeedAssistant(a corpus.Assistant) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assistants[a.ID] = &a
}

// SeedVectorStore registers an existing vector store.
func (f *Fake) SeedVectorStore(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectorStores[id] = nil
}

// SeedFile registers a file and, when vectorStoreID is set, adds it there.
func (f *Fake) SeedFile(vectorStoreID, fileID, name string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.files[fileID] = name
	if vectorStoreID != "" {
		f.vectorStores[vectorStoreID] = append(f.vectorStores[vectorStoreID], fileID)
	}
}

// DeleteFileOutOfBand removes a file object but leaves vector store
// references to it in place.
func (f *Fake) DeleteFileOutOfBand(fileID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.files, fileID)
}

// Assistant returns a copy of the stored assistant.
func (f *Fake) Assistant(id string) (corpus.Assistant, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.assistants[id]
	if !ok {
		return corpus.Assistant{}, false
	}
	return *a, true
}

// VectorStoreFiles returns the file ids registered in a vector store.
func (f *Fake) VectorStoreFiles(id string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return slices.Clone(f.vectorStores[id])
}

// FileCount returns the number of file objects.
func (f *Fake) FileCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.files)
}

func (f *Fake) begin(op string) error {
	f.calls = append(f.calls, op)
	if err, ok := f.failNext[op]; ok {
		delete(f.failNext, op)
		return err
	}
	if err, ok := f.failAlways[op]; ok {
		return err
	}
	return nil
}

func (f *Fake) nextID(prefix string) string {
	f.seq++
	return fmt.Sprintf("%s_%d", prefix, f.seq)
}

func (f *Fake) RetrieveAssistant(_ context.Context, id string) (*corpus.Assistant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("RetrieveAssistant"); err != nil {
		return nil, err
	}
	a, ok := f.assistants[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *a
	cp.VectorStoreIDs = slices.Clone(a.VectorStoreIDs)
	return &cp, nil
}

func (f *Fake) CreateAssistant(_ context.Context, spec corpus.AssistantSpec) (*corpus.Assistant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateAssistant"); err != nil {
		return nil, err
	}
	a := &corpus.Assistant{ID: f.nextID("asst"), Instructions: spec.Instructions}
	if spec.VectorStoreID != "" {
		a.VectorStoreIDs = []string{spec.VectorStoreID}
	}
	f.assistants[a.ID] = a
	cp := *a
	cp.VectorStoreIDs = slices.Clone(a.VectorStoreIDs)
	return &cp, nil
}

func (f *Fake) UpdateInstructions(_ context.Context, assistantID, instructions string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("UpdateInstructions"); err != nil {
		return err
	}
	a, ok := f.assistants[assistantID]
	if !ok {
		return ErrNotFound
	}
	a.Instructions = instructions
	return nil
}

func (f *Fake) AttachVectorStore(_ context.Context, assistantID, vectorStoreID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AttachVectorStore"); err != nil {
		return err
	}
	a, ok := f.assistants[assistantID]
	if !ok {
		return ErrNotFound
	}
	a.VectorStoreIDs = []string{vectorStoreID}
	return nil
}

func (f *Fake) RetrieveVectorStore(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("RetrieveVectorStore"); err != nil {
		return err
	}
	if _, ok := f.vectorStores[id]; !ok {
		return ErrNotFound
	}
	return nil
}

func (f *Fake) CreateVectorStore(_ context.Context, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("CreateVectorStore"); err != nil {
		return "", err
	}
	id := f.nextID("vs")
	f.vectorStores[id] = nil
	return id, nil
}

func (f *Fake) ListVectorStoreFiles(_ context.Context, vectorStoreID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("ListVectorStoreFiles"); err != nil {
		return nil, err
	}
	ids, ok := f.vectorStores[vectorStoreID]
	if !ok {
		return nil, ErrNotFound
	}
	return slices.Clone(ids), nil
}

func (f *Fake) AddVectorStoreFile(_ context.Context, vectorStoreID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("AddVectorStoreFile"); err != nil {
		return err
	}
	if _, ok := f.vectorStores[vectorStoreID]; !ok {
		return ErrNotFound
	}
	f.vectorStores[vectorStoreID] = append(f.vectorStores[vectorStoreID], fileID)
	return nil
}

func (f *Fake) DeleteVectorStoreFile(_ context.Context, vectorStoreID, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteVectorStoreFile"); err != nil {
		return err
	}
	ids := f.vectorStores[vectorStoreID]
	i := slices.Index(ids, fileID)
	if i < 0 {
		return ErrNotFound
	}
	f.vectorStores[vectorStoreID] = slices.Delete(ids, i, i+1)
	return nil
}

func (f *Fake) RetrieveFile(_ context.Context, fileID string) (corpus.RemoteFile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("RetrieveFile"); err != nil {
		return corpus.RemoteFile{}, err
	}
	name, ok := f.files[fileID]
	if !ok {
		return corpus.RemoteFile{}, ErrNotFound
	}
	return corpus.RemoteFile{ID: fileID, Name: name}, nil
}

func (f *Fake) UploadFile(_ context.Context, name string, _ []byte) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("UploadFile"); err != nil {
		return "", err
	}
	id := f.nextID("file")
	f.files[id] = name
	return id, nil
}

func (f *Fake) DeleteFile(_ context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.begin("DeleteFile"); err != nil {
		return err
	}
	if _, ok := f.files[fileID]; !ok {
		return ErrNotFound
	}
	delete(f.files, fileID)
	return nil
}
