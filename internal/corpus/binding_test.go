package corpus_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/corpus"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/corpus/corpustest"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

func newBinding(fake *corpustest.Fake, opts corpus.Options) (*corpus.Binding, *[]model.Notice) {
	var notices []model.Notice
	opts.Notify = func(n model.Notice) { notices = append(notices, n) }
	if opts.Instructions == nil {
		opts.Instructions = func() string { return "instructions" }
	}
	opts.AssistantName = "MIDA"
	opts.Model = "gpt-4o"
	return corpus.NewBinding(fake, opts, logger.NewNop()), &notices
}

func TestEnsureAssistant_RetrievesKnownID(t *testing.T) {
	fake := corpustest.New()
	fake.SeedAssistant(corpus.Assistant{ID: "asst_known", Instructions: "x"})

	b, notices := newBinding(fake, corpus.Options{AssistantID: "asst_known"})
	assert.Equal(t, corpus.StateUnknown, b.AssistantState())

	a, err := b.EnsureAssistant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "asst_known", a.ID)
	assert.Equal(t, corpus.StateVerified, b.AssistantState())
	assert.Empty(t, *notices)
	assert.Zero(t, fake.CountCalls("CreateAssistant"))

	// Verified ids are not fetched again.
	_, err = b.EnsureAssistant(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.CountCalls("RetrieveAssistant"))
}

func TestEnsureAssistant_StaleIDIsRecreated(t *testing.T) {
	fake := corpustest.New()
	b, notices := newBinding(fake, corpus.Options{
		AssistantID:  "asst_gone",
		Instructions: func() string { return "preamble + tone" },
	})

	a, err := b.EnsureAssistant(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, "asst_gone", a.ID)
	assert.Equal(t, "preamble + tone", a.Instructions)
	assert.Equal(t, a.ID, b.Handle().AssistantID)

	require.Len(t, *notices, 1)
	assert.Contains(t, (*notices)[0].Text, a.ID)
}

func TestEnsureAssistant_CreateFailure(t *testing.T) {
	fake := corpustest.New()
	fake.FailNext("CreateAssistant", errors.New("boom"))
	b, _ := newBinding(fake, corpus.Options{})

	_, err := b.EnsureAssistant(context.Background())
	assert.Error(t, err)
	assert.Empty(t, b.Handle().AssistantID)
}

func TestEnsureVectorStore_CreatesAndAttaches(t *testing.T) {
	fake := corpustest.New()
	b, notices := newBinding(fake, corpus.Options{})

	vsID, err := b.EnsureVectorStore(context.Background())
	require.NoError(t, err)

	a, ok := fake.Assistant(b.Handle().AssistantID)
	require.True(t, ok)
	assert.Equal(t, []string{vsID}, a.VectorStoreIDs)
	assert.Len(t, *notices, 2)

	// Second call is a no-op.
	_, err = b.EnsureVectorStore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fake.CountCalls("CreateVectorStore"))
	assert.Equal(t, 1, fake.CountCalls("AttachVectorStore"))
}

func TestEnsureVectorStore_ExistingStoreAttachedToNewAssistant(t *testing.T) {
	fake := corpustest.New()
	fake.SeedVectorStore("vs_existing")
	b, _ := newBinding(fake, corpus.Options{VectorStoreID: "vs_existing"})

	_, err := b.EnsureAssistant(context.Background())
	require.NoError(t, err)

	vsID, err := b.EnsureVectorStore(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "vs_existing", vsID)

	a, _ := fake.Assistant(b.Handle().AssistantID)
	assert.Equal(t, []string{"vs_existing"}, a.VectorStoreIDs)
}

func TestUpload_ReusesFileWithSameName(t *testing.T) {
	fake := corpustest.New()
	fake.SeedAssistant(corpus.Assistant{ID: "asst_1", VectorStoreIDs: []string{"vs_1"}})
	fake.SeedVectorStore("vs_1")
	fake.SeedFile("vs_1", "file_existing", "report.pdf")

	b, _ := newBinding(fake, corpus.Options{AssistantID: "asst_1", VectorStoreID: "vs_1"})

	id, err := b.Upload(context.Background(), "report.pdf", []byte("other content"))
	require.NoError(t, err)
	assert.Equal(t, "file_existing", id)
	assert.Zero(t, fake.CountCalls("UploadFile"))

	id2, err := b.Upload(context.Background(), "Report.pdf", []byte("x"))
	require.NoError(t, err)
	assert.NotEqual(t, "file_existing", id2, "name match is case-sensitive")
	assert.ElementsMatch(t, []string{"file_existing", id2}, fake.VectorStoreFiles("vs_1"))
}

func TestUpload_RegistrationFailureCleansUp(t *testing.T) {
	fake := corpustest.New()
	b, _ := newBinding(fake, corpus.Options{})
	_, err := b.EnsureVectorStore(context.Background())
	require.NoError(t, err)

	fake.FailNext("AddVectorStoreFile", errors.New("backend unavailable"))
	_, err = b.Upload(context.Background(), "a.pdf", []byte("a"))
	require.Error(t, err)
	assert.Zero(t, fake.FileCount())
	assert.Equal(t, corpus.StateUnknown, b.VectorStoreState())
}

func TestDelete_SwallowsFailures(t *testing.T) {
	fake := corpustest.New()
	b, _ := newBinding(fake, corpus.Options{})
	id, err := b.Upload(context.Background(), "a.pdf", []byte("a"))
	require.NoError(t, err)

	fake.FailNext("DeleteVectorStoreFile", errors.New("boom"))
	b.Delete(context.Background(), id)
	b.Delete(context.Background(), "")

	assert.Equal(t, []string{id}, fake.VectorStoreFiles(b.Handle().VectorStoreID))
}

func TestReconcile_RemovesOrphans(t *testing.T) {
	fake := corpustest.New()
	b, _ := newBinding(fake, corpus.Options{})
	ctx := context.Background()

	keep, err := b.Upload(ctx, "keep.pdf", []byte("k"))
	require.NoError(t, err)
	orphan, err := b.Upload(ctx, "orphan.pdf", []byte("o"))
	require.NoError(t, err)

	report, err := b.Reconcile(ctx, []string{keep, ""})
	require.NoError(t, err)
	assert.Equal(t, []string{orphan}, report.Deleted)
	assert.Equal(t, []string{keep}, fake.VectorStoreFiles(b.Handle().VectorStoreID))
}

func TestReconcile_NeverReuploads(t *testing.T) {
	fake := corpustest.New()
	b, _ := newBinding(fake, corpus.Options{})
	ctx := context.Background()
	_, err := b.EnsureVectorStore(ctx)
	require.NoError(t, err)

	report, err := b.Reconcile(ctx, []string{"file_missing_remotely"})
	require.NoError(t, err)
	assert.Empty(t, report.Deleted)
	assert.Zero(t, fake.CountCalls("UploadFile"))
}

func TestReconcile_NoVectorStore(t *testing.T) {
	fake := corpustest.New()
	b, _ := newBinding(fake, corpus.Options{})

	report, err := b.Reconcile(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, report.Deleted)
	assert.Empty(t, fake.Calls())
}

func TestReconcile_StaleVectorStoreCreatesNothing(t *testing.T) {
	fake := corpustest.New()
	b, _ := newBinding(fake, corpus.Options{VectorStoreID: "vs_gone"})

	report, err := b.Reconcile(context.Background(), []string{"file_a"})
	require.NoError(t, err)
	assert.Empty(t, report.Deleted)
	assert.Empty(t, report.RemoteFiles)
	assert.Equal(t, []string{"RetrieveVectorStore"}, fake.Calls())
	assert.Empty(t, b.Handle().VectorStoreID)
}

func TestPushInstructions(t *testing.T) {
	fake := corpustest.New()
	b, _ := newBinding(fake, corpus.Options{})
	ctx := context.Background()

	require.NoError(t, b.PushInstructions(ctx, "ignored"), "no assistant bound yet")
	assert.Zero(t, fake.CountCalls("UpdateInstructions"))

	a, err := b.EnsureAssistant(ctx)
	require.NoError(t, err)
	require.NoError(t, b.PushInstructions(ctx, "new"))
	stored, _ := fake.Assistant(a.ID)
	assert.Equal(t, "new", stored.Instructions)

	fake.FailNext("UpdateInstructions", errors.New("down"))
	assert.Error(t, b.PushInstructions(ctx, "newer"))
	assert.Equal(t, corpus.StateUnknown, b.AssistantState())
}
