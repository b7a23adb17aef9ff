package document

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
)

func writeMedia(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(name), 0o600))
	}
}

// echoExtract returns the file content as its text.
func echoExtract(content []byte) (string, error) {
	if string(content) == "broken.pdf" {
		return "", errors.New("unreadable")
	}
	return string(content), nil
}

func TestSweep(t *testing.T) {
	dir := t.TempDir()
	writeMedia(t, dir, "b.pdf", "A.PDF", "notes.txt", "broken.pdf")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.pdf"), 0o700))

	remote := &fakeRemote{}
	s := newTestStore(remote)
	s.extractMedia = echoExtract

	report, err := s.Sweep(context.Background(), dir)
	require.NoError(t, err)

	assert.Equal(t, []string{"A.PDF", "b.pdf"}, report.Added)
	require.Len(t, report.Failed, 1)
	assert.Equal(t, "broken.pdf", report.Failed[0].Name)

	docs := s.Documents()
	require.Len(t, docs, 2)
	assert.Equal(t, model.SourceMedia, docs[0].Source)
	assert.Equal(t, "A.PDF", docs[0].Text)

	// A second sweep adds nothing new.
	report, err = s.Sweep(context.Background(), dir)
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Equal(t, 2, s.Len())
}

func TestSweep_RespectsSkipList(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	writeMedia(t, dir, "manual.pdf", "guide.pdf")

	s := newTestStore(&fakeRemote{})
	s.extractMedia = echoExtract

	_, err := s.Sweep(ctx, dir)
	require.NoError(t, err)
	require.Equal(t, 2, s.Len())

	// guide.pdf sorts first.
	_, err = s.Remove(ctx, 1)
	require.NoError(t, err)
	require.True(t, s.IsSkipped("manual.pdf"))

	report, err := s.Sweep(ctx, dir)
	require.NoError(t, err)
	assert.Empty(t, report.Added)
	assert.Equal(t, []string{"manual.pdf"}, report.Skipped)
	assert.False(t, s.Has("manual.pdf", model.SourceMedia))

	require.NoError(t, s.LoadMedia(ctx, dir, "manual.pdf"))
	assert.True(t, s.Has("manual.pdf", model.SourceMedia))
	assert.False(t, s.IsSkipped("manual.pdf"))
}

func TestSweep_MissingDir(t *testing.T) {
	s := newTestStore(&fakeRemote{})
	report, err := s.Sweep(context.Background(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, report.Added)
}

func TestLoadMedia_RejectsPaths(t *testing.T) {
	s := newTestStore(&fakeRemote{})
	dir := t.TempDir()
	assert.ErrorIs(t, s.LoadMedia(context.Background(), dir, "../secrets.pdf"), ErrInvalidName)
	assert.ErrorIs(t, s.LoadMedia(context.Background(), dir, "notes.txt"), ErrInvalidName)
	assert.ErrorIs(t, s.LoadMedia(context.Background(), dir, "missing.pdf"), ErrMediaNotFound)
}
