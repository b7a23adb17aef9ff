package document

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/model"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

type fakeRemote struct {
	seq       int
	uploads   []string
	deleted   []string
	uploadErr error
	fixedID   string
}

func (f *fakeRemote) Upload(_ context.Context, filename string, _ []byte) (string, error) {
	if f.uploadErr != nil {
		return "", f.uploadErr
	}
	f.seq++
	f.uploads = append(f.uploads, filename)
	if f.fixedID != "" {
		return f.fixedID, nil
	}
	return fmt.Sprintf("file_%d", f.seq), nil
}

func (f *fakeRemote) Delete(_ context.Context, fileID string) {
	f.deleted = append(f.deleted, fileID)
}

func newTestStore(r Remote) *Store {
	return NewStore(r, logger.NewNop())
}

func TestAdd_UniqueByNameAndSource(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	s := newTestStore(remote)

	added, err := s.Add(ctx, "report.pdf", "alpha", model.SourceUpload, []byte("x"))
	require.NoError(t, err)
	assert.True(t, added)

	added, err = s.Add(ctx, "report.pdf", "alpha again", model.SourceUpload, []byte("x"))
	require.NoError(t, err)
	assert.False(t, added)

	added, err = s.Add(ctx, "report.pdf", "from media", model.SourceMedia, []byte("x"))
	require.NoError(t, err)
	assert.True(t, added)

	assert.Equal(t, 2, s.Len())
	assert.Equal(t, []string{"report.pdf", "report.pdf"}, remote.uploads)
}

func TestAdd_UploadFailureLeavesStoreUnchanged(t *testing.T) {
	remote := &fakeRemote{uploadErr: errors.New("boom")}
	s := newTestStore(remote)

	added, err := s.Add(context.Background(), "a.pdf", "text", model.SourceUpload, nil)
	require.Error(t, err)
	assert.False(t, added)
	assert.Zero(t, s.Len())
	assert.Empty(t, s.CombinedContext())
}

func TestCombinedContext(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(&fakeRemote{})
	assert.Empty(t, s.CombinedContext())

	_, err := s.Add(ctx, "a.pdf", "alpha", model.SourceUpload, nil)
	require.NoError(t, err)
	_, err = s.Add(ctx, "b.xlsx", "x|y", model.SourceUpload, nil)
	require.NoError(t, err)

	want := "=== Documento: a.pdf ===\nalpha\n\n=== Documento: b.xlsx ===\nx|y"
	assert.Equal(t, want, s.CombinedContext())

	_, err = s.Remove(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "=== Documento: b.xlsx ===\nx|y", s.CombinedContext())
}

func TestRemove(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{}
	s := newTestStore(remote)

	_, err := s.Add(ctx, "manual.pdf", "m", model.SourceMedia, nil)
	require.NoError(t, err)
	_, err = s.Add(ctx, "notes.pdf", "n", model.SourceUpload, nil)
	require.NoError(t, err)

	removed, err := s.Remove(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "manual.pdf", removed.Name)
	assert.Equal(t, "manual.pdf", s.LastRemoved())
	assert.True(t, s.IsSkipped("manual.pdf"))
	assert.Equal(t, []string{removed.RemoteFileID}, remote.deleted)

	removed, err = s.Remove(ctx, 0)
	require.NoError(t, err)
	assert.False(t, s.IsSkipped(removed.Name), "uploads are never skip-listed")

	_, err = s.Remove(ctx, 0)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
	_, err = s.Remove(ctx, -1)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)
}

func TestRemove_KeepsSharedRemoteFile(t *testing.T) {
	ctx := context.Background()
	remote := &fakeRemote{fixedID: "file_shared"}
	s := newTestStore(remote)

	_, err := s.Add(ctx, "manuale.pdf", "m", model.SourceMedia, nil)
	require.NoError(t, err)
	_, err = s.Add(ctx, "manuale.pdf", "m", model.SourceUpload, nil)
	require.NoError(t, err)

	_, err = s.Remove(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, remote.deleted, "media copy still uses the file")
	assert.Equal(t, []string{"file_shared"}, s.RemoteFileIDs())

	_, err = s.Remove(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"file_shared"}, remote.deleted)
}

func TestAdd_MediaClearsSkipList(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(&fakeRemote{})

	_, err := s.Add(ctx, "manual.pdf", "m", model.SourceMedia, nil)
	require.NoError(t, err)
	_, err = s.Remove(ctx, 0)
	require.NoError(t, err)
	require.True(t, s.IsSkipped("manual.pdf"))

	_, err = s.Add(ctx, "manual.pdf", "m", model.SourceMedia, nil)
	require.NoError(t, err)
	assert.False(t, s.IsSkipped("manual.pdf"))
}

func TestRemoteFileIDs(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(&fakeRemote{})

	_, err := s.Add(ctx, "a.pdf", "a", model.SourceUpload, nil)
	require.NoError(t, err)
	_, err = s.Add(ctx, "b.pdf", "b", model.SourceUpload, nil)
	require.NoError(t, err)

	assert.Equal(t, []string{"file_1", "file_2"}, s.RemoteFileIDs())
}
