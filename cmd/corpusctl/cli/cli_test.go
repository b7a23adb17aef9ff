package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/config"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/corpus"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/corpus/corpustest"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/tone"
)

func useFake(t *testing.T) *corpustest.Fake {
	t.Helper()
	fake := corpustest.New()
	prev := newBackend
	newBackend = func(*config.Config, *config.Credentials) (corpus.Backend, error) { return fake, nil }
	t.Cleanup(func() {
		newBackend = prev
		keepIDs, dryRun = nil, false
	})

	for _, k := range []string{config.EnvAssistantID, config.EnvVectorStoreID, config.EnvTone} {
		t.Setenv(k, "")
	}
	return fake
}

func run(t *testing.T, secrets string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	RootCmd.SetOut(&out)
	RootCmd.SetErr(&out)
	RootCmd.SetArgs(append(args, "--secrets", secrets))
	err := RootCmd.Execute()
	return out.String(), err
}

func writeSecrets(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "secrets.toml")
	require.NoError(t, os.WriteFile(path, []byte("openai_api_key = \"sk-test\"\n"+content), 0o600))
	return path
}

func TestBootstrap_CreatesMissingResources(t *testing.T) {
	fake := useFake(t)
	path := writeSecrets(t, "")

	out, err := run(t, path, "bootstrap")
	require.NoError(t, err)
	assert.Contains(t, out, "# new ids")
	assert.Contains(t, out, `assistant_id = "asst_1"`)
	assert.Contains(t, out, `vector_store_id = "vs_2"`)

	a, ok := fake.Assistant("asst_1")
	require.True(t, ok)
	assert.Equal(t, []string{"vs_2"}, a.VectorStoreIDs)
	assert.Equal(t, tone.Compose(tone.Preamble, tone.Default), a.Instructions)
}

func TestBootstrap_ReusesConfiguredResources(t *testing.T) {
	fake := useFake(t)
	fake.SeedVectorStore("vs_saved")
	fake.SeedAssistant(corpus.Assistant{ID: "asst_saved", VectorStoreIDs: []string{"vs_saved"}})
	path := writeSecrets(t, "assistant_id = \"asst_saved\"\nvector_store_id = \"vs_saved\"\n")

	out, err := run(t, path, "bootstrap")
	require.NoError(t, err)
	assert.NotContains(t, out, "# new ids")
	assert.Zero(t, fake.CountCalls("CreateAssistant"))
	assert.Zero(t, fake.CountCalls("CreateVectorStore"))
}

func TestFilesAndReconcile(t *testing.T) {
	fake := useFake(t)
	fake.SeedVectorStore("vs_saved")
	fake.SeedAssistant(corpus.Assistant{ID: "asst_saved", VectorStoreIDs: []string{"vs_saved"}})
	fake.SeedFile("vs_saved", "file_a", "a.pdf")
	fake.SeedFile("vs_saved", "file_b", "b.pdf")
	path := writeSecrets(t, "assistant_id = \"asst_saved\"\nvector_store_id = \"vs_saved\"\n")

	out, err := run(t, path, "files")
	require.NoError(t, err)
	assert.Contains(t, out, "file_a\ta.pdf")
	assert.Contains(t, out, "2 file(s)")

	out, err = run(t, path, "reconcile", "--keep", "file_a", "--dry-run")
	require.NoError(t, err)
	assert.Equal(t, "would delete file_b\n", out)
	assert.Len(t, fake.VectorStoreFiles("vs_saved"), 2)

	out, err = run(t, path, "reconcile", "--keep", "file_a", "--dry-run=false")
	require.NoError(t, err)
	assert.Contains(t, out, "deleted file_b")
	assert.Equal(t, []string{"file_a"}, fake.VectorStoreFiles("vs_saved"))
}

func TestTonePushAndShow(t *testing.T) {
	fake := useFake(t)
	fake.SeedAssistant(corpus.Assistant{ID: "asst_saved", Instructions: tone.Preamble})
	path := writeSecrets(t, "assistant_id = \"asst_saved\"\n")

	_, err := run(t, path, "tone", "show")
	assert.Error(t, err, "no tone embedded yet")

	_, err = run(t, path, "tone", "push", "Sii conciso.")
	require.NoError(t, err)

	out, err := run(t, path, "tone", "show")
	require.NoError(t, err)
	assert.Equal(t, "Sii conciso.\n", out)
}

func TestMissingAPIKey(t *testing.T) {
	useFake(t)
	t.Setenv(config.EnvOpenAIAPIKey, "")
	path := filepath.Join(t.TempDir(), "empty.toml")
	require.NoError(t, os.WriteFile(path, nil, 0o600))

	_, err := run(t, path, "files")
	var cfgErr *config.ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}
