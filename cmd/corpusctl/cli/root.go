// Package cli implements the corpusctl commands.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/config"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/corpus"
	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/llm"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

var (
	secretsPath string
	verbose     bool
)

// newBackend builds the remote corpus backend from resolved credentials.
var newBackend = func(cfg *config.Config, creds *config.Credentials) (corpus.Backend, error) {
	return llm.NewClient(llm.Config{
		APIKey:  creds.OpenAIAPIKey,
		BaseURL: cfg.OpenAIBaseURL,
		Model:   cfg.Model,
	})
}

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "corpusctl",
	Short: "Maintain the MIDA remote corpus",
	Long: `corpusctl creates or verifies the assistant and vector store the API uses,
inspects and prunes vector store files, pushes the tone of voice and reads
transcripts mirrored to NATS.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	RootCmd.PersistentFlags().StringVar(&secretsPath, "secrets", "", "secrets TOML file (default from SECRETS_FILE)")
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log backend calls")

	RootCmd.AddCommand(bootstrapCmd, filesCmd, reconcileCmd, toneCmd, transcriptCmd)
}

// env is the resolved runtime of one command.
type env struct {
	cfg     *config.Config
	creds   *config.Credentials
	backend corpus.Backend
	log     *logger.Logger
}

func loadEnv() (*env, error) {
	cfg := config.Load()
	if secretsPath != "" {
		cfg.SecretsFile = secretsPath
	}

	log := logger.NewNop()
	if verbose {
		l, err := logger.New("debug")
		if err != nil {
			return nil, err
		}
		log = l
	}

	secrets, err := config.LoadSecrets(cfg.SecretsFile)
	if err != nil {
		return nil, err
	}

	// The access password is not needed here; only the API key is required.
	apiKey, err := secrets.Require(config.KeyOpenAIAPIKey, config.EnvOpenAIAPIKey, "OpenAI API Key")
	if err != nil {
		return nil, err
	}
	creds := &config.Credentials{OpenAIAPIKey: apiKey}
	creds.Tone, _ = secrets.Lookup(config.KeyTone, config.EnvTone)
	creds.AssistantID, _ = secrets.Lookup(config.KeyAssistantID, config.EnvAssistantID)
	creds.VectorStoreID, _ = secrets.Lookup(config.KeyVectorStoreID, config.EnvVectorStoreID)

	backend, err := newBackend(cfg, creds)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, creds: creds, backend: backend, log: log}, nil
}

func (e *env) binding(instructions func() string) *corpus.Binding {
	return corpus.NewBinding(e.backend, corpus.Options{
		AssistantName: e.cfg.AssistantName,
		Model:         e.cfg.Model,
		AssistantID:   e.creds.AssistantID,
		VectorStoreID: e.creds.VectorStoreID,
		Instructions:  instructions,
	}, e.log)
}
