package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/config"
	natsclient "github.com/FabioProni/mida-chatbot-mvp-custom/internal/nats"
	"github.com/FabioProni/mida-chatbot-mvp-custom/pkg/logger"
)

var (
	transcriptSession      string
	transcriptConversation string
	transcriptLimit        int
)

var transcriptCmd = &cobra.Command{
	Use:   "transcript",
	Short: "Print a transcript mirrored to NATS",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if cfg.NATSURL == "" {
			return fmt.Errorf("NATS_URL is not set")
		}

		log := logger.NewNop()
		client, err := natsclient.Connect(cmd.Context(), natsclient.Config{
			URL:      cfg.NATSURL,
			Name:     "corpusctl",
			CAFile:   cfg.NATSCAFile,
			CertFile: cfg.NATSCertFile,
			KeyFile:  cfg.NATSKeyFile,
			Token:    cfg.NATSToken,
		}, log)
		if err != nil {
			return err
		}
		defer client.Close()

		entries, err := natsclient.NewMirror(client, cfg.NATSRetention).
			Transcript(cmd.Context(), transcriptSession, transcriptConversation, transcriptLimit)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		for _, e := range entries {
			fmt.Fprintf(out, "[%d] %s %s %s: %s\n",
				e.Sequence,
				e.Message.CreatedAt.Format(time.RFC3339),
				e.ConversationID,
				e.Message.Role,
				e.Message.Content,
			)
		}
		return nil
	},
}

func init() {
	transcriptCmd.Flags().StringVar(&transcriptSession, "session", "", "session id")
	transcriptCmd.Flags().StringVar(&transcriptConversation, "conversation", "", "conversation id, all when empty")
	transcriptCmd.Flags().IntVar(&transcriptLimit, "limit", 200, "maximum entries")
	_ = transcriptCmd.MarkFlagRequired("session")
}
