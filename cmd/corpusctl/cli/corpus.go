package cli

import (
	"fmt"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/FabioProni/mida-chatbot-mvp-custom/internal/tone"
)

var (
	keepIDs []string
	dryRun  bool
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Verify or create the assistant and vector store",
	Long: `bootstrap resolves the assistant and vector store ids from the secrets,
creating whichever is missing or stale, and prints the ids to persist.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		instructions := tone.Compose(tone.Preamble, toneOrDefault(e.creds.Tone))
		b := e.binding(func() string { return instructions })

		if _, err := b.EnsureVectorStore(cmd.Context()); err != nil {
			return err
		}
		h := b.Handle()

		out := cmd.OutOrStdout()
		if h.AssistantID != e.creds.AssistantID || h.VectorStoreID != e.creds.VectorStoreID {
			fmt.Fprintln(out, "# new ids, add them to the secrets file")
		}
		fmt.Fprintf(out, "assistant_id = %q\n", h.AssistantID)
		fmt.Fprintf(out, "vector_store_id = %q\n", h.VectorStoreID)
		return nil
	},
}

var filesCmd = &cobra.Command{
	Use:   "files",
	Short: "List the files of the vector store",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if e.creds.VectorStoreID == "" {
			return fmt.Errorf("no vector_store_id configured")
		}

		ids, err := e.backend.ListVectorStoreFiles(cmd.Context(), e.creds.VectorStoreID)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, id := range ids {
			f, err := e.backend.RetrieveFile(cmd.Context(), id)
			name := f.Name
			if err != nil {
				name = "(file object missing)"
			}
			fmt.Fprintf(out, "%s\t%s\n", id, name)
		}
		fmt.Fprintf(out, "%d file(s)\n", len(ids))
		return nil
	},
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Delete vector store files not listed with --keep",
	Long: `reconcile removes every vector store file whose id is not passed with
--keep. Missing files are never uploaded. Use --dry-run to preview.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if e.creds.VectorStoreID == "" {
			return fmt.Errorf("no vector_store_id configured")
		}
		out := cmd.OutOrStdout()

		if dryRun {
			ids, err := e.backend.ListVectorStoreFiles(cmd.Context(), e.creds.VectorStoreID)
			if err != nil {
				return err
			}
			for _, id := range ids {
				if !slices.Contains(keepIDs, id) {
					fmt.Fprintf(out, "would delete %s\n", id)
				}
			}
			return nil
		}

		report, err := e.binding(nil).Reconcile(cmd.Context(), keepIDs)
		if err != nil {
			return err
		}
		for _, id := range report.Deleted {
			fmt.Fprintf(out, "deleted %s\n", id)
		}
		for _, id := range report.Failed {
			fmt.Fprintf(out, "failed %s\n", id)
		}
		fmt.Fprintf(out, "%d deleted, %d kept\n", len(report.Deleted), len(report.RemoteFiles))
		return nil
	},
}

var toneCmd = &cobra.Command{
	Use:   "tone",
	Short: "Show or push the assistant's tone of voice",
}

var toneShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the tone embedded in the assistant instructions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if e.creds.AssistantID == "" {
			return fmt.Errorf("no assistant_id configured")
		}
		a, err := e.backend.RetrieveAssistant(cmd.Context(), e.creds.AssistantID)
		if err != nil {
			return err
		}
		_, t, ok := tone.Split(a.Instructions)
		if !ok {
			return fmt.Errorf("assistant %s carries no tone", a.ID)
		}
		fmt.Fprintln(cmd.OutOrStdout(), t)
		return nil
	},
}

var tonePushCmd = &cobra.Command{
	Use:   "push [tone]",
	Short: "Push a tone, or the configured one, to the assistant",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := loadEnv()
		if err != nil {
			return err
		}
		if e.creds.AssistantID == "" {
			return fmt.Errorf("no assistant_id configured")
		}
		value := e.creds.Tone
		if len(args) == 1 {
			value = strings.TrimSpace(args[0])
		}
		instructions := tone.Compose(tone.Preamble, toneOrDefault(value))
		if err := e.binding(nil).PushInstructions(cmd.Context(), instructions); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "tone updated")
		return nil
	},
}

func init() {
	reconcileCmd.Flags().StringSliceVar(&keepIDs, "keep", nil, "file ids to keep")
	reconcileCmd.Flags().BoolVar(&dryRun, "dry-run", false, "only print what would be deleted")
	toneCmd.AddCommand(toneShowCmd, tonePushCmd)
}

func toneOrDefault(v string) string {
	if strings.TrimSpace(v) == "" {
		return tone.Default
	}
	return v
}
