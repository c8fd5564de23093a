package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/andresmejia3/facesheet/internal/utils"
	"github.com/spf13/cobra"
)

var indexOpts Options

var indexCmd = &cobra.Command{
	Use:         "index",
	Short:       "Detect faces and extract text from every page of an archive and store them",
	Annotations: map[string]string{storeAnnotation: "required"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runIndex(cmd.Context(), indexOpts)
	},
}

func init() {
	addEngineFlags(indexCmd, &indexOpts)
	rootCmd.AddCommand(indexCmd)
}

func runIndex(ctx context.Context, opts Options) error {
	if err := validateIndexFlags(&opts); err != nil {
		return err
	}

	archiveID, err := archiveFingerprint(opts)
	if err != nil {
		utils.ShowError("Failed to fingerprint archive", err, nil)
		return err
	}

	res, err := ingestArchive(ctx, opts)
	if err != nil {
		return err
	}

	if err := DB.IndexArchive(ctx, archiveID, opts.InputPath, res.Records); err != nil {
		utils.ShowError("Failed to save pages", err, nil)
		return err
	}

	for _, s := range res.Skipped {
		fmt.Fprintf(os.Stderr, "⚠️  Skipped %s: %v\n", s.Name, s.Err)
	}
	fmt.Fprintf(os.Stderr, "✅ Stored %d pages. Archive ID: %s\n", len(res.Records), archiveID)
	return nil
}

func validateIndexFlags(opts *Options) error {
	if err := validateInput(opts.InputPath, ""); err != nil {
		return err
	}
	return validateEngineFlags(opts)
}
