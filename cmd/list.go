package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/andresmejia3/facesheet/internal/store"
	"github.com/andresmejia3/facesheet/internal/utils"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:         "list",
	Short:       "List all indexed pages in the database",
	Annotations: map[string]string{storeAnnotation: "required"},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runList(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(ctx context.Context) error {
	pages, err := DB.ListPages(ctx)
	if err != nil {
		utils.ShowError("Failed to list pages", err, nil)
		return err
	}
	printPages(os.Stdout, pages)
	return nil
}

func printPages(out io.Writer, pages []store.PageSummary) {
	if len(pages) == 0 {
		fmt.Fprintln(out, "No pages found in database.")
		return
	}

	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "ARCHIVE\tPAGE\tNAME\tFACES\tTEXT\tINDEXED")
	fmt.Fprintln(w, "-------\t----\t----\t-----\t----\t-------")

	for _, p := range pages {
		fmt.Fprintf(w, "%s\t%d\t%s\t%d\t%d chars\t%s\n", shortID(p.ArchiveID), p.Ordinal+1, p.Name, p.FaceCount, p.TextLength, p.IndexedAt.Local().Format("2006-01-02 15:04"))
	}
	w.Flush()
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
