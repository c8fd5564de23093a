package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/andresmejia3/facesheet/internal/report"
	"github.com/andresmejia3/facesheet/internal/sheet"
	"github.com/andresmejia3/facesheet/internal/utils"
	"github.com/spf13/cobra"
	"golang.org/x/image/font"
)

var (
	searchOpts     Options
	searchQuery    string
	searchOutput   string
	searchFont     string
	searchFontSize float64
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Render contact sheets of the faces on every page containing a keyword",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runSearch(cmd.Context(), searchOpts)
	},
}

func init() {
	addEngineFlags(searchCmd, &searchOpts)
	searchCmd.Flags().StringVarP(&searchQuery, "query", "q", "", "Keyword to search for (prompted when omitted)")
	searchCmd.Flags().StringVarP(&searchOutput, "output", "o", "results.png", "Path to the output PNG")
	searchCmd.Flags().StringVar(&searchFont, "font", "", "TrueType/OpenType font for captions (default: built-in bitmap font)")
	searchCmd.Flags().Float64Var(&searchFontSize, "font-size", sheet.DefaultFontSize, "Caption font size in points")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(ctx context.Context, opts Options) error {
	if err := validateSearchFlags(&opts); err != nil {
		return err
	}

	face, err := captionFace()
	if err != nil {
		utils.ShowError("Failed to load caption font", err, nil)
		return err
	}

	query := searchQuery
	if query == "" {
		query = promptQuery(bufio.NewReader(os.Stdin), os.Stderr)
	}

	ix, err := loadIndex(ctx, opts)
	if err != nil {
		return err
	}

	canvas := report.Render(ix, query, sheet.New(face))
	if err := writePNG(searchOutput, canvas.Image()); err != nil {
		utils.ShowError("Failed to write results", err, nil)
		return err
	}

	fmt.Fprintf(os.Stderr, "✅ %d matching pages. Results written to %s\n", len(ix.Lookup(query)), searchOutput)
	return nil
}

func captionFace() (font.Face, error) {
	if searchFont == "" {
		return sheet.DefaultFace(), nil
	}
	return sheet.LoadFace(searchFont, searchFontSize)
}

// promptQuery asks for the keyword interactively. Only the trailing line break is removed.
func promptQuery(r *bufio.Reader, w io.Writer) string {
	fmt.Fprint(w, "🔎 Enter a keyword to search for: ")
	line, _ := r.ReadString('\n')
	return strings.TrimRight(line, "\r\n")
}

func validateSearchFlags(opts *Options) error {
	if err := validateInput(opts.InputPath, searchOutput); err != nil {
		return err
	}

	if searchFont != "" {
		if _, err := os.Stat(searchFont); err != nil {
			utils.ShowError("Unable to access font file", err, nil)
			return err
		}
		if searchFontSize <= 0 {
			err := fmt.Errorf("must be positive, got %f", searchFontSize)
			utils.ShowError("Invalid font size", err, nil)
			return err
		}
	}

	return validateEngineFlags(opts)
}
