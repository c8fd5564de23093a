package cmd

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"os"

	"github.com/andresmejia3/facesheet/internal/archive"
	"github.com/andresmejia3/facesheet/internal/page"
	"github.com/andresmejia3/facesheet/internal/utils"
	"github.com/andresmejia3/facesheet/internal/worker"
	"github.com/spf13/cobra"
)

var (
	annotateOpts      Options
	annotatePage      string
	annotateOutput    string
	annotateThickness int
)

// outlineColor is used for every detected face.
var outlineColor = color.RGBA{R: 255, A: 255}

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Outline the faces detected on one page of an archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runAnnotate(cmd.Context(), annotateOpts)
	},
}

func init() {
	addDetectorFlags(annotateCmd, &annotateOpts)
	annotateCmd.Flags().StringVarP(&annotatePage, "page", "p", "", "Archive entry name of the page to annotate")
	annotateCmd.Flags().StringVarP(&annotateOutput, "output", "o", "annotated.png", "Path to the output PNG")
	annotateCmd.Flags().IntVar(&annotateThickness, "thickness", 2, "Outline thickness in pixels")
	annotateCmd.MarkFlagRequired("page")
	rootCmd.AddCommand(annotateCmd)
}

func runAnnotate(ctx context.Context, opts Options) error {
	if err := validateAnnotateFlags(&opts); err != nil {
		return err
	}

	zr, err := archive.Open(opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to open archive", err, nil)
		return err
	}
	defer zr.Close()

	entry, ok := zr.Find(annotatePage)
	if !ok {
		err := fmt.Errorf("no entry named %q", annotatePage)
		utils.ShowError("Page not found in archive", err, nil)
		return err
	}
	data, err := entry.Read()
	if err != nil {
		utils.ShowError("Failed to read page", err, nil)
		return err
	}

	cfg, err := detectConfig(opts)
	if err != nil {
		return err
	}
	w, err := worker.NewDetectorWorker(ctx, 0, cfg)
	if err != nil {
		utils.ShowError("Worker startup failed", err, nil)
		return err
	}
	defer w.Close()

	// Text is not needed for outlines, so the builder runs without an extractor.
	rec, err := page.NewBuilder(w, nil).Build(ctx, entry.Name, data)
	if rec == nil {
		utils.ShowError("Failed to decode page", err, nil)
		return err
	}
	if err != nil {
		utils.ShowError("Detector failed", err, w.Cmd)
		return err
	}

	img := page.ToRGBA(rec.Image)
	for _, box := range rec.Faces {
		outlineFace(img, box.Rect(), annotateThickness)
	}

	if err := writePNG(annotateOutput, img); err != nil {
		utils.ShowError("Failed to write annotated page", err, nil)
		return err
	}
	fmt.Fprintf(os.Stderr, "✅ %d faces outlined. Written to %s\n", len(rec.Faces), annotateOutput)
	return nil
}

// outlineFace draws a rectangle border of the given thickness inside rect.
func outlineFace(img *image.RGBA, rect image.Rectangle, thickness int) {
	if thickness < 1 {
		thickness = 1
	}
	t := min(thickness, rect.Dx(), rect.Dy())
	fillRect(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Max.X, rect.Min.Y+t))
	fillRect(img, image.Rect(rect.Min.X, rect.Max.Y-t, rect.Max.X, rect.Max.Y))
	fillRect(img, image.Rect(rect.Min.X, rect.Min.Y, rect.Min.X+t, rect.Max.Y))
	fillRect(img, image.Rect(rect.Max.X-t, rect.Min.Y, rect.Max.X, rect.Max.Y))
}

func fillRect(img *image.RGBA, rect image.Rectangle) {
	// Clip rect to image bounds to prevent panics
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return
	}

	stride := img.Stride
	pix := img.Pix
	imgMinX, imgMinY := img.Rect.Min.X, img.Rect.Min.Y
	for y := rect.Min.Y; y < rect.Max.Y; y++ {
		rowStart := (y-imgMinY)*stride + (rect.Min.X-imgMinX)*4
		for x := 0; x < rect.Dx(); x++ {
			off := rowStart + x*4
			pix[off] = outlineColor.R
			pix[off+1] = outlineColor.G
			pix[off+2] = outlineColor.B
			pix[off+3] = outlineColor.A
		}
	}
}

func validateAnnotateFlags(opts *Options) error {
	if err := validateInput(opts.InputPath, annotateOutput); err != nil {
		return err
	}
	if annotatePage == "" {
		err := fmt.Errorf("--page is required")
		utils.ShowError("Configuration Error", err, nil)
		return err
	}
	return validateDetectorFlags(opts)
}
