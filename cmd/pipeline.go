package cmd

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/andresmejia3/facesheet/internal/archive"
	"github.com/andresmejia3/facesheet/internal/index"
	"github.com/andresmejia3/facesheet/internal/ingest"
	"github.com/andresmejia3/facesheet/internal/ocr"
	"github.com/andresmejia3/facesheet/internal/page"
	"github.com/andresmejia3/facesheet/internal/utils"
	"github.com/andresmejia3/facesheet/internal/worker"
)

// detectConfig merges the command flags into the environment defaults.
func detectConfig(opts Options) (worker.DetectConfig, error) {
	cfg := worker.DefaultDetectConfig()
	cfg.ScaleFactor = opts.ScaleFactor
	if opts.Cascade != "" {
		cfg.Cascade = opts.Cascade
	}
	timeout, err := time.ParseDuration(opts.WorkerTimeout)
	if err != nil {
		return cfg, err
	}
	cfg.ReadTimeout = timeout
	return cfg, nil
}

// newBuilderFactory gives every ingest worker its own detector process and text engine.
func newBuilderFactory(opts Options) (ingest.BuilderFactory, error) {
	cfg, err := detectConfig(opts)
	if err != nil {
		return nil, err
	}
	return func(ctx context.Context, workerID int) (*page.Builder, func(), error) {
		w, err := worker.NewDetectorWorker(ctx, workerID, cfg)
		if err != nil {
			return nil, nil, err
		}
		eng, err := ocr.New(ctx, opts.OCREngine, opts.Languages)
		if err != nil {
			w.Close()
			return nil, nil, err
		}
		release := func() {
			eng.Close()
			w.Close()
		}
		return page.NewBuilder(w, eng), release, nil
	}, nil
}

// archiveFingerprint identifies the archive together with the settings that
// decide what is extracted from its pages.
func archiveFingerprint(opts Options) (string, error) {
	cfg, err := detectConfig(opts)
	if err != nil {
		return "", err
	}
	engine := opts.OCREngine
	if engine == "" {
		engine = ocr.EngineTesseract
	}
	settings := []string{
		"scale=" + strconv.FormatFloat(cfg.ScaleFactor, 'f', -1, 64),
		"cascade=" + cfg.Cascade,
		"ocr=" + engine,
	}
	if engine == ocr.EngineTesseract {
		settings = append(settings, "lang="+strings.Join(opts.Languages, "+"))
	}
	return utils.GenerateArchiveID(opts.InputPath, settings...)
}

// ingestArchive runs the full pipeline over every page of the archive.
func ingestArchive(ctx context.Context, opts Options) (*ingest.Result, error) {
	zr, err := archive.Open(opts.InputPath)
	if err != nil {
		utils.ShowError("Failed to open archive", err, nil)
		return nil, err
	}
	defer zr.Close()

	factory, err := newBuilderFactory(opts)
	if err != nil {
		utils.ShowError("Invalid detector configuration", err, nil)
		return nil, err
	}

	fmt.Fprintln(os.Stderr, "🚀 Warming up engines...")
	res, err := ingest.Run(ctx, zr.Entries(), ingest.Options{
		Engines:    opts.NumEngines,
		NewBuilder: factory,
		Progress:   os.Stderr,
		Logger:     slog.Default(),
	})
	if err != nil {
		utils.ShowError("Indexing failed", err, nil)
		return nil, err
	}
	fmt.Fprintf(os.Stderr, "\n📄 %d pages indexed, %d skipped, %d degraded\n", len(res.Records), len(res.Skipped), len(res.Warnings))
	return res, nil
}

// loadIndex reuses a stored index for the archive when one exists and ingests
// the archive in memory otherwise.
func loadIndex(ctx context.Context, opts Options) (*index.Index, error) {
	if DB != nil {
		archiveID, err := archiveFingerprint(opts)
		if err != nil {
			return nil, err
		}
		has, err := DB.HasArchive(ctx, archiveID)
		if err != nil {
			slog.Warn("Could not query stored archives", "err", err)
		} else if has {
			ix, err := DB.LoadIndex(ctx, archiveID)
			if err != nil {
				utils.ShowError("Failed to load stored index", err, nil)
				return nil, err
			}
			fmt.Fprintf(os.Stderr, "📦 Loaded %d pages from the database (indexed with the same detector and OCR settings)\n", ix.Len())
			return ix, nil
		}
		slog.Info("Archive not indexed with these settings, indexing in memory", "archive", opts.InputPath)
	}

	res, err := ingestArchive(ctx, opts)
	if err != nil {
		return nil, err
	}
	return res.Index, nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// validateInput checks that path is a readable file and that output would not overwrite it.
func validateInput(path, output string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			utils.ShowError("Input file does not exist", err, nil)
			return err
		}
		utils.ShowError("Unable to access input file", err, nil)
		return err
	}
	if info.IsDir() {
		err := fmt.Errorf("is a directory")
		utils.ShowError("Input path is a directory, expected a zip archive", err, nil)
		return err
	}

	if output != "" {
		inAbs, _ := filepath.Abs(path)
		outAbs, _ := filepath.Abs(output)
		if inAbs == outAbs {
			err := fmt.Errorf("input and output paths must be different")
			utils.ShowError("Configuration Error", err, nil)
			return err
		}
	}
	return nil
}

// validateDetectorFlags checks the face detector settings.
func validateDetectorFlags(opts *Options) error {
	if opts.ScaleFactor <= 1.0 {
		err := fmt.Errorf("must be greater than 1.0, got %f", opts.ScaleFactor)
		utils.ShowError("Invalid scale factor", err, nil)
		return err
	}

	if _, err := time.ParseDuration(opts.WorkerTimeout); err != nil {
		utils.ShowError("Invalid worker-timeout format (use '30s', '1m')", err, nil)
		return err
	}
	return nil
}

// validateEngineFlags checks the worker pool, detector and text engine settings.
func validateEngineFlags(opts *Options) error {
	if opts.NumEngines < 1 {
		opts.NumEngines = 1
	}

	if err := validateDetectorFlags(opts); err != nil {
		return err
	}

	if err := ocr.Validate(opts.OCREngine); err != nil {
		utils.ShowError("Configuration Error", err, nil)
		return err
	}
	return nil
}
