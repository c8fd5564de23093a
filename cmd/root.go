package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/andresmejia3/facesheet/internal/store"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// Options holds shared configuration for index, search, and annotate commands
type Options struct {
	InputPath     string
	NumEngines    int
	ScaleFactor   float64
	Cascade       string
	OCREngine     string
	Languages     []string
	WorkerTimeout string
}

var (
	// DB is the global database connection shared by subcommands.
	// It stays nil when an optional store could not be reached.
	DB *store.Store
	// dbURL is the connection string
	dbURL string
)

// Version is the application version.
const Version = "0.1.0"

// storeAnnotation marks commands that cannot run without the database.
const storeAnnotation = "store"

var rootCmd = &cobra.Command{
	Use:     "facesheet",
	Short:   "Keyword search over scanned pages, reported as face contact sheets",
	Version: Version, // This enables the --version flag
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
			slog.Warn("Could not load .env file", "err", err)
		}

		required := cmd.Annotations[storeAnnotation] == "required"
		url := resolveDBURL(dbURL, required)
		if url == "" {
			return nil
		}

		// Use the command's context (which will be cancellable) for the connection
		var err error
		DB, err = store.New(cmd.Context(), url)
		if err != nil {
			if required {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			slog.Warn("Database unavailable, indexing in memory", "err", err)
			DB = nil
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if DB != nil {
			// Use Background here because the main context might be cancelled already (due to Ctrl+C)
			// and we still need to send the "Close" command to the DB.
			DB.Close(context.Background())
		}
	},
}

// resolveDBURL picks the connection string from the flag, then the POSTGRES_*
// environment. Only commands that require the store fall back to localhost.
func resolveDBURL(flag string, required bool) string {
	if flag != "" {
		return flag
	}
	if host := os.Getenv("POSTGRES_HOST"); host != "" {
		user := os.Getenv("POSTGRES_USER")
		pass := os.Getenv("POSTGRES_PASSWORD")
		name := os.Getenv("POSTGRES_DB")
		port := os.Getenv("POSTGRES_PORT")
		if port == "" {
			port = "5432"
		}
		return fmt.Sprintf("postgres://%s:%s@%s:%s/%s", user, pass, host, port, name)
	}
	if required {
		return "postgres://localhost:5432/facesheet"
	}
	return ""
}

func Execute() {
	// Create a context that listens for Ctrl+C (SIGINT) or Kill (SIGTERM)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&dbURL, "db", "", "PostgreSQL connection string (default: POSTGRES_* environment, then postgres://localhost:5432/facesheet)")
}

// addDetectorFlags registers the input and face detector flags.
func addDetectorFlags(cmd *cobra.Command, opts *Options) {
	cmd.Flags().StringVarP(&opts.InputPath, "input", "i", "", "Path to the zip archive of page images")
	cmd.Flags().Float64Var(&opts.ScaleFactor, "scale", 1.3, "Haar cascade scale factor (must be > 1.0)")
	cmd.Flags().StringVar(&opts.Cascade, "cascade", "", "Path to the Haar cascade XML (default: FACESHEET_CASCADE or OpenCV's frontal face model)")
	cmd.Flags().StringVar(&opts.WorkerTimeout, "worker-timeout", "60s", "Timeout for a worker to process a single page")
	cmd.MarkFlagRequired("input")
}

// addEngineFlags registers the flags every command that indexes whole archives shares.
func addEngineFlags(cmd *cobra.Command, opts *Options) {
	addDetectorFlags(cmd, opts)
	cmd.Flags().IntVarP(&opts.NumEngines, "engines", "e", 1, "Number of parallel detector workers")
	cmd.Flags().StringVar(&opts.OCREngine, "ocr", "tesseract", "Text engine: tesseract, vision")
	cmd.Flags().StringSliceVar(&opts.Languages, "lang", []string{"eng"}, "Tesseract languages")
}
