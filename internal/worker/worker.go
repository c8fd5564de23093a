package worker

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/andresmejia3/facesheet/internal/page"
	"github.com/andresmejia3/facesheet/internal/types"
	"github.com/andresmejia3/facesheet/internal/utils" // Using the SafeCommand wrapper
)

// DefaultScaleFactor is the cascade scale step used for every page.
const DefaultScaleFactor = 1.3

// DefaultMaxRestarts bounds how often a worker relaunches its process without
// completing a single page in between.
const DefaultMaxRestarts = 3

// DetectConfig configures one detector process.
type DetectConfig struct {
	Python      string
	Script      string
	Cascade     string
	ScaleFactor float64
	ReadTimeout time.Duration
	MaxRestarts int
}

// DefaultDetectConfig reads the interpreter and script location from the environment.
func DefaultDetectConfig() DetectConfig {
	return DetectConfig{
		Python:      utils.GetEnv("FACESHEET_PYTHON", "python3"),
		Script:      utils.GetEnv("FACESHEET_DETECTOR_SCRIPT", "python/detector.py"),
		Cascade:     utils.GetEnv("FACESHEET_CASCADE", ""),
		ScaleFactor: DefaultScaleFactor,
		ReadTimeout: 60 * time.Second,
		MaxRestarts: DefaultMaxRestarts,
	}
}

// ErrWorkerBroken is returned when the detector process died or fell out of
// sync and could not be relaunched.
var ErrWorkerBroken = errors.New("detector worker is no longer usable")

// RemoteError is a failure reported by a healthy detector process (status 1).
// The pipe stays in sync, so the process is kept.
type RemoteError struct {
	Msg string
}

func (e *RemoteError) Error() string { return "detector worker error: " + e.Msg }

// Launcher starts a detector process and returns its request and response pipes.
type Launcher func() (*utils.SafeCommand, io.WriteCloser, io.ReadCloser, error)

// DetectorWorker runs one detector process and talks to it over pipes.
// A timed out or crashed process is killed and relaunched on the next page.
// It is not safe for concurrent use; the ingest pool gives each goroutine its own.
type DetectorWorker struct {
	ID          int
	Cmd         *utils.SafeCommand
	Stdin       io.WriteCloser
	DataPipe    io.ReadCloser
	ReadTimeout time.Duration
	// Launch (re)starts the process. Nil means a broken worker stays broken.
	Launch Launcher
	// MaxRestarts caps consecutive relaunches without a completed page.
	// Zero means DefaultMaxRestarts.
	MaxRestarts int

	broken   bool
	restarts int
}

func NewDetectorWorker(ctx context.Context, id int, cfg DetectConfig) (*DetectorWorker, error) {
	if cfg.ScaleFactor <= 1.0 {
		return nil, fmt.Errorf("scale factor must be greater than 1.0, got %f", cfg.ScaleFactor)
	}

	w := &DetectorWorker{
		ID:          id,
		ReadTimeout: cfg.ReadTimeout,
		MaxRestarts: cfg.MaxRestarts,
		Launch: func() (*utils.SafeCommand, io.WriteCloser, io.ReadCloser, error) {
			return startPython(ctx, id, cfg)
		},
	}
	py, stdin, out, err := w.Launch()
	if err != nil {
		return nil, err
	}
	w.Cmd, w.Stdin, w.DataPipe = py, stdin, out
	return w, nil
}

func startPython(ctx context.Context, id int, cfg DetectConfig) (*utils.SafeCommand, io.WriteCloser, io.ReadCloser, error) {
	args := []string{"-u", cfg.Script, "--scale", strconv.FormatFloat(cfg.ScaleFactor, 'f', -1, 64)}
	if cfg.Cascade != "" {
		args = append(args, "--cascade", cfg.Cascade)
	}
	py := utils.NewSafeCommand(ctx, cfg.Python, args...)

	// Create a side-channel pipe (FD 3) for clean data transfer
	r, w, err := os.Pipe()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create pipe: %w", err)
	}
	// Pass the write-end to the child process. It will appear as FD 3.
	py.Cmd.ExtraFiles = []*os.File{w}

	stdin, err := py.StdinPipe()
	if err != nil {
		w.Close() // Prevent FD leak
		r.Close()
		return nil, nil, nil, fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	if err := py.Start(); err != nil {
		w.Close()
		r.Close()
		return nil, nil, nil, fmt.Errorf("worker %d failed to start: %w", id, err)
	}

	// Close the write-end in the parent so only the child holds it
	w.Close()

	return py, stdin, r, nil
}

// Detect sends the page to the detector process and returns the normalized boxes.
func (w *DetectorWorker) Detect(ctx context.Context, img *image.RGBA) ([]page.BoundingBox, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode page: %w", err)
	}
	body, err := w.ProcessPage(ctx, buf.Bytes())
	if err != nil {
		return nil, err
	}
	return ParseBoxes(body)
}

// ProcessPage performs one request/response round-trip, bounded by ReadTimeout and ctx.
// Only the current page fails when the process hangs or dies; the next call relaunches it.
func (w *DetectorWorker) ProcessPage(ctx context.Context, data []byte) ([]byte, error) {
	if w.broken || w.Stdin == nil {
		if err := w.relaunch(); err != nil {
			return nil, err
		}
	}

	type reply struct {
		body []byte
		err  error
	}
	done := make(chan reply, 1)
	stdin, out := w.Stdin, w.DataPipe
	go func() {
		body, err := communicate(stdin, out, data)
		done <- reply{body, err}
	}()

	var timeout <-chan time.Time
	if w.ReadTimeout > 0 {
		timer := time.NewTimer(w.ReadTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	select {
	case r := <-done:
		var remote *RemoteError
		if r.err != nil && !errors.As(r.err, &remote) {
			// Transport failure: the process crashed or the frames are out of sync
			w.abort()
			return nil, fmt.Errorf("worker %d crashed: %w", w.ID, r.err)
		}
		w.restarts = 0
		return r.body, r.err
	case <-ctx.Done():
		w.abort()
		return nil, ctx.Err()
	case <-timeout:
		w.abort()
		return nil, fmt.Errorf("worker %d timed out after %s", w.ID, w.ReadTimeout)
	}
}

// relaunch replaces a dead or never started process.
func (w *DetectorWorker) relaunch() error {
	if w.Launch == nil {
		return ErrWorkerBroken
	}
	limit := w.MaxRestarts
	if limit <= 0 {
		limit = DefaultMaxRestarts
	}
	if w.broken {
		if w.restarts >= limit {
			return fmt.Errorf("%w: %d restarts without a completed page", ErrWorkerBroken, w.restarts)
		}
		w.restarts++
		slog.Warn("Restarting detector worker", "worker", w.ID, "attempt", w.restarts)
	}
	w.release()

	py, stdin, out, err := w.Launch()
	if err != nil {
		w.broken = true
		return fmt.Errorf("%w: %v", ErrWorkerBroken, err)
	}
	w.Cmd, w.Stdin, w.DataPipe = py, stdin, out
	w.broken = false
	return nil
}

// Communicate writes one framed request and reads one framed response.
// Protocol: [Length][Data] -> [Length][Status][Body]
func (w *DetectorWorker) Communicate(data []byte) ([]byte, error) {
	return communicate(w.Stdin, w.DataPipe, data)
}

func communicate(stdin io.Writer, out io.Reader, data []byte) ([]byte, error) {
	if err := binary.Write(stdin, binary.BigEndian, uint32(len(data))); err != nil {
		return nil, err
	}
	if _, err := stdin.Write(data); err != nil {
		return nil, err
	}

	header := make([]byte, 4)
	if _, err := io.ReadFull(out, header); err != nil {
		return nil, err // This is where we catch an interpreter crash (e.g. missing cv2)
	}

	respLen := binary.BigEndian.Uint32(header)
	if respLen == 0 {
		return nil, fmt.Errorf("detector returned an empty frame")
	}
	resp := make([]byte, respLen)
	if _, err := io.ReadFull(out, resp); err != nil {
		return nil, err
	}

	switch resp[0] {
	case types.StatusOK:
		return resp[1:], nil
	case types.StatusError:
		return nil, &RemoteError{Msg: string(resp[1:])}
	default:
		return nil, fmt.Errorf("detector worker sent unknown status %d", resp[0])
	}
}

func (w *DetectorWorker) abort() {
	w.broken = true
	if w.Cmd != nil && w.Cmd.Process != nil {
		w.Cmd.Process.Kill()
	}
}

// release closes the pipes and reaps the process. Closing the pipes also
// unblocks a round-trip still waiting on a hung process.
func (w *DetectorWorker) release() {
	if w.Stdin != nil {
		w.Stdin.Close()
	}
	if w.DataPipe != nil {
		w.DataPipe.Close()
	}
	if w.Cmd != nil {
		w.Cmd.Wait()
	}
	w.Cmd, w.Stdin, w.DataPipe = nil, nil, nil
}

func (w *DetectorWorker) Close() {
	w.release()
}
