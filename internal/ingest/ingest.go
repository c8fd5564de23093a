package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"

	"github.com/andresmejia3/facesheet/internal/archive"
	"github.com/andresmejia3/facesheet/internal/index"
	"github.com/andresmejia3/facesheet/internal/page"
	"github.com/andresmejia3/facesheet/internal/types"
)

// BuilderFactory creates the Builder owned by one worker goroutine, plus a
// function releasing its resources (e.g. the detector process).
type BuilderFactory func(ctx context.Context, workerID int) (*page.Builder, func(), error)

// Options configures an ingestion run.
type Options struct {
	Engines    int
	NewBuilder BuilderFactory
	// Progress receives the progress bar. Nil disables it.
	Progress io.Writer
	Logger   *slog.Logger
}

// Skipped is an archive entry that produced no record.
type Skipped struct {
	Name string
	Err  error
}

// Result is the outcome of an ingestion run.
type Result struct {
	Index *index.Index
	// Records are in archive order, skipped entries excluded.
	Records []*page.Record
	Skipped []Skipped
	// Warnings hold detector/extractor failures of records that were kept.
	Warnings []error
}

// entryResult wraps the output from a worker to be sent to the aggregator
type entryResult struct {
	Index  int
	Name   string
	Record *page.Record
	Err    error
}

// Run builds one record per entry using opts.Engines parallel builders and
// returns the Index once every entry has been processed. Failures of single
// entries never abort the run; a builder that cannot start does.
func Run(ctx context.Context, entries []archive.Entry, opts Options) (*Result, error) {
	if opts.NewBuilder == nil {
		return nil, errors.New("ingest: no builder factory configured")
	}
	if opts.Engines < 1 {
		opts.Engines = 1
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	progress := opts.Progress
	if progress == nil {
		progress = io.Discard
	}

	// Cancel on early return so workers and the feeder stop promptly.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	taskChan := make(chan types.PageTask, opts.Engines)
	resultsChan := make(chan entryResult, opts.Engines*2)
	errChan := make(chan error, opts.Engines)
	readyChan := make(chan struct{}, opts.Engines)
	var wg sync.WaitGroup

	// 1. Spawn the Engine Pool
	for i := 0; i < opts.Engines; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			builder, release, err := opts.NewBuilder(ctx, workerID)
			if err != nil {
				errChan <- fmt.Errorf("worker %d startup failed: %w", workerID, err)
				return
			}
			if release != nil {
				defer release()
			}
			readyChan <- struct{}{}

			for task := range taskChan {
				rec, err := builder.Build(ctx, task.Name, task.Data)
				select {
				case resultsChan <- entryResult{Index: task.Index, Name: task.Name, Record: rec, Err: err}:
				case <-ctx.Done():
					return
				}
			}
		}(i)
	}

	// 2. Wait for workers to be ready
	for i := 0; i < opts.Engines; i++ {
		select {
		case <-readyChan:
		case err := <-errChan:
			cancel()
			close(taskChan)
			wg.Wait()
			return nil, err
		case <-ctx.Done():
			close(taskChan)
			wg.Wait()
			return nil, ctx.Err()
		}
	}

	// 3. Feed entries. Read failures skip the workers and go straight to the aggregator.
	feederDone := make(chan struct{})
	go func() {
		defer close(feederDone)
		defer close(taskChan)
		for _, e := range entries {
			data, err := e.Read()
			if err != nil {
				select {
				case resultsChan <- entryResult{Index: e.Index, Name: e.Name, Err: err}:
					continue
				case <-ctx.Done():
					return
				}
			}
			select {
			case taskChan <- types.PageTask{Index: e.Index, Name: e.Name, Data: data}:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		<-feederDone
		close(resultsChan)
	}()

	bar := progressbar.NewOptions(len(entries),
		progressbar.OptionSetDescription("🔍 Indexing pages"),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowCount(),
	)

	// 4. Aggregate in archive order (worker 2 might finish before worker 1)
	res := &Result{}
	buffer := make(map[int]entryResult)
	order := make(map[int]int, len(entries))
	for i, e := range entries {
		order[e.Index] = i
	}
	next := 0
	seen := make(map[string]bool, len(entries))

	for r := range resultsChan {
		buffer[order[r.Index]] = r
		for {
			cur, ok := buffer[next]
			if !ok {
				break
			}
			delete(buffer, next)
			next++
			bar.Add(1)
			collect(res, cur, seen, logger)
		}
	}
	bar.Finish()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ix, err := index.New(res.Records...)
	if err != nil {
		return nil, err
	}
	res.Index = ix
	return res, nil
}

func collect(res *Result, r entryResult, seen map[string]bool, logger *slog.Logger) {
	if r.Record == nil {
		err := r.Err
		if err == nil {
			err = errors.New("no record produced")
		}
		logger.Warn("Skipping archive entry", "entry", r.Name, "err", err)
		res.Skipped = append(res.Skipped, Skipped{Name: r.Name, Err: err})
		return
	}
	if seen[r.Name] {
		err := fmt.Errorf("duplicate entry name %q", r.Name)
		logger.Warn("Skipping archive entry", "entry", r.Name, "err", err)
		res.Skipped = append(res.Skipped, Skipped{Name: r.Name, Err: err})
		return
	}
	seen[r.Name] = true

	if r.Err != nil {
		logger.Warn("Page indexed with degraded record", "entry", r.Name, "err", r.Err)
		res.Warnings = append(res.Warnings, r.Err)
	}
	res.Records = append(res.Records, r.Record)
}
