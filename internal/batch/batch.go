// Package batch drives the engine over every attachment in a library,
// one attachment per call, so a host can spread the work over as many
// invocations or workers as it likes.
package batch

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/AnyUserName/imgopt/internal/engine"
)

// Source lists attachment IDs in a stable order.
type Source interface {
	IDs() []int64
}

// Optimizer optimizes every file of one attachment.
type Optimizer interface {
	OptimizeAttachment(ctx context.Context, id int64) ([]engine.Result, error)
}

// Outcome is the result of ProcessOne.
type Outcome struct {
	ID         int64
	Files      int
	SavedBytes uint64
	// Skipped is set when nothing was optimized: the attachment is
	// unknown, failed, or had no applicable files.
	Skipped bool
	Err     error
	Results []engine.Result
}

// Driver hands out work and processes single attachments.
type Driver struct {
	src Source
	opt Optimizer
	log *slog.Logger
}

// New returns a driver. log may be nil.
func New(src Source, opt Optimizer, log *slog.Logger) *Driver {
	if log == nil {
		log = slog.Default()
	}
	return &Driver{src: src, opt: opt, log: log}
}

// ListTargetIDs returns every attachment ID to process.
func (d *Driver) ListTargetIDs(ctx context.Context) ([]int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return d.src.IDs(), nil
}

// ProcessOne optimizes one attachment and returns.
func (d *Driver) ProcessOne(ctx context.Context, id int64) Outcome {
	out := Outcome{ID: id}

	results, err := d.opt.OptimizeAttachment(ctx, id)
	if err != nil {
		d.log.Warn("attachment skipped", "attachment", id, "error", err)
		out.Skipped = true
		out.Err = err
		return out
	}
	if len(results) == 0 {
		out.Skipped = true
		return out
	}

	out.Results = results
	out.Files = len(results)
	for _, r := range results {
		out.SavedBytes += r.SavedBytes
	}
	return out
}

// Run calls ProcessOne for each ID with at most workers in flight and
// passes every outcome to fn. fn calls are serialized. Run stops handing
// out IDs once ctx is done and returns its error.
func (d *Driver) Run(ctx context.Context, ids []int64, workers int, fn func(Outcome)) error {
	if workers < 1 {
		workers = 1
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	var mu sync.Mutex
	for _, id := range ids {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			o := d.ProcessOne(gctx, id)
			mu.Lock()
			fn(o)
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}
