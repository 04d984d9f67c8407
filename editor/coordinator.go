package editor

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/go-authgate/drive-image-uploader/status"
)

// FailureMarker replaces a placeholder whose upload produced nothing.
const FailureMarker = "**Upload failed**"

const defaultName = "image"

// UploadFunc performs one upload and returns the markdown to insert.
type UploadFunc func(ctx context.Context) (string, error)

// Job is one upload in a batch.
type Job struct {
	Name string
	Run  UploadFunc
}

// StatusSink receives the rendered status line.
type StatusSink interface {
	SetStatus(text string)
}

// Coordinator inserts a placeholder for every running upload, swaps it for
// the result when the upload ends and keeps the in-flight count.
type Coordinator struct {
	inFlight atomic.Int64
	sink     StatusSink
	logger   *slog.Logger

	// reportMu keeps status reports in counter order.
	reportMu sync.Mutex
}

func NewCoordinator(sink StatusSink, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{sink: sink, logger: logger}
}

// InFlight returns the number of uploads that have not finished.
func (c *Coordinator) InFlight() int64 {
	return c.inFlight.Load()
}

// Placeholder returns the marker text shown while name uploads.
func Placeholder(name string) string {
	if name == "" {
		name = defaultName
	}
	return "![Uploading " + name + "…]()"
}

type pending struct {
	id         string
	name       string
	start, end *Anchor
}

// RunWithPlaceholder inserts a placeholder at the cursor, runs fn and
// replaces exactly that placeholder with fn's markdown, or FailureMarker if
// fn fails or returns nothing. The error from fn is returned.
func (c *Coordinator) RunWithPlaceholder(ctx context.Context, buf *Buffer, name string, fn UploadFunc) error {
	p := c.begin(buf, name)
	defer c.finish()
	return c.run(ctx, buf, p, fn)
}

// RunAll inserts one placeholder per job in order at the cursor, then runs
// the jobs concurrently. Each job only ever replaces its own placeholder.
// It returns the joined errors of all failed jobs.
func (c *Coordinator) RunAll(ctx context.Context, buf *Buffer, jobs []Job) error {
	placeholders := make([]pending, len(jobs))
	for i, job := range jobs {
		placeholders[i] = c.begin(buf, job.Name)
	}

	errs := make([]error, len(jobs))
	var g errgroup.Group
	for i, job := range jobs {
		g.Go(func() error {
			defer c.finish()
			errs[i] = c.run(ctx, buf, placeholders[i], job.Run)
			return nil
		})
	}
	_ = g.Wait()

	return errors.Join(errs...)
}

func (c *Coordinator) begin(buf *Buffer, name string) pending {
	if name == "" {
		name = defaultName
	}
	start, end := buf.ReplaceSelection(Placeholder(name))
	p := pending{id: uuid.NewString(), name: name, start: start, end: end}

	c.reportMu.Lock()
	n := c.inFlight.Add(1)
	c.report(status.Uploading, n)
	c.reportMu.Unlock()
	c.logger.Debug("upload started", "task", p.id, "name", name, "in_flight", n)
	return p
}

func (c *Coordinator) run(ctx context.Context, buf *Buffer, p pending, fn UploadFunc) error {
	md, err := fn(ctx)
	if err != nil || md == "" {
		md = FailureMarker
		c.logger.Warn("upload failed", "task", p.id, "name", p.name, "error", err)
	} else {
		c.logger.Debug("upload finished", "task", p.id, "name", p.name)
	}

	if rerr := buf.ReplaceSpan(p.start, p.end, md); rerr != nil {
		return errors.Join(err, rerr)
	}
	return err
}

func (c *Coordinator) finish() {
	c.reportMu.Lock()
	defer c.reportMu.Unlock()
	n := c.inFlight.Add(-1)
	c.report(status.ForCount(n), n)
}

func (c *Coordinator) report(state status.State, n int64) {
	if c.sink != nil {
		c.sink.SetStatus(status.Text(state, n))
	}
}
