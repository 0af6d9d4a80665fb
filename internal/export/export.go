// Package export turns the stored records into downstream files. Files are
// assembled under a temporary directory and moved into the export directory
// only once every file of the run has been written.
package export

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/mkoziy/harvester/internal/models"
)

const (
	FormatGmeta = "gmeta"
	FormatRIFCS = "rifcs"

	// LastRunSetting holds the unix time of the last completed run.
	LastRunSetting = "last_run_timestamp"
)

var ErrUnknownFormat = errors.New("unknown export format")

// Reader is the part of the store the exporter reads from.
type Reader interface {
	IterateRecords(ctx context.Context, since time.Time, batch int, fn func(*models.Record) error) error
	RecordChildren(ctx context.Context, recordID int64) (*models.RecordChildren, error)
	Setting(ctx context.Context, name string) (string, bool, error)
}

type Options struct {
	Format       string
	Filepath     string
	TempFilepath string
	FileLimitMB  int
	// OnlyNewRecords limits the export to records modified since the
	// last_run_timestamp setting.
	OnlyNewRecords bool
}

// Summary describes the files produced by one export.
type Summary struct {
	Files    []string
	Records  int
	Deleted  int
	Skipped  int
	Bytes    int64
	Since    time.Time
	Duration time.Duration
}

type format interface {
	name() string
	ext() string
	header() []byte
	footer() []byte
	separator() []byte
	// entry encodes one document; ok is false when the format has no
	// representation for it.
	entry(d *Document) (b []byte, ok bool, err error)
}

func formatFor(name string) (format, error) {
	switch name {
	case FormatGmeta, "":
		return gmeta{}, nil
	case FormatRIFCS:
		return rifcs{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, name)
	}
}

type Exporter struct {
	store Reader
	log   *zap.Logger
	batch int
}

func New(st Reader, log *zap.Logger) *Exporter {
	if log == nil {
		log = zap.NewNop()
	}
	return &Exporter{store: st, log: log, batch: 500}
}

// Export writes every record (or only the new ones) in the requested format.
func (e *Exporter) Export(ctx context.Context, opts Options) (*Summary, error) {
	start := time.Now()
	f, err := formatFor(opts.Format)
	if err != nil {
		return nil, err
	}
	sum := &Summary{}
	if opts.OnlyNewRecords {
		if sum.Since, err = e.lastRun(ctx); err != nil {
			return nil, err
		}
	}

	if opts.TempFilepath != "" {
		if err := os.MkdirAll(opts.TempFilepath, 0o755); err != nil {
			return nil, fmt.Errorf("create temp dir: %w", err)
		}
	}
	stage, err := os.MkdirTemp(opts.TempFilepath, "export-")
	if err != nil {
		return nil, fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(stage)

	w := newSplitWriter(f, stage, int64(opts.FileLimitMB)*humanize.MiByte, e.log)
	err = e.store.IterateRecords(ctx, sum.Since, e.batch, func(rec *models.Record) error {
		var children *models.RecordChildren
		if !rec.Deleted {
			c, err := e.store.RecordChildren(ctx, rec.ID)
			if err != nil {
				return fmt.Errorf("record %d: %w", rec.ID, err)
			}
			children = c
		}
		b, ok, err := f.entry(buildDocument(rec, children))
		if err != nil {
			return fmt.Errorf("encode record %d: %w", rec.ID, err)
		}
		if !ok {
			sum.Skipped++
			return nil
		}
		if rec.Deleted {
			sum.Deleted++
		} else {
			sum.Records++
		}
		return w.add(b)
	})
	if err != nil {
		return nil, fmt.Errorf("export %s: %w", f.name(), err)
	}
	if err := w.close(); err != nil {
		return nil, err
	}

	if sum.Files, err = publish(w.files, opts.Filepath, f); err != nil {
		return nil, err
	}
	sum.Bytes = w.total
	sum.Duration = time.Since(start)
	e.log.Info("export finished",
		zap.String("format", f.name()),
		zap.Int("files", len(sum.Files)),
		zap.String("records", humanize.Comma(int64(sum.Records))),
		zap.Int("deleted", sum.Deleted),
		zap.String("size", humanize.IBytes(uint64(sum.Bytes))),
		zap.Duration("duration", sum.Duration))
	return sum, nil
}

func (e *Exporter) lastRun(ctx context.Context) (time.Time, error) {
	v, ok, err := e.store.Setting(ctx, LastRunSetting)
	if err != nil {
		return time.Time{}, fmt.Errorf("read %s: %w", LastRunSetting, err)
	}
	if !ok {
		e.log.Info("no previous run recorded, exporting every record")
		return time.Time{}, nil
	}
	ts, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s %q: %w", LastRunSetting, v, err)
	}
	return models.FromEpoch(ts), nil
}

// publish replaces the previous export of the same format with the staged
// files.
func publish(staged []string, dir string, f format) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create export dir: %w", err)
	}
	old, err := filepath.Glob(filepath.Join(dir, f.name()+"_*"+f.ext()))
	if err != nil {
		return nil, err
	}
	for _, p := range old {
		if err := os.Remove(p); err != nil {
			return nil, fmt.Errorf("remove previous export: %w", err)
		}
	}
	out := make([]string, 0, len(staged))
	for _, src := range staged {
		dst := filepath.Join(dir, filepath.Base(src))
		if err := os.Rename(src, dst); err != nil {
			return out, fmt.Errorf("move %s: %w", filepath.Base(src), err)
		}
		out = append(out, dst)
	}
	return out, nil
}
