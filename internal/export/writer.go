package export

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"
)

// splitWriter buffers encoded entries and starts a new numbered file
// whenever the next entry would push the current one past limit. An entry
// larger than limit on its own still gets a file.
type splitWriter struct {
	f     format
	dir   string
	limit int64
	log   *zap.Logger

	buf   bytes.Buffer
	n     int
	files []string
	total int64
}

func newSplitWriter(f format, dir string, limit int64, log *zap.Logger) *splitWriter {
	return &splitWriter{f: f, dir: dir, limit: limit, log: log}
}

func (w *splitWriter) add(entry []byte) error {
	size := int64(len(entry) + len(w.f.separator()))
	if w.n > 0 && w.limit > 0 && int64(w.buf.Len())+size+int64(len(w.f.footer())) > w.limit {
		if err := w.flush(); err != nil {
			return err
		}
	}
	if w.n == 0 {
		w.buf.Write(w.f.header())
		if w.limit > 0 && int64(len(entry)+len(w.f.header())+len(w.f.footer())) > w.limit {
			w.log.Warn("export entry exceeds the file size limit",
				zap.String("size", humanize.IBytes(uint64(len(entry)))),
				zap.String("limit", humanize.IBytes(uint64(w.limit))))
		}
	} else {
		w.buf.Write(w.f.separator())
	}
	w.buf.Write(entry)
	w.n++
	return nil
}

func (w *splitWriter) flush() error {
	w.buf.Write(w.f.footer())
	name := filepath.Join(w.dir, fmt.Sprintf("%s_%d%s", w.f.name(), len(w.files)+1, w.f.ext()))
	if err := os.WriteFile(name, w.buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", filepath.Base(name), err)
	}
	w.files = append(w.files, name)
	w.total += int64(w.buf.Len())
	w.buf.Reset()
	w.n = 0
	return nil
}

// close writes the pending file. An empty export still produces one file
// with no entries.
func (w *splitWriter) close() error {
	if w.n == 0 {
		if len(w.files) > 0 {
			return nil
		}
		w.buf.Write(w.f.header())
	}
	return w.flush()
}
