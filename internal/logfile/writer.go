package logfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// filePrefix is the common prefix of all log files this package manages.
const filePrefix = "chatgate_"

// Writer is a size-capped log writer. Each process start (and each rotation)
// opens a fresh timestamped file in the log directory; old files beyond the
// backup count are pruned.
type Writer struct {
	mu       sync.Mutex
	dir      string
	maxBytes int64
	backups  int
	file     *os.File
	size     int64
}

// NewWriter creates the log directory if needed and opens the first log file.
// maxBytes caps a single file's size before rotation; backups is how many
// rotated files to keep in addition to the current one.
func NewWriter(dir string, maxBytes int64, backups int) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("logfile: create dir %q: %w", dir, err)
	}
	w := &Writer{dir: dir, maxBytes: maxBytes, backups: backups}
	if err := w.open(); err != nil {
		return nil, err
	}
	return w, nil
}

func (w *Writer) open() error {
	name := filePrefix + time.Now().Format("2006-01-02_15-04-05") + ".log"
	path := filepath.Join(w.dir, name)
	// A rotation within the same second lands in the same file; O_APPEND
	// keeps that safe.
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("logfile: open %q: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return fmt.Errorf("logfile: stat %q: %w", path, err)
	}
	w.file = f
	w.size = info.Size()
	return nil
}

// Write appends to the current log file, rotating first when the write would
// exceed the size cap.
func (w *Writer) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.maxBytes > 0 && w.size+int64(len(p)) > w.maxBytes && w.size > 0 {
		if err := w.rotate(); err != nil {
			return 0, err
		}
	}
	n, err := w.file.Write(p)
	w.size += int64(n)
	return n, err
}

func (w *Writer) rotate() error {
	w.file.Close()
	if err := w.open(); err != nil {
		return err
	}
	w.prune()
	return nil
}

// prune deletes the oldest log files so that at most backups+1 remain.
func (w *Writer) prune() {
	entries, err := listLogFiles(w.dir)
	if err != nil {
		return
	}
	for i := w.backups + 1; i < len(entries); i++ {
		os.Remove(entries[i].Path)
	}
}

// Close closes the current log file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.file.Close()
}
