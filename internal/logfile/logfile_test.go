package logfile

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParseSize(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{in: "10MB", want: 10 * 1024 * 1024},
		{in: "1GB", want: 1024 * 1024 * 1024},
		{in: "500KB", want: 500 * 1024},
		{in: "1.5MB", want: 1536 * 1024},
		{in: "2048", want: 2048},
		{in: "128B", want: 128},
		{in: " 10 mb ", want: 10 * 1024 * 1024},
		{in: "abc", wantErr: true},
		{in: "", wantErr: true},
	}
	for _, tt := range tests {
		got, err := ParseSize(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseSize(%q): expected error, got %d", tt.in, got)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseSize(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseSize(%q): want %d, got %d", tt.in, tt.want, got)
		}
	}
}

// seedFile writes a log file with the given name, content, and mtime.
func seedFile(t *testing.T, dir, name, content string, mtime time.Time) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", name, err)
	}
	return path
}

func seedManager(t *testing.T) (*Manager, string) {
	t.Helper()
	dir := t.TempDir()
	now := time.Now()
	seedFile(t, dir, filePrefix+"2026-08-20_10-00-00.log", "old-1\nold-2\n", now.Add(-2*time.Hour))
	seedFile(t, dir, filePrefix+"2026-08-21_10-00-00.log", "mid-1\n", now.Add(-time.Hour))
	seedFile(t, dir, filePrefix+"2026-08-22_10-00-00.log", "a\nb\nc\nd\n", now)
	m := NewManager(Settings{Enable: true, Path: dir, MaxSize: "10MB", BackupCount: 5})
	return m, dir
}

func TestFilesNewestFirst(t *testing.T) {
	m, _ := seedManager(t)

	entries, err := m.Files()
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("want 3 files, got %d", len(entries))
	}
	if !entries[0].IsMain {
		t.Error("first entry must be the main file")
	}
	if !strings.Contains(entries[0].Name, "2026-08-22") {
		t.Errorf("newest file first, got %q", entries[0].Name)
	}
	if entries[1].IsMain || entries[2].IsMain {
		t.Error("backups must not be marked main")
	}
}

func TestReadLastLines(t *testing.T) {
	m, _ := seedManager(t)

	content, err := m.Read(2, 0)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if content.TotalLines != 4 || content.ReturnedLines != 2 {
		t.Errorf("want 4 total / 2 returned, got %d/%d", content.TotalLines, content.ReturnedLines)
	}
	if content.Content != "c\nd\n" {
		t.Errorf("want last two lines, got %q", content.Content)
	}

	backup, err := m.Read(10, 2)
	if err != nil {
		t.Fatalf("Read backup: %v", err)
	}
	if backup.Content != "old-1\nold-2\n" {
		t.Errorf("want oldest backup content, got %q", backup.Content)
	}

	if _, err := m.Read(10, 9); err == nil {
		t.Error("out-of-range index must fail")
	}
}

func TestClearTruncatesMain(t *testing.T) {
	m, _ := seedManager(t)

	if err := m.Clear(); err != nil {
		t.Fatalf("Clear: %v", err)
	}
	content, err := m.Read(0, 0)
	if err != nil {
		t.Fatalf("Read after clear: %v", err)
	}
	if content.TotalLines != 0 {
		t.Errorf("main file should be empty, got %d lines", content.TotalLines)
	}
	// Backups are untouched.
	backup, err := m.Read(0, 1)
	if err != nil || backup.TotalLines == 0 {
		t.Errorf("backup touched by clear: %v lines=%d", err, backup.TotalLines)
	}
}

func TestDeleteBackup(t *testing.T) {
	m, _ := seedManager(t)

	if err := m.DeleteBackup(0); !errors.Is(err, ErrMainProtected) {
		t.Errorf("index 0: want ErrMainProtected, got %v", err)
	}
	if err := m.DeleteBackup(2); err != nil {
		t.Fatalf("DeleteBackup: %v", err)
	}
	entries, _ := m.Files()
	if len(entries) != 2 {
		t.Errorf("want 2 files after delete, got %d", len(entries))
	}
	if err := m.DeleteBackup(5); err == nil {
		t.Error("out-of-range index must fail")
	}
}

func TestDisabledManager(t *testing.T) {
	m := NewManager(Settings{Enable: false})

	if info := m.Info(); info.Enabled {
		t.Error("disabled manager must report Enabled=false")
	}
	if _, err := m.Files(); !errors.Is(err, ErrDisabled) {
		t.Errorf("Files: want ErrDisabled, got %v", err)
	}
	if _, err := m.Read(10, 0); !errors.Is(err, ErrDisabled) {
		t.Errorf("Read: want ErrDisabled, got %v", err)
	}
	if err := m.Clear(); !errors.Is(err, ErrDisabled) {
		t.Errorf("Clear: want ErrDisabled, got %v", err)
	}
	if err := m.DeleteBackup(1); !errors.Is(err, ErrDisabled) {
		t.Errorf("DeleteBackup: want ErrDisabled, got %v", err)
	}
}

func TestWriterAppendsAndTracksSize(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWriter(dir, 1024*1024, 3)
	if err != nil {
		t.Fatalf("NewWriter: %v", err)
	}
	defer w.Close()

	for _, line := range []string{"one\n", "two\n"} {
		if _, err := w.Write([]byte(line)); err != nil {
			t.Fatalf("Write: %v", err)
		}
	}

	entries, err := listLogFiles(dir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("want 1 log file, got %d (%v)", len(entries), err)
	}
	raw, err := os.ReadFile(entries[0].Path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if string(raw) != "one\ntwo\n" {
		t.Errorf("unexpected log content %q", raw)
	}
	if !strings.HasPrefix(entries[0].Name, filePrefix) {
		t.Errorf("log file name %q missing prefix", entries[0].Name)
	}
}

func TestWriterPruneKeepsBackupCount(t *testing.T) {
	dir := t.TempDir()
	now := time.Now()
	for i := 0; i < 5; i++ {
		name := filePrefix + now.Add(time.Duration(i)*time.Hour).Format("2006-01-02_15-04-05") + ".log"
		seedFile(t, dir, name, "x\n", now.Add(time.Duration(i-5)*time.Hour))
	}

	w := &Writer{dir: dir, backups: 1}
	w.prune()

	entries, err := listLogFiles(dir)
	if err != nil {
		t.Fatalf("listLogFiles: %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("want backups+1 = 2 files after prune, got %d", len(entries))
	}
}
