// Package logfile writes and manages the on-disk log files behind the
// admin log-viewer API: size-capped timestamped files, last-N-lines reads,
// clearing, and backup deletion.
package logfile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

var (
	ErrDisabled      = errors.New("file logging is not enabled")
	ErrNoFiles       = errors.New("no log files found")
	ErrMainProtected = errors.New("cannot delete the main log file; use clear instead")
)

// Settings is the file-logging configuration exposed over the admin API.
type Settings struct {
	Enable      bool   `json:"enable"`
	Path        string `json:"path"`
	MaxSize     string `json:"max_size"`
	BackupCount int    `json:"backup_count"`
}

// Info describes the current (most recent) log file.
type Info struct {
	Enabled     bool    `json:"enabled"`
	Path        string  `json:"path,omitempty"`
	MaxSize     string  `json:"max_size,omitempty"`
	BackupCount int     `json:"backup_count,omitempty"`
	Exists      bool    `json:"exists"`
	CurrentFile string  `json:"current_file,omitempty"`
	Size        int64   `json:"size,omitempty"`
	SizeMB      float64 `json:"size_mb,omitempty"`
	Modified    int64   `json:"modified,omitempty"`
}

// FileEntry describes one log file. The first entry returned by Files is the
// main (current) file; the rest are rotated backups, newest first.
type FileEntry struct {
	Path     string `json:"path"`
	Name     string `json:"name"`
	Size     int64  `json:"size"`
	Modified int64  `json:"modified"`
	IsMain   bool   `json:"is_main"`
}

// Content is the result of a Read.
type Content struct {
	Content       string `json:"content"`
	TotalLines    int    `json:"total_lines"`
	ReturnedLines int    `json:"returned_lines"`
	FilePath      string `json:"file_path"`
	FileSize      int64  `json:"file_size"`
}

// Manager answers the log-management API over a log directory.
type Manager struct {
	settings Settings
}

// NewManager constructs a Manager for the given settings.
func NewManager(s Settings) *Manager {
	return &Manager{settings: s}
}

// Settings returns the current configuration.
func (m *Manager) Settings() Settings {
	return m.settings
}

// UpdateSettings replaces the configuration. The writer is wired at startup,
// so a restart is required for the new settings to take effect.
func (m *Manager) UpdateSettings(s Settings) {
	m.settings = s
}

// Info returns information about the most recent log file.
func (m *Manager) Info() Info {
	if !m.settings.Enable {
		return Info{Enabled: false}
	}
	info := Info{
		Enabled:     true,
		Path:        m.settings.Path,
		MaxSize:     m.settings.MaxSize,
		BackupCount: m.settings.BackupCount,
	}
	entries, err := listLogFiles(m.settings.Path)
	if err != nil || len(entries) == 0 {
		return info
	}
	latest := entries[0]
	info.Exists = true
	info.CurrentFile = latest.Path
	info.Size = latest.Size
	info.SizeMB = float64(latest.Size) / (1024 * 1024)
	info.Modified = latest.Modified
	return info
}

// Files lists all log files, newest first.
func (m *Manager) Files() ([]FileEntry, error) {
	if !m.settings.Enable {
		return nil, ErrDisabled
	}
	return listLogFiles(m.settings.Path)
}

// Read returns the last `lines` lines of the log file at the given index
// (0 = main, 1+ = backups).
func (m *Manager) Read(lines, index int) (*Content, error) {
	if !m.settings.Enable {
		return nil, ErrDisabled
	}
	entries, err := listLogFiles(m.settings.Path)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, ErrNoFiles
	}
	if index < 0 || index >= len(entries) {
		return nil, fmt.Errorf("log file index %d out of range (0-%d)", index, len(entries)-1)
	}

	path := entries[index].Path
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read log file: %w", err)
	}

	all := strings.Split(strings.TrimSuffix(string(raw), "\n"), "\n")
	if len(raw) == 0 {
		all = nil
	}
	last := all
	if lines > 0 && len(all) > lines {
		last = all[len(all)-lines:]
	}
	content := ""
	if len(last) > 0 {
		content = strings.Join(last, "\n") + "\n"
	}
	return &Content{
		Content:       content,
		TotalLines:    len(all),
		ReturnedLines: len(last),
		FilePath:      path,
		FileSize:      int64(len(raw)),
	}, nil
}

// Clear truncates the main log file.
func (m *Manager) Clear() error {
	if !m.settings.Enable {
		return ErrDisabled
	}
	entries, err := listLogFiles(m.settings.Path)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		return ErrNoFiles
	}
	return os.Truncate(entries[0].Path, 0)
}

// DeleteBackup removes the backup log file at the given index. Index 0 (the
// main file) is refused.
func (m *Manager) DeleteBackup(index int) error {
	if !m.settings.Enable {
		return ErrDisabled
	}
	if index == 0 {
		return ErrMainProtected
	}
	entries, err := listLogFiles(m.settings.Path)
	if err != nil {
		return err
	}
	if index < 0 || index >= len(entries) {
		return fmt.Errorf("log file index %d out of range (0-%d)", index, len(entries)-1)
	}
	return os.Remove(entries[index].Path)
}

// listLogFiles returns the managed log files in dir, newest first.
func listLogFiles(dir string) ([]FileEntry, error) {
	matches, err := filepath.Glob(filepath.Join(dir, filePrefix+"*.log"))
	if err != nil {
		return nil, err
	}
	var entries []FileEntry
	for _, path := range matches {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		entries = append(entries, FileEntry{
			Path:     path,
			Name:     filepath.Base(path),
			Size:     info.Size(),
			Modified: info.ModTime().Unix(),
		})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Modified != entries[j].Modified {
			return entries[i].Modified > entries[j].Modified
		}
		return entries[i].Name > entries[j].Name
	})
	if len(entries) > 0 {
		entries[0].IsMain = true
	}
	return entries, nil
}

// ParseSize parses a human size string like "10MB", "1GB", "500KB", or a
// plain byte count.
func ParseSize(s string) (int64, error) {
	v := strings.ToUpper(strings.TrimSpace(s))
	mult := int64(1)
	switch {
	case strings.HasSuffix(v, "GB"):
		mult, v = 1024*1024*1024, strings.TrimSuffix(v, "GB")
	case strings.HasSuffix(v, "MB"):
		mult, v = 1024*1024, strings.TrimSuffix(v, "MB")
	case strings.HasSuffix(v, "KB"):
		mult, v = 1024, strings.TrimSuffix(v, "KB")
	case strings.HasSuffix(v, "B"):
		v = strings.TrimSuffix(v, "B")
	}
	n, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	return int64(n * float64(mult)), nil
}
