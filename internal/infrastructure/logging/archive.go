package logging

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
)

const archiveStamp = "20060102T150405.000"

// ArchivingFile is an append-only log file. When the next write would push it
// past the size limit the current file is gzipped into a timestamped archive
// next to it (app-20240102T150405.000.log.gz) and a fresh file is started.
// Only the newest maxArchives archives are kept; zero disables archiving and
// the file is truncated instead.
type ArchivingFile struct {
	mu          sync.Mutex
	path        string
	limit       int64
	maxArchives int
	now         func() time.Time

	file    *os.File
	written int64
}

func NewArchivingFile(path string, maxSizeMB, maxArchives int) (*ArchivingFile, error) {
	if path == "" {
		return nil, errors.New("log file path is required")
	}
	if maxSizeMB <= 0 {
		maxSizeMB = 100
	}
	a := &ArchivingFile{
		path:        path,
		limit:       int64(maxSizeMB) << 20,
		maxArchives: max(maxArchives, 0),
		now:         time.Now,
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	if err := a.open(os.O_APPEND); err != nil {
		return nil, err
	}
	return a, nil
}

func (a *ArchivingFile) Write(p []byte) (int, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.file == nil {
		if err := a.open(os.O_APPEND); err != nil {
			return 0, err
		}
	}
	if a.written > 0 && a.written+int64(len(p)) > a.limit {
		if err := a.roll(); err != nil {
			return 0, fmt.Errorf("roll log %s: %w", a.path, err)
		}
	}
	n, err := a.file.Write(p)
	a.written += int64(n)
	return n, err
}

func (a *ArchivingFile) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.file == nil {
		return nil
	}
	err := a.file.Close()
	a.file = nil
	a.written = 0
	return err
}

// Archives lists the archive files oldest first.
func (a *ArchivingFile) Archives() ([]string, error) {
	prefix, suffix := a.archiveAffixes()
	matches, err := filepath.Glob(prefix + "*" + suffix)
	if err != nil {
		return nil, err
	}
	// the fixed-width UTC stamp sorts lexically
	sort.Strings(matches)
	return matches, nil
}

func (a *ArchivingFile) open(mode int) error {
	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|mode, 0o644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return err
	}
	a.file = file
	a.written = info.Size()
	return nil
}

func (a *ArchivingFile) roll() error {
	if err := a.file.Close(); err != nil {
		return err
	}
	a.file = nil

	if a.maxArchives > 0 {
		if err := a.compressCurrent(); err != nil {
			return err
		}
		if err := a.prune(); err != nil {
			return err
		}
	}
	return a.open(os.O_TRUNC)
}

func (a *ArchivingFile) archiveAffixes() (string, string) {
	ext := filepath.Ext(a.path)
	return strings.TrimSuffix(a.path, ext) + "-", ext + ".gz"
}

func (a *ArchivingFile) archiveName() string {
	prefix, suffix := a.archiveAffixes()
	return prefix + a.now().UTC().Format(archiveStamp) + suffix
}

func (a *ArchivingFile) compressCurrent() error {
	src, err := os.Open(a.path)
	if err != nil {
		return err
	}
	defer src.Close()

	name := a.archiveName()
	dst, err := os.OpenFile(name, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o644)
	if err != nil {
		return err
	}
	zw := gzip.NewWriter(dst)
	zw.Name = filepath.Base(a.path)
	if _, err := io.Copy(zw, src); err != nil {
		_ = dst.Close()
		_ = os.Remove(name)
		return err
	}
	if err := zw.Close(); err != nil {
		_ = dst.Close()
		_ = os.Remove(name)
		return err
	}
	return dst.Close()
}

func (a *ArchivingFile) prune() error {
	archives, err := a.Archives()
	if err != nil {
		return err
	}
	for len(archives) > a.maxArchives {
		if err := os.Remove(archives[0]); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		archives = archives[1:]
	}
	return nil
}
