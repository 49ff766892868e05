// Package store persists forecast artifacts.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/i474232898/wind-harvest/internal/forecast"
	"github.com/i474232898/wind-harvest/internal/grid"
)

const servableExt = ".json"

// FileStore keeps raw artifacts as <stamp>.<ext> in one directory and
// servable artifacts as <stamp>.json in another. Servable files only appear
// under their final name once conversion has completed.
type FileStore struct {
	rawDir      string
	servableDir string
	rawExt      string

	mu         sync.Mutex
	converting map[string]struct{}
}

// NewFileStore creates both directories if needed.
func NewFileStore(rawDir, servableDir, rawExt string) (*FileStore, error) {
	for _, dir := range []string{rawDir, servableDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: create %s: %v", forecast.ErrStore, dir, err)
		}
	}
	return &FileStore{
		rawDir:      rawDir,
		servableDir: servableDir,
		rawExt:      strings.TrimPrefix(rawExt, "."),
		converting:  make(map[string]struct{}),
	}, nil
}

func (s *FileStore) rawPath(st grid.Stamp) string {
	return filepath.Join(s.rawDir, st.String()+"."+s.rawExt)
}

// ServablePath returns where the servable artifact for st lives.
func (s *FileStore) ServablePath(st grid.Stamp) string {
	return filepath.Join(s.servableDir, st.String()+servableExt)
}

func (s *FileStore) Exists(st grid.Stamp) (bool, error) {
	return fileExists(s.ServablePath(st))
}

func (s *FileStore) RawExists(st grid.Stamp) (bool, error) {
	return fileExists(s.rawPath(st))
}

// WriteRaw stores data as the raw artifact for st. An existing raw artifact
// is left untouched.
func (s *FileStore) WriteRaw(st grid.Stamp, data []byte) error {
	ok, err := s.RawExists(st)
	if err != nil || ok {
		return err
	}

	tmp, err := os.CreateTemp(s.rawDir, "."+st.String()+"-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create raw %s: %v", forecast.ErrStore, st, err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: write raw %s: %v", forecast.ErrStore, st, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: write raw %s: %v", forecast.ErrStore, st, err)
	}
	if err := os.Rename(tmp.Name(), s.rawPath(st)); err != nil {
		return fmt.Errorf("%w: commit raw %s: %v", forecast.ErrStore, st, err)
	}
	return nil
}

// ConvertRawToServable runs conv on the raw artifact for st and publishes
// the result. The raw artifact is removed once the servable one is visible,
// or when conv fails on it.
func (s *FileStore) ConvertRawToServable(ctx context.Context, st grid.Stamp, conv forecast.Converter) error {
	s.begin(st)
	defer s.end(st)

	raw := s.rawPath(st)
	ok, err := fileExists(raw)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: no raw artifact for %s", forecast.ErrStore, st)
	}

	tmp := filepath.Join(s.servableDir, "."+st.String()+servableExt+".tmp")
	if err := conv.Convert(ctx, st, raw, tmp); err != nil {
		_ = os.Remove(tmp)
		// A raw artifact that does not convert is refetched next cycle.
		if rmErr := os.Remove(raw); rmErr != nil && !errors.Is(rmErr, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s: %w", forecast.ErrConversion, st, errors.Join(err, rmErr))
		}
		return fmt.Errorf("%w: %s: %w", forecast.ErrConversion, st, err)
	}
	if err := os.Rename(tmp, s.ServablePath(st)); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("%w: publish %s: %v", forecast.ErrStore, st, err)
	}
	if err := os.Remove(raw); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%w: discard raw %s: %v", forecast.ErrStore, st, err)
	}
	return nil
}

// ListServable returns the stamps of all servable artifacts, in no
// particular order.
func (s *FileStore) ListServable() ([]grid.Stamp, error) {
	entries, err := os.ReadDir(s.servableDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: list %s: %v", forecast.ErrStore, s.servableDir, err)
	}

	stamps := make([]grid.Stamp, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, servableExt) {
			continue
		}
		st, err := grid.Parse(strings.TrimSuffix(name, servableExt))
		if err != nil {
			continue
		}
		stamps = append(stamps, st)
	}
	return stamps, nil
}

func (s *FileStore) ReadServable(st grid.Stamp) ([]byte, error) {
	data, err := os.ReadFile(s.ServablePath(st))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", forecast.ErrNotFound, st)
		}
		return nil, fmt.Errorf("%w: read %s: %v", forecast.ErrStore, st, err)
	}
	return data, nil
}

// DeleteOlderThan removes servable artifacts whose stamp lies more than
// maxAge before now. Stamps being converted are skipped. Failures on single
// files do not stop the sweep; they are joined into the returned error.
func (s *FileStore) DeleteOlderThan(now time.Time, maxAge time.Duration) ([]grid.Stamp, error) {
	stamps, err := s.ListServable()
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-maxAge)

	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		deleted []grid.Stamp
		errs    []error
	)
	for _, st := range stamps {
		if !st.Time().Before(cutoff) {
			continue
		}
		if _, busy := s.converting[st.String()]; busy {
			continue
		}
		if err := os.Remove(s.ServablePath(st)); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				errs = append(errs, fmt.Errorf("%w: delete %s: %v", forecast.ErrStore, st, err))
			}
			continue
		}
		deleted = append(deleted, st)
	}
	return deleted, errors.Join(errs...)
}

func (s *FileStore) begin(st grid.Stamp) {
	s.mu.Lock()
	s.converting[st.String()] = struct{}{}
	s.mu.Unlock()
}

func (s *FileStore) end(st grid.Stamp) {
	s.mu.Lock()
	delete(s.converting, st.String())
	s.mu.Unlock()
}

func fileExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("%w: stat %s: %v", forecast.ErrStore, path, err)
}
