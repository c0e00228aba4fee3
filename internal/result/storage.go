package result

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/klauspost/compress/zstd"
)

// CacheExt is the file extension of cached results.
const CacheExt = ".json.zst"

var ErrCacheLocked = errors.New("cache file is being written by another process")

// CreateOutputDir makes a timestamped directory under baseDir/outputs and
// points baseDir/latest at it.
func CreateOutputDir(baseDir string) (string, error) {
	stamp := time.Now().UTC().Format("2006-01-02T15-04-05")
	outDir, err := filepath.Abs(filepath.Join(baseDir, "outputs", stamp))
	if err != nil {
		return "", fmt.Errorf("resolving output dir: %w", err)
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(outDir, latest); err != nil {
		return "", fmt.Errorf("creating latest symlink: %w", err)
	}
	return outDir, nil
}

// CachePath is where the cached results for name live under dir.
func CachePath(dir, name string) string {
	return filepath.Join(dir, name+CacheExt)
}

// WriteCache stores v as zstd-compressed JSON at path. The write goes to a
// temporary file that is renamed into place; a sibling lock file keeps a
// second writer out while the first is active.
func WriteCache(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}
	lock, err := acquireLock(path + ".lock")
	if err != nil {
		return err
	}
	defer lock.release()

	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshaling cache: %w", err)
	}
	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return fmt.Errorf("creating zstd encoder: %w", err)
	}
	compressed := enc.EncodeAll(data, nil)
	enc.Close()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(compressed); err != nil {
		tmp.Close()
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing cache: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming cache into place: %w", err)
	}
	return nil
}

// ReadCache decodes a file written by WriteCache into v.
func ReadCache(path string, v any) error {
	compressed, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading cache: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return fmt.Errorf("creating zstd decoder: %w", err)
	}
	defer dec.Close()
	data, err := dec.DecodeAll(compressed, nil)
	if err != nil {
		return fmt.Errorf("decompressing cache %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing cache %s: %w", path, err)
	}
	return nil
}

type fileLock struct {
	path string
}

// acquireLock creates path exclusively with our PID in it. A lock left by a
// process that is no longer running is taken over.
func acquireLock(path string) (*fileLock, error) {
	for attempt := 0; attempt < 2; attempt++ {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
		if err == nil {
			fmt.Fprint(f, os.Getpid())
			f.Close()
			return &fileLock{path: path}, nil
		}
		if !errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("creating lock %s: %w", path, err)
		}
		data, _ := os.ReadFile(path)
		pid, _ := strconv.Atoi(string(data))
		if pid > 0 && processAlive(pid) {
			return nil, fmt.Errorf("%w (PID %d holds %s)", ErrCacheLocked, pid, path)
		}
		os.Remove(path)
	}
	return nil, fmt.Errorf("%w: could not take over stale lock %s", ErrCacheLocked, path)
}

func (l *fileLock) release() {
	os.Remove(l.path)
}

func processAlive(pid int) bool {
	return syscall.Kill(pid, 0) == nil
}
