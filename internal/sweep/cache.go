package sweep

import (
	"os"
	"path/filepath"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/signalnine/clawsweep/internal/result"
)

const DefaultCacheSize = 256

// RecordCache remembers run records between aggregations of the same sweep.
// An entry is reused only while the run's log and output directory are
// unchanged on disk.
type RecordCache struct {
	entries *lru.Cache[string, cachedRun]
}

type cachedRun struct {
	stamp  runStamp
	record *result.RunRecord
}

type runStamp struct {
	logMod  time.Time
	logSize int64
	// newest modification time, entry count and total size of the output
	// directory's files
	outMod   time.Time
	outCount int
	outSize  int64
}

func NewRecordCache(size int) (*RecordCache, error) {
	if size < 1 {
		size = DefaultCacheSize
	}
	c, err := lru.New[string, cachedRun](size)
	if err != nil {
		return nil, err
	}
	return &RecordCache{entries: c}, nil
}

func (c *RecordCache) Len() int { return c.entries.Len() }

// lookup returns the record cached for dir under opts when the run is
// unchanged on disk. The current stamp is returned for a later add, so a
// run modified while it is being built is not cached as up to date.
func (c *RecordCache) lookup(dir string, opts RunOptions) (*result.RunRecord, runStamp, bool) {
	stamp, err := stampRun(dir, opts)
	if err != nil {
		return nil, runStamp{}, false
	}
	key := cacheKey(dir, opts)
	entry, ok := c.entries.Get(key)
	if !ok {
		return nil, stamp, false
	}
	if stamp != entry.stamp {
		c.entries.Remove(key)
		return nil, stamp, false
	}
	return entry.record, stamp, true
}

func (c *RecordCache) add(dir string, opts RunOptions, stamp runStamp, rec *result.RunRecord) {
	if stamp == (runStamp{}) {
		return
	}
	c.entries.Add(cacheKey(dir, opts), cachedRun{stamp: stamp, record: rec})
}

func cacheKey(dir string, opts RunOptions) string {
	return dir + "\x00" + opts.Key()
}

func stampRun(dir string, opts RunOptions) (runStamp, error) {
	opts = opts.withDefaults()
	logInfo, err := os.Stat(filepath.Join(dir, opts.LogFile))
	if err != nil {
		return runStamp{}, err
	}
	stamp := runStamp{logMod: logInfo.ModTime(), logSize: logInfo.Size()}
	outDir := filepath.Join(dir, opts.OutputDir)
	outInfo, err := os.Stat(outDir)
	if err != nil {
		return runStamp{}, err
	}
	stamp.outMod = outInfo.ModTime()
	entries, err := os.ReadDir(outDir)
	if err != nil {
		return runStamp{}, err
	}
	for _, e := range entries {
		info, err := e.Info()
		if err != nil {
			return runStamp{}, err
		}
		stamp.outCount++
		stamp.outSize += info.Size()
		if info.ModTime().After(stamp.outMod) {
			stamp.outMod = info.ModTime()
		}
	}
	return stamp, nil
}
