package gauge

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record is the raw time series recorded at one gauge: Values[i] holds the
// tracked quantities at Times[i].
type Record struct {
	Times  []float64
	Values [][]float64
}

// Source returns the raw series for a gauge location.
type Source interface {
	Series(location int) (*Record, error)
}

const legacyGaugeFile = "fort.gauge"

// DirSource reads gauges from a Clawpack output directory. Per-gauge files
// (gauge00001.txt) are preferred; the legacy combined fort.gauge is used when
// no per-gauge file exists.
type DirSource struct {
	Dir string
}

func GaugeFileName(location int) string {
	return fmt.Sprintf("gauge%05d.txt", location)
}

func (s DirSource) Series(location int) (*Record, error) {
	path := filepath.Join(s.Dir, GaugeFileName(location))
	f, err := os.Open(path)
	if err == nil {
		defer f.Close()
		rec, err := parseGaugeFile(f, -1)
		if err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		return rec, nil
	}
	if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("opening gauge %d: %w", location, err)
	}

	legacy := filepath.Join(s.Dir, legacyGaugeFile)
	lf, lerr := os.Open(legacy)
	if lerr != nil {
		return nil, fmt.Errorf("gauge %d: neither %s nor %s readable: %w", location, path, legacy, err)
	}
	defer lf.Close()
	rec, err := parseGaugeFile(lf, location)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", legacy, err)
	}
	if len(rec.Times) == 0 {
		return nil, fmt.Errorf("gauge %d: no rows in %s", location, legacy)
	}
	return rec, nil
}

// parseGaugeFile reads whitespace separated rows. With gaugeNo < 0 rows are
// "level t q..."; otherwise rows are "gaugeno level t q..." and only rows for
// gaugeNo are kept.
func parseGaugeFile(r io.Reader, gaugeNo int) (*Record, error) {
	rec := &Record{}
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		fields := strings.Fields(line)
		if gaugeNo >= 0 {
			if len(fields) < 4 {
				return nil, fmt.Errorf("line %d: expected at least 4 columns, got %d", lineNo, len(fields))
			}
			n, err := strconv.Atoi(fields[0])
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid gauge number %q: %w", lineNo, fields[0], err)
			}
			if n != gaugeNo {
				continue
			}
			fields = fields[1:]
		}
		if len(fields) < 3 {
			return nil, fmt.Errorf("line %d: expected at least 3 columns, got %d", lineNo, len(fields))
		}
		t, err := parseFortranFloat(fields[1])
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid time %q: %w", lineNo, fields[1], err)
		}
		q := make([]float64, 0, len(fields)-2)
		for _, f := range fields[2:] {
			v, err := parseFortranFloat(f)
			if err != nil {
				return nil, fmt.Errorf("line %d: invalid value %q: %w", lineNo, f, err)
			}
			q = append(q, v)
		}
		rec.Times = append(rec.Times, t)
		rec.Values = append(rec.Values, q)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return rec, nil
}

func parseFortranFloat(s string) (float64, error) {
	s = strings.NewReplacer("D", "E", "d", "e").Replace(s)
	return strconv.ParseFloat(s, 64)
}
