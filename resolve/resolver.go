// Package resolve maps cached UTC-day captures onto output buckets and
// decides which buckets are stale.
//
// Under the bounded-day strategy the desired outputs are bucketed by a local
// civil time zone whose day boundaries rarely align with the captures' UTC
// days: a local day is typically fed by the UTC day whose local morning falls
// inside it plus the adjacent UTC day whose local evening spills into it.
// Under the rolling-window strategy each capture maps 1:1 to one bucket with
// no boundary computation at all.
package resolve

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/solarlog/vbusmirror/pkg/model"
)

// Strategy selects how captures are grouped into output buckets.
type Strategy string

const (
	StrategyBoundedDay    Strategy = "bounded-day"
	StrategyRollingWindow Strategy = "rolling-window"
)

// ParseStrategy validates a strategy name.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyBoundedDay, StrategyRollingWindow:
		return Strategy(s), nil
	default:
		return "", fmt.Errorf("unknown strategy %q (want %q or %q)", s, StrategyBoundedDay, StrategyRollingWindow)
	}
}

// Bucket is one planned output: its datecode, the captures that feed it in
// ascending order, whether it needs regeneration, and (bounded-day only) the
// inclusive UTC bounds of the local day.
type Bucket struct {
	Date    model.DateCode
	Sources []model.DateCode
	Stale   bool

	// MinUTC and MaxUTC bound the conversion for the bounded-day strategy.
	// Zero for rolling-window buckets.
	MinUTC time.Time
	MaxUTC time.Time
}

// Planner scans one host directory and produces the bucket plan.
type Planner struct {
	Dir      string
	Location *time.Location
	Strategy Strategy
}

// CapturePath returns the local path of a capture.
func (p *Planner) CapturePath(dc model.DateCode) string {
	return filepath.Join(p.Dir, dc.String()+".vbus")
}

// OutputPath returns the local path of a bucket's tabular output.
func (p *Planner) OutputPath(dc model.DateCode) string {
	return filepath.Join(p.Dir, dc.String()+".csv")
}

// Plan scans the directory and returns every output bucket in ascending date
// order. A bucket is stale iff its output file is missing or older than any
// contributing capture.
func (p *Planner) Plan() ([]Bucket, error) {
	captures, outputs, err := p.scan()
	if err != nil {
		return nil, err
	}

	dates := make([]model.DateCode, 0, len(captures))
	for dc := range captures {
		dates = append(dates, dc)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	if p.Strategy == StrategyRollingWindow {
		buckets := make([]Bucket, 0, len(dates))
		for _, dc := range dates {
			buckets = append(buckets, Bucket{
				Date:    dc,
				Sources: []model.DateCode{dc},
				Stale:   p.stale(outputs, dc, captures, []model.DateCode{dc}),
			})
		}
		return buckets, nil
	}

	// Bounded day: register each capture under the local dates of its first
	// and last instant.
	grouped := make(map[model.DateCode][]model.DateCode)
	for _, dc := range dates {
		first := model.DateCodeOf(dc.Time(time.UTC).In(p.Location))
		last := model.DateCodeOf(dc.EndOfDay(time.UTC).In(p.Location))
		grouped[first] = append(grouped[first], dc)
		if last != first {
			grouped[last] = append(grouped[last], dc)
		}
	}

	bucketDates := make([]model.DateCode, 0, len(grouped))
	for dc := range grouped {
		bucketDates = append(bucketDates, dc)
	}
	sort.Slice(bucketDates, func(i, j int) bool { return bucketDates[i].Before(bucketDates[j]) })

	buckets := make([]Bucket, 0, len(bucketDates))
	for _, date := range bucketDates {
		sources := grouped[date]
		sort.Slice(sources, func(i, j int) bool { return sources[i].Before(sources[j]) })
		buckets = append(buckets, Bucket{
			Date:    date,
			Sources: sources,
			Stale:   p.stale(outputs, date, captures, sources),
			MinUTC:  date.Time(p.Location).UTC(),
			MaxUTC:  date.EndOfDay(p.Location).UTC(),
		})
	}
	return buckets, nil
}

// stale reports whether the bucket's output is missing or predates any of
// its sources.
func (p *Planner) stale(outputs map[model.DateCode]time.Time, date model.DateCode, captures map[model.DateCode]time.Time, sources []model.DateCode) bool {
	outMod, ok := outputs[date]
	if !ok {
		return true
	}
	for _, src := range sources {
		if captures[src].After(outMod) {
			return true
		}
	}
	return false
}

// scan collects capture and output modification times from the directory.
// Filenames that do not match <YYYYMMDD>.vbus or <YYYYMMDD>.csv are ignored;
// the cache directory also holds the sync index.
func (p *Planner) scan() (captures, outputs map[model.DateCode]time.Time, err error) {
	entries, err := os.ReadDir(p.Dir)
	if err != nil {
		return nil, nil, &model.FilesystemError{Op: "scan", Path: p.Dir, Err: err}
	}

	captures = make(map[model.DateCode]time.Time)
	outputs = make(map[model.DateCode]time.Time)

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()

		var target map[model.DateCode]time.Time
		switch {
		case len(name) == 13 && strings.HasSuffix(name, ".vbus"):
			target = captures
		case len(name) == 12 && strings.HasSuffix(name, ".csv"):
			target = outputs
		default:
			continue
		}

		dc, perr := model.ParseDateCode(name[:8])
		if perr != nil {
			continue
		}
		fi, err := entry.Info()
		if err != nil {
			return nil, nil, &model.FilesystemError{Op: "stat", Path: filepath.Join(p.Dir, name), Err: err}
		}
		target[dc] = fi.ModTime()
	}
	return captures, outputs, nil
}
