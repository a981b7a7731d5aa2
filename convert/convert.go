// Package convert streams decoded capture records into tabular output under
// one of two windowing strategies.
//
// Bounded day: two decode passes over the concatenated sources. The first
// pass scans the whole stream for the topology, independent of the timestamp
// bound; the second re-decodes restricted to the bucket's inclusive UTC
// bounds and renders one row per in-bound record in local civil time. A
// bucket that produced zero rows is not written at all, so a prior good
// output stays untouched.
//
// Rolling window: a single pass. The topology comes from the first frame, a
// cumulative state retains each packet's last payload for a bounded duration,
// and rows carry absolute RFC 3339 UTC timestamps. The output is always
// written, even with zero rows. The two strategies intentionally diverge on
// empty output; do not unify them.
package convert

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/solarlog/vbusmirror/filter"
	"github.com/solarlog/vbusmirror/pkg/model"
	"github.com/solarlog/vbusmirror/resolve"
	"github.com/solarlog/vbusmirror/vbus"
)

// DefaultRetention is the rolling window's payload retention.
const DefaultRetention = 15 * time.Minute

// Options configure a converter. Spec, Location and Logger are required;
// Retention defaults to DefaultRetention; Filter is optional.
type Options struct {
	Spec      *vbus.Spec
	Location  *time.Location
	Retention time.Duration
	Filter    func(filter.Row) bool
	Logger    *slog.Logger
}

// Result is one converted bucket. Write reports whether the output must be
// persisted: always true for rolling window, true only for a non-empty
// bounded day.
type Result struct {
	Output []byte
	Rows   int
	Write  bool
}

// Converter renders one bucket from the concatenated bytes of its sources.
type Converter interface {
	Convert(data []byte, bucket resolve.Bucket) (*Result, error)
}

// New returns the converter for a strategy.
func New(strategy resolve.Strategy, opts Options) (Converter, error) {
	if opts.Retention <= 0 {
		opts.Retention = DefaultRetention
	}
	switch strategy {
	case resolve.StrategyBoundedDay:
		return &boundedDay{opts}, nil
	case resolve.StrategyRollingWindow:
		return &rollingWindow{opts}, nil
	default:
		return nil, fmt.Errorf("unknown strategy %q", strategy)
	}
}

type boundedDay struct {
	opts Options
}

func (c *boundedDay) Convert(data []byte, bucket resolve.Bucket) (*Result, error) {
	// Pass 1: structural scan, unbounded. Topology-defining frames may sit
	// before the bound's start and must still be captured.
	topo := vbus.ReadTopology(data)

	var buf bytes.Buffer
	writeHeader(&buf, c.opts.Spec.FieldsInTopology(topo))

	// Pass 2: bounded record pass.
	r := vbus.NewReader(data)
	r.SetBounds(bucket.MinUTC, bucket.MaxUTC)

	rows := 0
	for rec := r.Next(); rec != nil; rec = r.Next() {
		row := topo.Clone()
		row.Merge(rec)
		fields := c.opts.Spec.FieldsInState(row)
		if c.opts.Filter != nil && !c.opts.Filter(rowEnv(rec, fields)) {
			continue
		}
		buf.WriteString(rec.Timestamp.In(c.opts.Location).Format("02.01.2006 15:04:05"))
		writeValues(&buf, fields)
		rows++
	}

	if rows == 0 {
		c.opts.Logger.Debug("bucket produced no rows, not writing", "datecode", bucket.Date.String())
	}
	return &Result{Output: buf.Bytes(), Rows: rows, Write: rows > 0}, nil
}

type rollingWindow struct {
	opts Options
}

func (c *rollingWindow) Convert(data []byte, bucket resolve.Bucket) (*Result, error) {
	state := vbus.NewState()
	if first := vbus.NewReader(data).Next(); first != nil {
		state.Register(first.ID)
	}

	var buf bytes.Buffer
	writeHeader(&buf, c.opts.Spec.FieldsInTopology(state))

	r := vbus.NewReader(data)
	rows := 0
	for rec := r.Next(); rec != nil; rec = r.Next() {
		state.Evict(rec.Timestamp.Add(-c.opts.Retention))
		state.Merge(rec)
		fields := c.opts.Spec.FieldsInState(state)
		if c.opts.Filter != nil && !c.opts.Filter(rowEnv(rec, fields)) {
			continue
		}
		buf.WriteString(rec.Timestamp.UTC().Format(time.RFC3339))
		writeValues(&buf, fields)
		rows++
	}

	return &Result{Output: buf.Bytes(), Rows: rows, Write: true}, nil
}

// writeHeader emits the "Datum" label plus one column per structural field,
// "name [unit]" when the unit text is non-empty.
func writeHeader(buf *bytes.Buffer, fields []vbus.FieldInfo) {
	buf.WriteString("Datum")
	for _, f := range fields {
		unit := strings.TrimSpace(f.Unit)
		if unit != "" {
			fmt.Fprintf(buf, "\t%s [%s]", f.Name, unit)
		} else {
			fmt.Fprintf(buf, "\t%s", f.Name)
		}
	}
	buf.WriteByte('\n')
}

func writeValues(buf *bytes.Buffer, fields []vbus.Field) {
	for _, f := range fields {
		buf.WriteByte('\t')
		buf.WriteString(f.Value)
	}
	buf.WriteByte('\n')
}

func rowEnv(rec *vbus.DataRecord, fields []vbus.Field) filter.Row {
	values := make(map[string]string, len(fields))
	for _, f := range fields {
		values[f.Name] = f.Value
	}
	return filter.Row{
		Time:   float64(rec.Timestamp.Unix()),
		Date:   model.DateCodeOf(rec.Timestamp.UTC()).String(),
		Fields: values,
	}
}
