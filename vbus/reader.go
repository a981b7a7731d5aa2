package vbus

import (
	"encoding/binary"
	"time"
)

// Reader decodes data records from an in-memory recording. It is restartable
// by constructing a new Reader over the same bytes.
type Reader struct {
	buf []byte
	pos int

	hasBounds bool
	min, max  time.Time
}

// NewReader creates a reader over a complete recording.
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// SetBounds restricts Next to records whose timestamp lies inside the
// inclusive [min, max] interval.
func (r *Reader) SetBounds(min, max time.Time) {
	r.hasBounds = true
	r.min = min
	r.max = max
}

// Next returns the next in-bounds data record, or nil at end of stream.
// Noise between records and records of unknown kinds are skipped; a record
// cut off by the end of the buffer ends the stream.
func (r *Reader) Next() *DataRecord {
	for {
		rec, ok := r.nextRecord()
		if !ok {
			return nil
		}
		if rec == nil {
			continue // non-data or malformed, already skipped
		}
		if r.hasBounds && (rec.Timestamp.Before(r.min) || rec.Timestamp.After(r.max)) {
			continue
		}
		return rec
	}
}

// nextRecord advances past one record. It returns (nil, true) for records
// that should be skipped and (nil, false) at end of stream.
func (r *Reader) nextRecord() (*DataRecord, bool) {
	// Resync to the next marker.
	for r.pos < len(r.buf) && r.buf[r.pos] != marker {
		r.pos++
	}
	if r.pos+headerLen > len(r.buf) {
		r.pos = len(r.buf)
		return nil, false
	}

	h := r.buf[r.pos:]
	length := int(binary.LittleEndian.Uint16(h[2:4]))
	lengthCheck := int(binary.LittleEndian.Uint16(h[4:6]))
	if length != lengthCheck || length < headerLen {
		// Not a record header after all; step over the marker byte.
		r.pos++
		return nil, true
	}
	if r.pos+length > len(r.buf) {
		// Truncated trailing record.
		r.pos = len(r.buf)
		return nil, false
	}

	kind := h[1]
	body := r.buf[r.pos+headerLen : r.pos+length]
	ts := time.UnixMilli(int64(binary.LittleEndian.Uint64(h[6:14]))).UTC()
	r.pos += length

	if kind != KindData || length < dataHeaderLen {
		return nil, true
	}

	return &DataRecord{
		Timestamp: ts,
		ID: PacketID{
			Destination: binary.LittleEndian.Uint16(body[0:2]),
			Source:      binary.LittleEndian.Uint16(body[2:4]),
			Command:     binary.LittleEndian.Uint16(body[4:6]),
		},
		Data: body[6:],
	}, true
}

// ReadTopology scans the complete recording, ignoring any timestamp bounds,
// and returns the structural state of the stream: every packet ID seen, each
// with the payload of its last occurrence. Topology-defining frames may occur
// before a conversion bound's start, which is why the scan is unbounded.
func ReadTopology(data []byte) *State {
	r := NewReader(data)
	s := NewState()
	for {
		rec := r.Next()
		if rec == nil {
			return s
		}
		s.Merge(rec)
	}
}
