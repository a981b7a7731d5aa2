package vbus

import (
	"encoding/binary"
	"fmt"
	"io"
)

// Writer emits records in the recording format described in the package
// documentation. It is the inverse of Reader and is used to re-pack captures
// and to build test fixtures.
type Writer struct {
	w io.Writer
}

// NewWriter creates a writer on top of w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteRecord writes one data record.
func (w *Writer) WriteRecord(rec *DataRecord) error {
	length := dataHeaderLen + len(rec.Data)
	if length > 0xFFFF {
		return fmt.Errorf("record payload too large: %d bytes", len(rec.Data))
	}

	frame := make([]byte, length)
	frame[0] = marker
	frame[1] = KindData
	binary.LittleEndian.PutUint16(frame[2:4], uint16(length))
	binary.LittleEndian.PutUint16(frame[4:6], uint16(length))
	binary.LittleEndian.PutUint64(frame[6:14], uint64(rec.Timestamp.UnixMilli()))
	binary.LittleEndian.PutUint16(frame[14:16], rec.ID.Destination)
	binary.LittleEndian.PutUint16(frame[16:18], rec.ID.Source)
	binary.LittleEndian.PutUint16(frame[18:20], rec.ID.Command)
	copy(frame[20:], rec.Data)

	_, err := w.w.Write(frame)
	return err
}
