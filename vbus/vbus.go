// Package vbus decodes the recording format that RESOL dataloggers use for
// their per-day capture files, and projects decoded packets onto named,
// unit-labelled fields via a packet specification table.
//
// A recording is a sequence of records. Every record starts with a 0xA5
// marker, followed by a kind byte, the total record length as a doubled
// little-endian uint16, and a little-endian uint64 timestamp in milliseconds
// since the Unix epoch. A data record (kind 0x44) carries the VBus
// destination, source and command addresses plus the packet payload:
//
//	offset  0      0xA5 marker
//	offset  1      record kind
//	offset  2..3   total record length, uint16 LE
//	offset  4..5   total record length again
//	offset  6..13  timestamp, milliseconds, uint64 LE
//	offset 14..15  destination address, uint16 LE   (data records)
//	offset 16..17  source address, uint16 LE        (data records)
//	offset 18..19  command, uint16 LE               (data records)
//	offset 20..    payload bytes                    (data records)
//
// Loggers are snapshotted while they write, so streams routinely end in the
// middle of a record and may contain noise between records. The reader
// resyncs on the next marker and treats a truncated trailing record as end
// of stream.
package vbus

import (
	"fmt"
	"time"
)

// Record kinds.
const (
	KindData = 0x44
)

const (
	marker        = 0xA5
	headerLen     = 14
	dataHeaderLen = headerLen + 6
)

// PacketID identifies a packet type on the bus: who sent it, to whom, and
// which command it answers.
type PacketID struct {
	Destination uint16
	Source      uint16
	Command     uint16
}

// String renders the ID the way RESOL tooling names packets, e.g.
// "0010_7E11_0100".
func (id PacketID) String() string {
	return fmt.Sprintf("%04X_%04X_%04X", id.Destination, id.Source, id.Command)
}

// Less orders IDs by destination, then source, then command.
func (id PacketID) Less(other PacketID) bool {
	if id.Destination != other.Destination {
		return id.Destination < other.Destination
	}
	if id.Source != other.Source {
		return id.Source < other.Source
	}
	return id.Command < other.Command
}

// DataRecord is one decoded, timestamped packet snapshot.
type DataRecord struct {
	Timestamp time.Time
	ID        PacketID
	Data      []byte
}
