package vbus

import (
	"sort"
	"time"
)

type packetState struct {
	data []byte
	ts   time.Time
}

// State accumulates the most recently seen payload per packet ID. It doubles
// as the stream topology: a packet ID stays registered even after its payload
// has been cleared or evicted, so headers keep their structural column set
// while rows only project retained payloads.
type State struct {
	packets map[PacketID]packetState
}

// NewState returns an empty state.
func NewState() *State {
	return &State{packets: make(map[PacketID]packetState)}
}

// Register adds a packet ID without payload.
func (s *State) Register(id PacketID) {
	if _, ok := s.packets[id]; !ok {
		s.packets[id] = packetState{}
	}
}

// Merge stores the record's payload as the current value for its packet ID,
// registering the ID if it is new.
func (s *State) Merge(rec *DataRecord) {
	s.packets[rec.ID] = packetState{data: rec.Data, ts: rec.Timestamp}
}

// Clear drops all payloads but keeps every ID registered.
func (s *State) Clear() {
	for id := range s.packets {
		s.packets[id] = packetState{}
	}
}

// Evict drops the payload of every packet last merged at or before cutoff,
// so a payload merged at time T is gone once cutoff reaches T.
func (s *State) Evict(cutoff time.Time) {
	for id, ps := range s.packets {
		if ps.data != nil && !ps.ts.After(cutoff) {
			s.packets[id] = packetState{}
		}
	}
}

// Clone returns an independent copy. Payload slices are shared; callers
// treat them as read-only.
func (s *State) Clone() *State {
	c := NewState()
	for id, ps := range s.packets {
		c.packets[id] = ps
	}
	return c
}

// IDs returns every registered packet ID in (destination, source, command)
// ascending order.
func (s *State) IDs() []PacketID {
	ids := make([]PacketID, 0, len(s.packets))
	for id := range s.packets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
	return ids
}

// Get returns the retained payload for id. The second result is false when
// the packet is unknown or its payload has been cleared or evicted.
func (s *State) Get(id PacketID) ([]byte, bool) {
	ps, ok := s.packets[id]
	if !ok || ps.data == nil {
		return nil, false
	}
	return ps.data, true
}

// Len returns the number of registered packet IDs.
func (s *State) Len() int {
	return len(s.packets)
}
