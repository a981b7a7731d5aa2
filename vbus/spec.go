package vbus

import (
	_ "embed"
	"fmt"
	"strconv"

	"gopkg.in/yaml.v3"
)

//go:embed specdata/packets.yaml
var embeddedSpec []byte

// FieldSpec describes how one field is laid out inside a packet payload and
// how its raw value is rendered. Factor and precision come from the device
// documentation; they position the decimal point of the stored integer and
// perform no unit conversion.
type FieldSpec struct {
	Name      string  `yaml:"name"`
	Unit      string  `yaml:"unit"`
	Offset    int     `yaml:"offset"`
	Size      int     `yaml:"size"`
	Signed    bool    `yaml:"signed"`
	Factor    float64 `yaml:"factor"`
	Precision int     `yaml:"precision"`
}

// PacketSpec describes the fields of one packet type.
type PacketSpec struct {
	Name        string      `yaml:"name"`
	Destination uint16      `yaml:"destination"`
	Source      uint16      `yaml:"source"`
	Command     uint16      `yaml:"command"`
	Fields      []FieldSpec `yaml:"fields"`
}

// ID returns the packet's bus identity.
func (p *PacketSpec) ID() PacketID {
	return PacketID{Destination: p.Destination, Source: p.Source, Command: p.Command}
}

// Spec is a packet specification table. Packets without an entry project no
// fields; they still count toward the topology.
type Spec struct {
	packets map[PacketID]*PacketSpec
	order   []*PacketSpec
}

// LoadSpec parses a YAML specification table.
func LoadSpec(data []byte) (*Spec, error) {
	var doc struct {
		Packets []*PacketSpec `yaml:"packets"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse packet spec: %w", err)
	}
	sp := &Spec{packets: make(map[PacketID]*PacketSpec), order: doc.Packets}
	for _, p := range doc.Packets {
		if _, dup := sp.packets[p.ID()]; dup {
			return nil, fmt.Errorf("duplicate packet spec %s", p.ID())
		}
		sp.packets[p.ID()] = p
	}
	return sp, nil
}

// EmbeddedSpec loads the specification table compiled into the binary.
func EmbeddedSpec() (*Spec, error) {
	return LoadSpec(embeddedSpec)
}

// Packets returns every known packet spec in file order.
func (sp *Spec) Packets() []*PacketSpec {
	return sp.order
}

// Lookup returns the spec for a packet ID, or nil.
func (sp *Spec) Lookup(id PacketID) *PacketSpec {
	return sp.packets[id]
}

// FieldInfo names one structural column: field name and unit text.
type FieldInfo struct {
	Name string
	Unit string
}

// Field is one projected value: a FieldInfo plus the raw formatted value.
type Field struct {
	Name  string
	Unit  string
	Value string
}

// FieldsInTopology returns the ordered column set for a topology: every field
// of every registered packet that has a spec entry, whether or not a payload
// is currently retained. Packets are ordered by ID, fields by spec order.
func (sp *Spec) FieldsInTopology(s *State) []FieldInfo {
	var out []FieldInfo
	for _, id := range s.IDs() {
		ps := sp.packets[id]
		if ps == nil {
			continue
		}
		for i := range ps.Fields {
			f := &ps.Fields[i]
			out = append(out, FieldInfo{Name: f.Name, Unit: f.Unit})
		}
	}
	return out
}

// FieldsInState projects the retained payloads of s in the same stable order
// as FieldsInTopology, skipping packets whose payload is absent. The caller
// recomputes this per row; the projected set shrinks when payloads are
// evicted and grows back when they reappear.
func (sp *Spec) FieldsInState(s *State) []Field {
	var out []Field
	for _, id := range s.IDs() {
		data, ok := s.Get(id)
		if !ok {
			continue
		}
		ps := sp.packets[id]
		if ps == nil {
			continue
		}
		for i := range ps.Fields {
			f := &ps.Fields[i]
			out = append(out, Field{Name: f.Name, Unit: f.Unit, Value: formatRaw(data, f)})
		}
	}
	return out
}

// formatRaw renders the field's stored integer at the spec's factor and
// precision. A field that lies beyond the payload, or whose bytes are all
// 0xFF (sensor absent), renders empty.
func formatRaw(data []byte, f *FieldSpec) string {
	if f.Size <= 0 || f.Offset < 0 || f.Offset+f.Size > len(data) {
		return ""
	}

	raw := uint64(0)
	absent := true
	for i := f.Size - 1; i >= 0; i-- {
		b := data[f.Offset+i]
		raw = raw<<8 | uint64(b)
		if b != 0xFF {
			absent = false
		}
	}
	if absent {
		return ""
	}

	value := int64(raw)
	if f.Signed {
		shift := uint(64 - 8*f.Size)
		value = int64(raw<<shift) >> shift
	}

	factor := f.Factor
	if factor == 0 {
		factor = 1
	}
	if factor == 1 && f.Precision == 0 {
		return strconv.FormatInt(value, 10)
	}
	return strconv.FormatFloat(float64(value)*factor, 'f', f.Precision, 64)
}
