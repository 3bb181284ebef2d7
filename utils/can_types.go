package utils

import (
	"fmt"
	"sort"
)

type SignalDef struct {
	Name       string
	StartBit   int
	BitLength  int
	Signed     bool
	Factor     float64
	Offset     float64
	Min        float64
	Max        float64
	Default    float64
	Unit       string
	Comment    string
	Endianness string // "little" or "big" (DBC @0, start bit is the MSB)
}

func (s SignalDef) bigEndian() bool { return s.Endianness == "big" }

func (s SignalDef) validate(dlc int) error {
	if s.Endianness != "little" && s.Endianness != "big" {
		return fmt.Errorf("unsupported endianness %q", s.Endianness)
	}
	if s.BitLength <= 0 || s.BitLength > 64 {
		return fmt.Errorf("invalid bit length %d", s.BitLength)
	}
	if s.StartBit < 0 || s.StartBit >= dlc*8 {
		return fmt.Errorf("start bit %d outside a %d byte payload", s.StartBit, dlc)
	}
	return nil
}

// wraps reports whether out-of-range values are masked to the signal width
// instead of clamped. Rolling counters wrap.
func (s SignalDef) wraps() bool {
	return len(s.Name) >= 7 && s.Name[:7] == "COUNTER"
}

type ChecksumKind int

const (
	ChecksumNone ChecksumKind = iota
	ChecksumToyota
	ChecksumPedalCRC8
)

type FrameDef struct {
	ID        uint32
	Name      string
	DLC       int
	Direction string
	CycleMS   int
	Signals   []SignalDef
	Checksum  ChecksumKind
}

func (fd *FrameDef) signal(name string) (SignalDef, bool) {
	for _, s := range fd.Signals {
		if s.Name == name {
			return s, true
		}
	}
	return SignalDef{}, false
}

type CANMap struct {
	ByID   map[uint32]*FrameDef
	ByName map[string]*FrameDef
}

func newCANMap() *CANMap {
	return &CANMap{
		ByID:   map[uint32]*FrameDef{},
		ByName: map[string]*FrameDef{},
	}
}

// finalize sorts signals and derives the checksum rule from the signal names.
func (m *CANMap) finalize() {
	for _, fd := range m.ByID {
		sort.Slice(fd.Signals, func(i, j int) bool { return fd.Signals[i].StartBit < fd.Signals[j].StartBit })
		switch {
		case hasSignal(fd, checksumSignal):
			fd.Checksum = ChecksumToyota
		case hasSignal(fd, pedalChecksumSignal):
			fd.Checksum = ChecksumPedalCRC8
		}
	}
}

// addFrame registers fd. Names and IDs are unique.
func (m *CANMap) addFrame(fd *FrameDef) error {
	if fd.DLC <= 0 || fd.DLC > 8 {
		return fmt.Errorf("frame %s (0x%X): invalid dlc %d", fd.Name, fd.ID, fd.DLC)
	}
	if _, dup := m.ByName[fd.Name]; dup {
		return fmt.Errorf("duplicate frame name %s", fd.Name)
	}
	if _, dup := m.ByID[fd.ID]; dup {
		return fmt.Errorf("duplicate frame id 0x%X", fd.ID)
	}
	m.ByID[fd.ID] = fd
	m.ByName[fd.Name] = fd
	return nil
}

// addSignal appends sig to the frame described by fd, registering the frame
// on first use.
func (m *CANMap) addSignal(fd FrameDef, sig SignalDef) error {
	cur, ok := m.ByID[fd.ID]
	if !ok {
		cur = &fd
		if err := m.addFrame(cur); err != nil {
			return err
		}
	}
	if cur.Name != fd.Name {
		return fmt.Errorf("frame 0x%X named both %s and %s", fd.ID, cur.Name, fd.Name)
	}
	if cur.DLC != fd.DLC {
		return fmt.Errorf("frame %s (0x%X) has inconsistent DLC (%d vs %d)", fd.Name, fd.ID, cur.DLC, fd.DLC)
	}
	if err := sig.validate(cur.DLC); err != nil {
		return fmt.Errorf("frame %s signal %s: %w", fd.Name, sig.Name, err)
	}
	if hasSignal(cur, sig.Name) {
		return fmt.Errorf("frame %s: duplicate signal %s", fd.Name, sig.Name)
	}
	cur.Signals = append(cur.Signals, sig)
	return nil
}

func hasSignal(fd *FrameDef, name string) bool {
	_, ok := fd.signal(name)
	return ok
}

func (m *CANMap) FrameNames() []string {
	out := make([]string, 0, len(m.ByName))
	for k := range m.ByName {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
