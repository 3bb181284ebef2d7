package carcontrol

import (
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

// CounterKind is the per-row payload rewrite applied at send time.
type CounterKind int

const (
	CounterNone CounterKind = iota
	// CounterRollingHighBits prepends a byte whose top three bits carry a
	// 1..7 counter advancing every period.
	CounterRollingHighBits
	// CounterTrailingNibble appends a byte carrying a 1..15 counter
	// advancing every period, optionally with the top bit set as a marker.
	CounterTrailingNibble
)

func (k CounterKind) String() string {
	switch k {
	case CounterRollingHighBits:
		return "rolling_high_bits"
	case CounterTrailingNibble:
		return "trailing_nibble"
	default:
		return "none"
	}
}

func (k *CounterKind) UnmarshalText(text []byte) error {
	switch strings.ToLower(strings.TrimSpace(string(text))) {
	case "", "none":
		*k = CounterNone
	case "rolling_high_bits":
		*k = CounterRollingHighBits
	case "trailing_nibble":
		*k = CounterTrailingNibble
	default:
		return fmt.Errorf("unknown counter rule %q", text)
	}
	return nil
}

type CounterRule struct {
	Kind   CounterKind
	Marker bool
}

// StaticMessage is a periodic keep-alive a real ECU would send.
type StaticMessage struct {
	Address uint32
	ECU     ECU
	Cars    []CarModel
	Bus     int
	Period  uint64
	Payload []byte
	Counter CounterRule
}

func (m StaticMessage) due(cycle uint64) bool {
	return cycle%m.Period == 0
}

// Frame builds the frame for cycle with the counter rule applied.
func (m StaticMessage) Frame(cycle uint64) Frame {
	data := make([]byte, 0, len(m.Payload)+1)
	step := cycle / m.Period
	switch m.Counter.Kind {
	case CounterRollingHighBits:
		data = append(data, byte((step%7)+1)<<5)
		data = append(data, m.Payload...)
	case CounterTrailingNibble:
		cnt := byte((step % 0xf) + 1)
		if m.Counter.Marker {
			cnt |= 1 << 7
		}
		data = append(data, m.Payload...)
		data = append(data, cnt)
	default:
		data = append(data, m.Payload...)
	}
	return newFrame(m.Bus, m.Address, data)
}

func (m StaticMessage) Validate() error {
	if m.Period == 0 {
		return fmt.Errorf("static 0x%x: period must be positive", m.Address)
	}
	if m.Address > 0x7ff {
		return fmt.Errorf("static 0x%x: not a standard id", m.Address)
	}
	n := len(m.Payload)
	if m.Counter.Kind != CounterNone {
		n++
	}
	if n > 8 {
		return fmt.Errorf("static 0x%x: payload of %d bytes exceeds 8", m.Address, n)
	}
	if len(m.Cars) == 0 {
		return fmt.Errorf("static 0x%x: no cars", m.Address)
	}
	return nil
}

type staticTableFile struct {
	Messages []staticRowFile `toml:"static_message"`
}

type staticRowFile struct {
	Address uint32      `toml:"address"`
	ECU     ECU         `toml:"ecu"`
	Cars    []CarModel  `toml:"cars"`
	Bus     int         `toml:"bus"`
	Period  uint64      `toml:"period"`
	Payload string      `toml:"payload"`
	Counter CounterKind `toml:"counter"`
	Marker  bool        `toml:"marker"`
}

// LoadStaticTable reads [[static_message]] rows from a TOML file. Payloads
// are hex strings; spaces are ignored.
func LoadStaticTable(path string) ([]StaticMessage, error) {
	var f staticTableFile
	md, err := toml.DecodeFile(path, &f)
	if err != nil {
		return nil, fmt.Errorf("static table %s: %w", path, err)
	}
	if und := md.Undecoded(); len(und) > 0 {
		return nil, fmt.Errorf("static table %s: unknown keys %v", path, und)
	}

	rows := make([]StaticMessage, 0, len(f.Messages))
	for i, r := range f.Messages {
		payload, err := hex.DecodeString(strings.ReplaceAll(r.Payload, " ", ""))
		if err != nil {
			return nil, fmt.Errorf("static table %s row %d: payload: %w", path, i, err)
		}
		m := StaticMessage{
			Address: r.Address,
			ECU:     r.ECU,
			Cars:    r.Cars,
			Bus:     r.Bus,
			Period:  r.Period,
			Payload: payload,
			Counter: CounterRule{Kind: r.Counter, Marker: r.Marker},
		}
		if err := m.Validate(); err != nil {
			return nil, fmt.Errorf("static table %s row %d: %w", path, i, err)
		}
		rows = append(rows, m)
	}
	return rows, nil
}

var (
	tss1Cars  = []CarModel{CarPrius, CarRAV4H, CarLexusRXH, CarRAV4, CarCorolla, CarHighlander, CarHighlanderH, CarAvalon}
	dsuCars6  = []CarModel{CarPrius, CarRAV4H, CarLexusRXH, CarRAV4, CarCorolla, CarAvalon}
	hybrids   = []CarModel{CarPrius, CarRAV4H, CarLexusRXH}
	hybrids4  = []CarModel{CarPrius, CarRAV4H, CarLexusRXH, CarHighlanderH}
	gasCars4  = []CarModel{CarRAV4, CarCorolla, CarHighlander, CarAvalon}
	priusOnly = []CarModel{CarPrius}
)

// DefaultStaticTable is the built-in Toyota keep-alive table.
func DefaultStaticTable() []StaticMessage {
	h := mustHex
	return []StaticMessage{
		{Address: 0x128, ECU: ECUDSU, Cars: dsuCars6, Bus: 1, Period: 3, Payload: h("f40190830037")},
		{Address: 0x128, ECU: ECUDSU, Cars: []CarModel{CarHighlander, CarHighlanderH}, Bus: 1, Period: 3, Payload: h("030020000052")},
		{Address: 0x141, ECU: ECUDSU, Cars: tss1Cars, Bus: 1, Period: 2, Payload: h("00000046")},
		{Address: 0x160, ECU: ECUDSU, Cars: tss1Cars, Bus: 1, Period: 7, Payload: h("000008120131 9c51")},
		{Address: 0x161, ECU: ECUDSU, Cars: dsuCars6, Bus: 1, Period: 7, Payload: h("001e0000008007")},
		{Address: 0x161, ECU: ECUDSU, Cars: []CarModel{CarHighlander, CarHighlanderH}, Bus: 1, Period: 7, Payload: h("001e00d400005b")},
		{Address: 0x283, ECU: ECUDSU, Cars: tss1Cars, Bus: 0, Period: 3, Payload: h("0000000000008c")},
		{Address: 0x2e6, ECU: ECUDSU, Cars: hybrids, Bus: 0, Period: 3, Payload: h("fff800087fe0004e")},
		{Address: 0x2e7, ECU: ECUDSU, Cars: hybrids, Bus: 0, Period: 3, Payload: h("a89c319c00000002")},
		{Address: 0x33e, ECU: ECUDSU, Cars: hybrids, Bus: 0, Period: 20, Payload: h("0fff264000 1f00")},
		{Address: 0x344, ECU: ECUDSU, Cars: tss1Cars, Bus: 0, Period: 5, Payload: h("0000010000000050")},
		{Address: 0x365, ECU: ECUDSU, Cars: hybrids4, Bus: 0, Period: 20, Payload: h("00000080030008")},
		{Address: 0x365, ECU: ECUDSU, Cars: gasCars4, Bus: 0, Period: 20, Payload: h("00000080fc0008")},
		{Address: 0x366, ECU: ECUDSU, Cars: hybrids4, Bus: 0, Period: 20, Payload: h("00004d82400200")},
		{Address: 0x366, ECU: ECUDSU, Cars: gasCars4, Bus: 0, Period: 20, Payload: h("007207ff09fe00")},
		{Address: 0x470, ECU: ECUDSU, Cars: []CarModel{CarPrius, CarLexusRXH}, Bus: 1, Period: 100, Payload: h("0000027a")},
		{Address: 0x470, ECU: ECUDSU, Cars: []CarModel{CarHighlander, CarHighlanderH, CarRAV4H}, Bus: 1, Period: 100, Payload: h("00000179")},
		{Address: 0x4cb, ECU: ECUDSU, Cars: tss1Cars, Bus: 0, Period: 100, Payload: h("0c00000000000000")},

		{Address: 0x292, ECU: ECUAPGS, Cars: priusOnly, Bus: 0, Period: 3, Payload: h("000000000000009e")},
		{Address: 0x32e, ECU: ECUAPGS, Cars: priusOnly, Bus: 0, Period: 20, Payload: h("0000000000000000")},
		{Address: 0x396, ECU: ECUAPGS, Cars: priusOnly, Bus: 0, Period: 100, Payload: h("bd000000600f0200")},
		{Address: 0x43a, ECU: ECUAPGS, Cars: priusOnly, Bus: 0, Period: 100, Payload: h("8400000000000000")},
		{Address: 0x43b, ECU: ECUAPGS, Cars: priusOnly, Bus: 0, Period: 100, Payload: h("0000000000000000")},
		{Address: 0x497, ECU: ECUAPGS, Cars: priusOnly, Bus: 0, Period: 100, Payload: h("0000000000000000")},
		{Address: 0x4cc, ECU: ECUAPGS, Cars: priusOnly, Bus: 0, Period: 100, Payload: h("0d00000000000000")},

		{Address: 0x367, ECU: ECUCam, Cars: tss1Cars, Bus: 0, Period: 40, Payload: h("0600")},
		{Address: 0x414, ECU: ECUCam, Cars: tss1Cars, Bus: 0, Period: 100, Payload: h("0000000000000000")},
		{Address: 0x466, ECU: ECUCam, Cars: hybrids4, Bus: 1, Period: 100, Payload: h("2020ad")},
		{Address: 0x489, ECU: ECUCam, Cars: tss1Cars, Bus: 0, Period: 100, Payload: h("00000000000000"), Counter: CounterRule{Kind: CounterTrailingNibble}},
		{Address: 0x48a, ECU: ECUCam, Cars: tss1Cars, Bus: 0, Period: 100, Payload: h("00000000000000"), Counter: CounterRule{Kind: CounterTrailingNibble, Marker: true}},
		{Address: 0x48b, ECU: ECUCam, Cars: tss1Cars, Bus: 0, Period: 100, Payload: h("6606080a02000000")},
		{Address: 0x4d3, ECU: ECUCam, Cars: tss1Cars, Bus: 0, Period: 100, Payload: h("1c00000100000000")},
		{Address: 0x130, ECU: ECUCam, Cars: tss1Cars, Bus: 1, Period: 100, Payload: h("00000000000038")},
		{Address: 0x240, ECU: ECUCam, Cars: tss1Cars, Bus: 1, Period: 5, Payload: h("00100100100100"), Counter: CounterRule{Kind: CounterRollingHighBits}},
		{Address: 0x241, ECU: ECUCam, Cars: tss1Cars, Bus: 1, Period: 5, Payload: h("00100100100100"), Counter: CounterRule{Kind: CounterRollingHighBits}},
		{Address: 0x244, ECU: ECUCam, Cars: tss1Cars, Bus: 1, Period: 5, Payload: h("00100100100100"), Counter: CounterRule{Kind: CounterRollingHighBits}},
		{Address: 0x245, ECU: ECUCam, Cars: tss1Cars, Bus: 1, Period: 5, Payload: h("00100100100100"), Counter: CounterRule{Kind: CounterRollingHighBits}},
		{Address: 0x248, ECU: ECUCam, Cars: tss1Cars, Bus: 1, Period: 5, Payload: h("00000000000001"), Counter: CounterRule{Kind: CounterRollingHighBits}},
	}
}

func mustHex(s string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(s, " ", ""))
	if err != nil {
		panic(err)
	}
	return b
}
