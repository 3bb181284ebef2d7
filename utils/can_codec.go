package utils

import (
	"fmt"
	"math"

	"go.einride.tech/can"
)

const (
	checksumSignal      = "CHECKSUM"
	pedalChecksumSignal = "CHECKSUM_PEDAL"
)

// EncodeFrame packs the named frame from physical signal values. Missing
// signals take their default; checksum signals are computed, never read from
// values.
func (m *CANMap) EncodeFrame(frameName string, values map[string]float64) (can.Frame, error) {
	fd, err := m.FrameByName(frameName)
	if err != nil {
		return can.Frame{}, err
	}
	if fd.DLC <= 0 || fd.DLC > 8 {
		return can.Frame{}, fmt.Errorf("frame %s has invalid DLC %d", fd.Name, fd.DLC)
	}

	f := can.Frame{ID: fd.ID, Length: uint8(fd.DLC)}

	for _, s := range fd.Signals {
		if s.Name == checksumSignal || s.Name == pedalChecksumSignal {
			continue
		}
		v, ok := values[s.Name]
		if !ok {
			v = s.Default
		}
		putSignal(&f.Data, s, v)
	}

	switch fd.Checksum {
	case ChecksumToyota:
		s, _ := fd.signal(checksumSignal)
		putRaw(&f.Data, s, uint64(ToyotaChecksum(fd.ID, f.Data[:fd.DLC])))
	case ChecksumPedalCRC8:
		s, _ := fd.signal(pedalChecksumSignal)
		putRaw(&f.Data, s, uint64(PedalCRC8(f.Data[:fd.DLC-1])))
	}

	if err := f.Validate(); err != nil {
		return can.Frame{}, fmt.Errorf("frame %s: %w", fd.Name, err)
	}
	return f, nil
}

func putSignal(d *can.Data, s SignalDef, v float64) {
	if s.Min < s.Max && !s.wraps() {
		v = clamp(v, s.Min, s.Max)
	}
	factor := s.Factor
	if factor == 0 {
		factor = 1
	}
	raw := int64(math.Round((v - s.Offset) / factor))
	if !s.wraps() {
		raw = clampRaw(raw, s.BitLength, s.Signed)
	}
	putRaw(d, s, rawToUnsigned(raw, s.BitLength))
}

func putRaw(d *can.Data, s SignalDef, u uint64) {
	u &= widthMask(s.BitLength)
	if s.bigEndian() {
		d.SetUnsignedBitsBigEndian(uint8(s.StartBit), uint8(s.BitLength), u)
		return
	}
	d.SetUnsignedBitsLittleEndian(uint8(s.StartBit), uint8(s.BitLength), u)
}

func (m *CANMap) DecodeFrame(frameID uint32, data []byte) (map[string]float64, error) {
	fd, err := m.FrameByID(frameID)
	if err != nil {
		return nil, err
	}
	if len(data) < fd.DLC {
		return nil, fmt.Errorf("frame 0x%X expects DLC %d, got %d", frameID, fd.DLC, len(data))
	}

	var d can.Data
	copy(d[:], data[:fd.DLC])

	out := make(map[string]float64, len(fd.Signals))
	for _, s := range fd.Signals {
		var u uint64
		if s.bigEndian() {
			u = d.UnsignedBitsBigEndian(uint8(s.StartBit), uint8(s.BitLength))
		} else {
			u = d.UnsignedBitsLittleEndian(uint8(s.StartBit), uint8(s.BitLength))
		}
		raw := unsignedToRawInt64(u, s.BitLength, s.Signed)
		factor := s.Factor
		if factor == 0 {
			factor = 1
		}
		out[s.Name] = float64(raw)*factor + s.Offset
	}
	return out, nil
}
