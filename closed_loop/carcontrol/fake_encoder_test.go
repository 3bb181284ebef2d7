package carcontrol

import (
	"fmt"

	"go.einride.tech/can"
)

var testMessageIDs = map[string]uint32{
	msgSteerLKA:      0x2e4,
	msgSteerIPAS:     0x266,
	msgSteerIPASComa: 0x167,
	msgACCControl:    0x343,
	msgGasCommand:    0x200,
	msgLKASHUD:       0x412,
	msgACCHUD:        0x411,
}

// fakeEncoder returns an empty 8 byte frame per known message and records the
// values it was last asked to encode.
type fakeEncoder struct {
	fail map[string]bool
	last map[string]map[string]float64
}

func newFakeEncoder() *fakeEncoder {
	return &fakeEncoder{fail: map[string]bool{}, last: map[string]map[string]float64{}}
}

func (e *fakeEncoder) EncodeFrame(name string, values map[string]float64) (can.Frame, error) {
	id, ok := testMessageIDs[name]
	if !ok {
		return can.Frame{}, fmt.Errorf("unknown frame name %q", name)
	}
	if e.fail[name] {
		return can.Frame{}, fmt.Errorf("%s: value out of range", name)
	}
	cp := make(map[string]float64, len(values))
	for k, v := range values {
		cp[k] = v
	}
	e.last[name] = cp
	return can.Frame{ID: id, Length: 8}, nil
}

func frameIDs(frames []Frame) []uint32 {
	ids := make([]uint32, len(frames))
	for i, f := range frames {
		ids[i] = f.ID
	}
	return ids
}

func indexOf(frames []Frame, id uint32) int {
	for i, f := range frames {
		if f.ID == id {
			return i
		}
	}
	return -1
}

func findFrame(frames []Frame, id uint32) (Frame, bool) {
	if i := indexOf(frames, id); i >= 0 {
		return frames[i], true
	}
	return Frame{}, false
}
