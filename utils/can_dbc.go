package utils

import (
	"fmt"
	"os"

	"go.einride.tech/can/pkg/dbc"
)

// LoadDBC builds a CANMap from the message definitions of a DBC file.
// Multiplexed signals are not supported and are skipped.
func LoadDBC(path string) (*CANMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return ParseDBC(path, data)
}

func ParseDBC(name string, data []byte) (*CANMap, error) {
	p := dbc.NewParser(name, data)
	if err := p.Parse(); err != nil {
		return nil, fmt.Errorf("parse dbc %s: %w", name, err)
	}

	m := newCANMap()
	for _, def := range p.Defs() {
		msg, ok := def.(*dbc.MessageDef)
		if !ok {
			continue
		}
		fd := &FrameDef{
			ID:        msg.MessageID.ToCAN(),
			Name:      string(msg.Name),
			DLC:       int(msg.Size),
			Direction: string(msg.Transmitter),
		}
		if err := m.addFrame(fd); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		for _, s := range msg.Signals {
			if s.IsMultiplexed {
				continue
			}
			endian := "little"
			if s.IsBigEndian {
				endian = "big"
			}
			sig := SignalDef{
				Name:       string(s.Name),
				StartBit:   int(s.StartBit),
				BitLength:  int(s.Size),
				Signed:     s.IsSigned,
				Factor:     s.Factor,
				Offset:     s.Offset,
				Min:        s.Minimum,
				Max:        s.Maximum,
				Unit:       s.Unit,
				Endianness: endian,
			}
			if err := sig.validate(fd.DLC); err != nil {
				return nil, fmt.Errorf("%s: message %s signal %s: %w", name, fd.Name, sig.Name, err)
			}
			fd.Signals = append(fd.Signals, sig)
		}
	}
	m.finalize()
	return m, nil
}
