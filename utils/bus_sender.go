package utils

import (
	"context"
	"fmt"
	"sort"

	"go.einride.tech/can"
	"go.uber.org/multierr"
)

// BusSender routes frames to one CANWriter per logical bus id.
type BusSender struct {
	writers map[int]CANWriter
}

func NewBusSender(writers map[int]CANWriter) *BusSender {
	return &BusSender{writers: writers}
}

// DialBuses opens a SocketCAN writer for every bus id -> interface entry. On
// error the writers already opened are closed.
func DialBuses(ctx context.Context, ifaces map[int]string) (*BusSender, error) {
	writers := make(map[int]CANWriter, len(ifaces))
	for bus, iface := range ifaces {
		w, err := NewSocketCANWriter(ctx, iface)
		if err != nil {
			_ = NewBusSender(writers).Close()
			return nil, fmt.Errorf("bus %d: %w", bus, err)
		}
		writers[bus] = w
	}
	return NewBusSender(writers), nil
}

// Buses returns the configured bus ids in ascending order.
func (s *BusSender) Buses() []int {
	out := make([]int, 0, len(s.writers))
	for b := range s.writers {
		out = append(out, b)
	}
	sort.Ints(out)
	return out
}

func (s *BusSender) Has(bus int) bool {
	_, ok := s.writers[bus]
	return ok
}

func (s *BusSender) Send(ctx context.Context, bus int, f can.Frame) error {
	w, ok := s.writers[bus]
	if !ok {
		return fmt.Errorf("no writer for bus %d", bus)
	}
	return w.WriteFrame(ctx, f)
}

// Close closes every writer and returns all close errors combined.
func (s *BusSender) Close() error {
	var err error
	for _, b := range s.Buses() {
		err = multierr.Append(err, s.writers[b].Close())
	}
	return err
}
