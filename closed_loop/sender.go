package main

import (
	"context"
	"fmt"

	"go.einride.tech/can"
	"go.uber.org/multierr"

	"lkas-actuation-core/closed_loop/carcontrol"
)

// busWriter is the part of utils.BusSender the frame sender needs.
type busWriter interface {
	Has(bus int) bool
	Send(ctx context.Context, bus int, f can.Frame) error
}

// sendCounter receives per-frame transmit outcomes.
type sendCounter interface {
	FrameSent(bus int)
	SendError(bus int)
}

// frameSender writes a cycle's batch in order. Frames for a bus with no
// interface are skipped; a failed frame does not stop the rest of the batch.
type frameSender struct {
	buses   busWriter
	counter sendCounter
	skipped uint64
}

var _ carcontrol.Sender = (*frameSender)(nil)

func newFrameSender(buses busWriter, counter sendCounter) *frameSender {
	return &frameSender{buses: buses, counter: counter}
}

func (s *frameSender) SendBatch(ctx context.Context, frames []carcontrol.Frame) error {
	var errs error
	for _, f := range frames {
		if !s.buses.Has(f.Bus) {
			s.skipped++
			continue
		}
		if err := s.buses.Send(ctx, f.Bus, f.Frame); err != nil {
			s.counter.SendError(f.Bus)
			errs = multierr.Append(errs, fmt.Errorf("bus %d id 0x%X: %w", f.Bus, f.ID, err))
			continue
		}
		s.counter.FrameSent(f.Bus)
	}
	return errs
}

// Skipped is the number of frames dropped for lack of an interface.
func (s *frameSender) Skipped() uint64 { return s.skipped }
