package utils

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// LoadCANMap loads signal definitions from a .dbc file or from the
// can_map.csv column layout.
func LoadCANMap(path string) (*CANMap, error) {
	if strings.EqualFold(filepath.Ext(path), ".dbc") {
		return LoadDBC(path)
	}
	return LoadCANMapCSV(path)
}

var csvColumns = []string{
	"direction", "frame_id", "frame_name", "cycle_ms", "dlc",
	"signal_name", "start_bit", "bit_length", "endianness",
	"signed", "factor", "offset", "min", "max", "default", "unit", "comment",
}

// LoadCANMapCSV reads one signal per row. Rows of the same frame must agree
// on its name and DLC.
func LoadCANMapCSV(csvPath string) (*CANMap, error) {
	f, err := os.Open(csvPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%s: header: %w", csvPath, err)
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		cols[strings.TrimSpace(h)] = i
	}
	for _, k := range csvColumns {
		if _, ok := cols[k]; !ok {
			return nil, fmt.Errorf("%s: missing required column %q", csvPath, k)
		}
	}

	m := newCANMap()
	for line := 2; ; line++ {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", csvPath, err)
		}
		row := csvRow{cols: cols, rec: rec}
		fd, sig := row.frame(), row.signal()
		if row.err != nil {
			return nil, fmt.Errorf("%s line %d: %w", csvPath, line, row.err)
		}
		if err := m.addSignal(fd, sig); err != nil {
			return nil, fmt.Errorf("%s line %d: %w", csvPath, line, err)
		}
	}

	m.finalize()
	return m, nil
}

// csvRow reads typed cells from one record and keeps the first error.
type csvRow struct {
	cols map[string]int
	rec  []string
	err  error
}

func (r *csvRow) cell(col string) string {
	return strings.TrimSpace(r.rec[r.cols[col]])
}

func (r *csvRow) fail(col string, err error) {
	if r.err == nil {
		r.err = fmt.Errorf("column %s: %w", col, err)
	}
}

func (r *csvRow) intCell(col string) int {
	v, err := strconv.Atoi(r.cell(col))
	if err != nil {
		r.fail(col, err)
	}
	return v
}

// floatCell treats an empty cell as zero.
func (r *csvRow) floatCell(col string) float64 {
	s := r.cell(col)
	if s == "" {
		return 0
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		r.fail(col, err)
	}
	return v
}

func (r *csvRow) boolCell(col string) bool {
	switch strings.ToLower(r.cell(col)) {
	case "true", "1", "yes":
		return true
	case "false", "0", "no", "":
		return false
	default:
		r.fail(col, fmt.Errorf("not a boolean: %q", r.cell(col)))
		return false
	}
}

func (r *csvRow) frame() FrameDef {
	id, err := parseHexOrDecUint32(r.cell("frame_id"))
	if err != nil {
		r.fail("frame_id", err)
	}
	return FrameDef{
		ID:        id,
		Name:      r.cell("frame_name"),
		DLC:       r.intCell("dlc"),
		Direction: r.cell("direction"),
		CycleMS:   r.intCell("cycle_ms"),
	}
}

func (r *csvRow) signal() SignalDef {
	sig := SignalDef{
		Name:       r.cell("signal_name"),
		StartBit:   r.intCell("start_bit"),
		BitLength:  r.intCell("bit_length"),
		Endianness: r.cell("endianness"),
		Signed:     r.boolCell("signed"),
		Factor:     r.floatCell("factor"),
		Offset:     r.floatCell("offset"),
		Min:        r.floatCell("min"),
		Max:        r.floatCell("max"),
		Default:    r.floatCell("default"),
		Unit:       r.cell("unit"),
		Comment:    r.cell("comment"),
	}
	if sig.Endianness == "" {
		sig.Endianness = "little"
	}
	return sig
}

func (m *CANMap) FrameByName(name string) (*FrameDef, error) {
	fd, ok := m.ByName[name]
	if !ok {
		return nil, fmt.Errorf("unknown frame %q (available: %v)", name, m.FrameNames())
	}
	return fd, nil
}

func (m *CANMap) FrameByID(id uint32) (*FrameDef, error) {
	fd, ok := m.ByID[id]
	if !ok {
		return nil, fmt.Errorf("unknown frame id 0x%X", id)
	}
	return fd, nil
}

func parseHexOrDecUint32(s string) (uint32, error) {
	ss := strings.TrimSpace(s)
	base := 10
	if strings.HasPrefix(ss, "0x") || strings.HasPrefix(ss, "0X") {
		base = 16
		ss = ss[2:]
	}
	u, err := strconv.ParseUint(ss, base, 32)
	if err != nil {
		return 0, err
	}
	return uint32(u), nil
}
