package carcontrol

import (
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func TestShippedControllerConfigMatchesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("..", "..", "config", "controller.toml"))
	require.NoError(t, err)
	if diff := cmp.Diff(DefaultConfig(), cfg); diff != "" {
		t.Errorf("config/controller.toml drifted from DefaultConfig (-want +got):\n%s", diff)
	}
}

func TestShippedStaticTableMatchesPriusCamRows(t *testing.T) {
	rows, err := LoadStaticTable(filepath.Join("..", "..", "config", "static_table.toml"))
	require.NoError(t, err)

	var want []StaticMessage
	for _, m := range DefaultStaticTable() {
		if m.ECU == ECUCam && containsCar(m.Cars, CarPrius) {
			want = append(want, m)
		}
	}
	if diff := cmp.Diff(want, rows, cmpopts.IgnoreFields(StaticMessage{}, "Cars")); diff != "" {
		t.Errorf("static table mismatch (-want +got):\n%s", diff)
	}
}
