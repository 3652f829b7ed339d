package state

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	defaults := soc.AssumedParameters{CapacityWh: 10000, ParasiticConsumptionW: 20}
	store := NewFileParameterStore(filepath.Join(t.TempDir(), "state.yaml"), defaults)

	p, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, defaults, p)
}

func TestSaveThenLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	store := NewFileParameterStore(path, soc.AssumedParameters{CapacityWh: 10000})

	require.NoError(t, store.Save(soc.AssumedParameters{CapacityWh: 14250, ParasiticConsumptionW: 31}))

	p, err := NewFileParameterStore(path, soc.AssumedParameters{}).Load()
	require.NoError(t, err)
	assert.Equal(t, 14250.0, p.CapacityWh)
	assert.Equal(t, 31.0, p.ParasiticConsumptionW)

	_, err = os.Stat(tempPath(path))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveRejectsNonFinite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	store := NewFileParameterStore(path, soc.AssumedParameters{})

	assert.Error(t, store.Save(soc.AssumedParameters{CapacityWh: math.NaN()}))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestLoadCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "state.yaml")
	require.NoError(t, os.WriteFile(path, []byte("current_state: [\n"), 0o644))

	defaults := soc.AssumedParameters{CapacityWh: 5}
	p, err := NewFileParameterStore(path, defaults).Load()
	assert.Error(t, err)
	assert.Equal(t, defaults, p)
}
