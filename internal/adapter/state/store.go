package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/danieltroger/mpi-15k-controller/internal/core/port"
	"github.com/danieltroger/mpi-15k-controller/internal/core/soc"

	"github.com/spf13/viper"
)

const (
	keyCapacity  = "current_state.capacity"
	keyParasitic = "current_state.parasitic_consumption"
	keyUpdatedAt = "current_state.updated_at"
)

// FileParameterStore keeps the assumed parameters in a YAML file shaped like
// the current_state section of the main config.
type FileParameterStore struct {
	path     string
	defaults soc.AssumedParameters
	mu       sync.Mutex
}

var _ port.ParameterStore = (*FileParameterStore)(nil)

func NewFileParameterStore(path string, defaults soc.AssumedParameters) *FileParameterStore {
	return &FileParameterStore{path: path, defaults: defaults}
}

// Load returns the defaults when the file does not exist yet.
func (s *FileParameterStore) Load() (soc.AssumedParameters, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.path); errors.Is(err, os.ErrNotExist) {
		return s.defaults, nil
	}

	v := viper.New()
	v.SetConfigFile(s.path)
	v.SetConfigType("yaml")
	v.SetDefault(keyCapacity, s.defaults.CapacityWh)
	v.SetDefault(keyParasitic, s.defaults.ParasiticConsumptionW)
	if err := v.ReadInConfig(); err != nil {
		return s.defaults, fmt.Errorf("reading state file: %w", err)
	}
	return soc.AssumedParameters{
		CapacityWh:            v.GetFloat64(keyCapacity),
		ParasiticConsumptionW: v.GetFloat64(keyParasitic),
	}, nil
}

// Save replaces the file atomically.
func (s *FileParameterStore) Save(p soc.AssumedParameters) error {
	if !soc.IsFinite(p.CapacityWh) || !soc.IsFinite(p.ParasiticConsumptionW) {
		return errors.New("refusing to persist non-finite parameters")
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set(keyCapacity, p.CapacityWh)
	v.Set(keyParasitic, p.ParasiticConsumptionW)
	v.Set(keyUpdatedAt, time.Now().UTC().Format(time.RFC3339))

	// viper picks the encoding from the extension, so it has to stay last
	tmp := tempPath(s.path)
	if err := v.WriteConfigAs(tmp); err != nil {
		return fmt.Errorf("writing state file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing state file: %w", err)
	}
	return nil
}

func tempPath(path string) string {
	return filepath.Join(filepath.Dir(path), ".tmp-"+filepath.Base(path))
}
