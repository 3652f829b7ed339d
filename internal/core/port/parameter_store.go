package port

import "github.com/danieltroger/mpi-15k-controller/internal/core/soc"

// ParameterStore persists the assumed battery parameters across restarts.
type ParameterStore interface {
	Load() (soc.AssumedParameters, error)
	Save(p soc.AssumedParameters) error
}
