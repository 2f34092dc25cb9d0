package sweep

import (
	"fmt"

	"github.com/nvandessel/sisweep/internal/epidemic"
)

// Series is the stationary prevalence for one mu, index-aligned with the
// table's beta grid.
type Series struct {
	Mu     float64   `json:"mu"`
	Values []float64 `json:"values"`
}

// Cell is the averaged post-transient trajectory of one (beta, mu) pair.
type Cell struct {
	MuIndex    int       `json:"mu_index"`
	BetaIndex  int       `json:"beta_index"`
	Beta       float64   `json:"beta"`
	Mu         float64   `json:"mu"`
	Trajectory []float64 `json:"trajectory"`
}

// Table maps each mu to its stationary prevalence curve over the beta grid.
type Table struct {
	Betas  []float64 `json:"betas"`
	Series []Series  `json:"series"`

	// Diagnostics holds the degenerate-result diagnostics of every cell,
	// ordered by mu index then beta index.
	Diagnostics []epidemic.Diagnostic `json:"diagnostics,omitempty"`

	// Cells is only filled when the orchestrator keeps trajectories.
	Cells []Cell `json:"cells,omitempty"`
}

// Mus returns the mu values in series order.
func (t *Table) Mus() []float64 {
	mus := make([]float64, len(t.Series))
	for i, s := range t.Series {
		mus[i] = s.Mu
	}
	return mus
}

// Get returns the prevalence curve for mu.
func (t *Table) Get(mu float64) ([]float64, bool) {
	for _, s := range t.Series {
		if s.Mu == mu {
			return s.Values, true
		}
	}
	return nil, false
}

// Validate checks the table shape: at least one series, every series as
// long as the beta grid, and every value in [0, 1].
func (t *Table) Validate() error {
	if t == nil || len(t.Series) == 0 {
		return fmt.Errorf("%w: result table has no series", epidemic.ErrInvalidParameter)
	}
	for _, s := range t.Series {
		if len(s.Values) != len(t.Betas) {
			return fmt.Errorf("%w: series mu=%v has %d values for %d betas",
				epidemic.ErrInvalidParameter, s.Mu, len(s.Values), len(t.Betas))
		}
		for i, v := range s.Values {
			if !(v >= 0 && v <= 1) {
				return fmt.Errorf("%w: series mu=%v value %d is %v, outside [0, 1]",
					epidemic.ErrInvalidParameter, s.Mu, i, v)
			}
		}
	}
	return nil
}
