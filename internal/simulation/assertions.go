package simulation

import (
	"cmp"
	"math"
	"slices"
	"testing"

	"github.com/nvandessel/sisweep/internal/sweep"
)

// AssertPrevalenceBounded asserts that every table value lies in [0, 1] and
// that every series spans the beta grid.
func AssertPrevalenceBounded(t *testing.T, result SimulationResult) {
	t.Helper()
	if err := result.Table.Validate(); err != nil {
		t.Errorf("AssertPrevalenceBounded: %s: %v", result.Name, err)
	}
}

// AssertNondecreasingInBeta asserts that the prevalence curve of mu never
// drops by more than tolerance as beta grows.
func AssertNondecreasingInBeta(t *testing.T, result SimulationResult, mu, tolerance float64) {
	t.Helper()
	values, ok := result.Table.Get(mu)
	if !ok {
		t.Fatalf("AssertNondecreasingInBeta: %s: no series for mu=%v", result.Name, mu)
	}
	for i := 1; i < len(values); i++ {
		if values[i] < values[i-1]-tolerance {
			t.Errorf("AssertNondecreasingInBeta: %s: mu=%v prevalence drops from %.4f at beta=%v to %.4f at beta=%v",
				result.Name, mu, values[i-1], result.Table.Betas[i-1], values[i], result.Table.Betas[i])
		}
	}
}

// AssertNonincreasingInMu asserts that at every beta the prevalence does not
// grow by more than tolerance as mu grows.
func AssertNonincreasingInMu(t *testing.T, result SimulationResult, tolerance float64) {
	t.Helper()
	series := sortedByMu(result.Table)
	for i := 1; i < len(series); i++ {
		lo, hi := series[i-1], series[i]
		for bi, beta := range result.Table.Betas {
			if hi.Values[bi] > lo.Values[bi]+tolerance {
				t.Errorf("AssertNonincreasingInMu: %s: beta=%v prevalence %.4f at mu=%v exceeds %.4f at mu=%v",
					result.Name, beta, hi.Values[bi], hi.Mu, lo.Values[bi], lo.Mu)
			}
		}
	}
}

// AssertExtinct asserts that the prevalence at (beta, mu) is at most max.
func AssertExtinct(t *testing.T, result SimulationResult, mu, beta, max float64) {
	t.Helper()
	p := prevalence(t, result, beta, mu)
	if p > max {
		t.Errorf("AssertExtinct: %s: prevalence %.4f at beta=%v mu=%v exceeds %.4f", result.Name, p, beta, mu, max)
	}
}

// AssertEndemic asserts that the prevalence at (beta, mu) is at least min.
func AssertEndemic(t *testing.T, result SimulationResult, mu, beta, min float64) {
	t.Helper()
	p := prevalence(t, result, beta, mu)
	if p < min {
		t.Errorf("AssertEndemic: %s: prevalence %.4f at beta=%v mu=%v below %.4f", result.Name, p, beta, mu, min)
	}
}

// AssertPrevalence asserts that the prevalence at (beta, mu) equals want
// up to rounding.
func AssertPrevalence(t *testing.T, result SimulationResult, mu, beta, want float64) {
	t.Helper()
	p := prevalence(t, result, beta, mu)
	if math.Abs(p-want) > 1e-12 {
		t.Errorf("AssertPrevalence: %s: prevalence %.6f at beta=%v mu=%v, want %.6f", result.Name, p, beta, mu, want)
	}
}

// AssertTablesIdentical asserts bit-for-bit equality of two tables.
func AssertTablesIdentical(t *testing.T, want, got *sweep.Table) {
	t.Helper()
	if len(want.Betas) != len(got.Betas) || len(want.Series) != len(got.Series) {
		t.Fatalf("AssertTablesIdentical: shape %dx%d, want %dx%d",
			len(got.Series), len(got.Betas), len(want.Series), len(want.Betas))
	}
	for i := range want.Betas {
		if math.Float64bits(want.Betas[i]) != math.Float64bits(got.Betas[i]) {
			t.Errorf("AssertTablesIdentical: beta[%d] = %v, want %v", i, got.Betas[i], want.Betas[i])
		}
	}
	for si := range want.Series {
		w, g := want.Series[si], got.Series[si]
		if w.Mu != g.Mu {
			t.Errorf("AssertTablesIdentical: series %d mu = %v, want %v", si, g.Mu, w.Mu)
			continue
		}
		AssertTrajectory(t, w.Values, g.Values)
	}
	if len(want.Cells) != len(got.Cells) {
		t.Errorf("AssertTablesIdentical: %d cells, want %d", len(got.Cells), len(want.Cells))
		return
	}
	for ci := range want.Cells {
		AssertTrajectory(t, want.Cells[ci].Trajectory, got.Cells[ci].Trajectory)
	}
}

// AssertTrajectory asserts bit-for-bit equality of two fraction sequences.
func AssertTrajectory(t *testing.T, want, got []float64) {
	t.Helper()
	if len(want) != len(got) {
		t.Errorf("AssertTrajectory: length %d, want %d (%v vs %v)", len(got), len(want), got, want)
		return
	}
	for i := range want {
		if math.Float64bits(want[i]) != math.Float64bits(got[i]) {
			t.Errorf("AssertTrajectory: step %d = %v, want %v", i, got[i], want[i])
		}
	}
}

// AssertStoredMatches asserts that the persisted table reads back unchanged.
func AssertStoredMatches(t *testing.T, result SimulationResult) {
	t.Helper()
	if result.Stored == nil {
		t.Fatalf("AssertStoredMatches: %s: nothing stored", result.Name)
	}
	if result.Stored.ID != result.ID {
		t.Errorf("AssertStoredMatches: %s: stored id %s, want %s", result.Name, result.Stored.ID, result.ID)
	}
	AssertTablesIdentical(t, result.Table, result.Stored.Table)
}

func prevalence(t *testing.T, result SimulationResult, beta, mu float64) float64 {
	t.Helper()
	p, ok := result.Prevalence(beta, mu)
	if !ok {
		t.Fatalf("%s: (beta=%v, mu=%v) is not on the grid", result.Name, beta, mu)
	}
	return p
}

func sortedByMu(table *sweep.Table) []sweep.Series {
	series := slices.Clone(table.Series)
	slices.SortFunc(series, func(a, b sweep.Series) int { return cmp.Compare(a.Mu, b.Mu) })
	return series
}
