package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nvandessel/sisweep/internal/epidemic"
	"github.com/nvandessel/sisweep/internal/sweep"
	"github.com/nvandessel/sisweep/internal/topology"
)

func sampleRecord() *SweepRecord {
	return &SweepRecord{
		Topology: TopologyInfo{
			Kind:   "erdos_renyi",
			Params: topology.Params{{Key: "n", Value: "500"}, {Key: "p", Value: "0.3"}},
			Seed:   1<<63 + 5,
			Nodes:  500,
			Edges:  37425,
		},
		Config: sweep.Config{
			Betas:           []float64{0, 0.5, 1},
			Mus:             []float64{0.9, 0.1},
			InitialFraction: 0.2,
			Steps:           4,
			Transient:       2,
			Repeats:         3,
			Seed:            42,
		},
		Table: &sweep.Table{
			Betas: []float64{0, 0.5, 1},
			Series: []sweep.Series{
				{Mu: 0.9, Values: []float64{0, 0.1, 0.3}},
				{Mu: 0.1, Values: []float64{0, 0.8, 0.95}},
			},
			Diagnostics: []epidemic.Diagnostic{
				{Kind: epidemic.DiagnosticNoInfections, Beta: 0, Mu: 0.9},
				{Kind: epidemic.DiagnosticNoInfections, Beta: 0, Mu: 0.1},
			},
			Cells: []sweep.Cell{
				{MuIndex: 0, BetaIndex: 1, Beta: 0.5, Mu: 0.9, Trajectory: []float64{0.125, 0.075}},
				{MuIndex: 1, BetaIndex: 2, Beta: 1, Mu: 0.1, Trajectory: []float64{0.95, 0.95}},
			},
		},
	}
}

// storeFactories returns every ResultStore implementation under test.
func storeFactories() map[string]func(t *testing.T) ResultStore {
	return map[string]func(t *testing.T) ResultStore{
		"memory": func(t *testing.T) ResultStore {
			return NewInMemoryResultStore()
		},
		"sqlite": func(t *testing.T) ResultStore {
			s, err := NewSQLiteResultStore(filepath.Join(t.TempDir(), "results", DatabaseFile))
			if err != nil {
				t.Fatalf("NewSQLiteResultStore() error = %v", err)
			}
			return s
		},
	}
}

func TestResultStore_SaveGetRoundTrip(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			ctx := context.Background()

			rec := sampleRecord()
			id, err := s.SaveSweep(ctx, rec)
			if err != nil {
				t.Fatalf("SaveSweep() error = %v", err)
			}
			if id == "" || rec.ID != id {
				t.Fatalf("SaveSweep() id = %q, rec.ID = %q", id, rec.ID)
			}
			if rec.CreatedAt.IsZero() {
				t.Error("SaveSweep() did not set CreatedAt")
			}

			got, err := s.GetSweep(ctx, id)
			if err != nil {
				t.Fatalf("GetSweep() error = %v", err)
			}
			if got.Name() != "erdos_renyi_n=500_p=0.3" {
				t.Errorf("Name() = %q", got.Name())
			}
			if got.Topology.Seed != rec.Topology.Seed {
				t.Errorf("Topology.Seed = %d, want %d", got.Topology.Seed, rec.Topology.Seed)
			}
			if got.Topology.Edges != rec.Topology.Edges {
				t.Errorf("Topology.Edges = %d, want %d", got.Topology.Edges, rec.Topology.Edges)
			}
			if !got.CreatedAt.Equal(rec.CreatedAt) {
				t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, rec.CreatedAt)
			}
			if got.Config.Repeats != 3 || got.Config.Seed != 42 || len(got.Config.Mus) != 2 {
				t.Errorf("Config = %+v", got.Config)
			}

			if len(got.Table.Series) != 2 {
				t.Fatalf("Series len = %d, want 2", len(got.Table.Series))
			}
			for i, s := range rec.Table.Series {
				gs := got.Table.Series[i]
				if gs.Mu != s.Mu {
					t.Errorf("Series[%d].Mu = %v, want %v", i, gs.Mu, s.Mu)
				}
				for j := range s.Values {
					if gs.Values[j] != s.Values[j] {
						t.Errorf("Series[%d].Values[%d] = %v, want %v", i, j, gs.Values[j], s.Values[j])
					}
				}
			}
			if len(got.Table.Diagnostics) != 2 || got.Table.Diagnostics[1].Mu != 0.1 {
				t.Errorf("Diagnostics = %+v", got.Table.Diagnostics)
			}
			if len(got.Table.Cells) != 2 || got.Table.Cells[1].Trajectory[0] != 0.95 {
				t.Errorf("Cells = %+v", got.Table.Cells)
			}
			if err := got.Table.Validate(); err != nil {
				t.Errorf("loaded table invalid: %v", err)
			}
		})
	}
}

func TestResultStore_GetByPrefix(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			ctx := context.Background()

			a := sampleRecord()
			a.ID = "abc-111"
			b := sampleRecord()
			b.ID = "abd-222"
			for _, rec := range []*SweepRecord{a, b} {
				if _, err := s.SaveSweep(ctx, rec); err != nil {
					t.Fatalf("SaveSweep() error = %v", err)
				}
			}

			got, err := s.GetSweep(ctx, "abc")
			if err != nil {
				t.Fatalf("GetSweep(prefix) error = %v", err)
			}
			if got.ID != "abc-111" {
				t.Errorf("GetSweep(prefix) ID = %s", got.ID)
			}

			if _, err := s.GetSweep(ctx, "ab"); !errors.Is(err, ErrAmbiguousID) {
				t.Errorf("GetSweep(ambiguous) error = %v, want ErrAmbiguousID", err)
			}
			if _, err := s.GetSweep(ctx, "zzz"); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetSweep(missing) error = %v, want ErrNotFound", err)
			}
			if _, err := s.GetSweep(ctx, ""); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetSweep(empty) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestResultStore_ListNewestFirst(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			ctx := context.Background()

			base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
			for i, id := range []string{"old", "new", "mid"} {
				rec := sampleRecord()
				rec.ID = id
				rec.CreatedAt = base.Add(time.Duration([]int{0, 2, 1}[i]) * time.Hour)
				if _, err := s.SaveSweep(ctx, rec); err != nil {
					t.Fatalf("SaveSweep() error = %v", err)
				}
			}

			sums, err := s.ListSweeps(ctx)
			if err != nil {
				t.Fatalf("ListSweeps() error = %v", err)
			}
			var ids []string
			for _, sum := range sums {
				ids = append(ids, sum.ID)
			}
			want := []string{"new", "mid", "old"}
			if len(ids) != len(want) {
				t.Fatalf("ListSweeps() ids = %v, want %v", ids, want)
			}
			for i := range want {
				if ids[i] != want[i] {
					t.Errorf("ListSweeps() ids = %v, want %v", ids, want)
					break
				}
			}

			sum := sums[0]
			if sum.Betas != 3 || sum.Mus != 2 || sum.Repeats != 3 || sum.Diagnostics != 2 {
				t.Errorf("Summary = %+v", sum)
			}
			if sum.Name != "erdos_renyi_n=500_p=0.3" || sum.Nodes != 500 {
				t.Errorf("Summary = %+v", sum)
			}
		})
	}
}

func TestResultStore_Delete(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			ctx := context.Background()

			id, err := s.SaveSweep(ctx, sampleRecord())
			if err != nil {
				t.Fatalf("SaveSweep() error = %v", err)
			}
			if err := s.DeleteSweep(ctx, id); err != nil {
				t.Fatalf("DeleteSweep() error = %v", err)
			}
			if _, err := s.GetSweep(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Errorf("GetSweep() after delete error = %v, want ErrNotFound", err)
			}
			if err := s.DeleteSweep(ctx, id); !errors.Is(err, ErrNotFound) {
				t.Errorf("DeleteSweep() twice error = %v, want ErrNotFound", err)
			}
			sums, err := s.ListSweeps(ctx)
			if err != nil {
				t.Fatalf("ListSweeps() error = %v", err)
			}
			if len(sums) != 0 {
				t.Errorf("ListSweeps() len = %d, want 0", len(sums))
			}
		})
	}
}

func TestResultStore_RejectsInvalidTable(t *testing.T) {
	for name, newStore := range storeFactories() {
		t.Run(name, func(t *testing.T) {
			s := newStore(t)
			defer s.Close()
			ctx := context.Background()

			rec := sampleRecord()
			rec.Table.Series[0].Values = rec.Table.Series[0].Values[:2]
			if _, err := s.SaveSweep(ctx, rec); !errors.Is(err, epidemic.ErrInvalidParameter) {
				t.Errorf("SaveSweep(short series) error = %v", err)
			}

			if _, err := s.SaveSweep(ctx, &SweepRecord{}); err == nil {
				t.Error("SaveSweep(no table) expected error")
			}
		})
	}
}

func TestSQLiteResultStore_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), DatabaseFile)
	ctx := context.Background()

	s, err := NewSQLiteResultStore(path)
	if err != nil {
		t.Fatalf("NewSQLiteResultStore() error = %v", err)
	}
	id, err := s.SaveSweep(ctx, sampleRecord())
	if err != nil {
		t.Fatalf("SaveSweep() error = %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	s, err = NewSQLiteResultStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()
	if s.Path() != path {
		t.Errorf("Path() = %s, want %s", s.Path(), path)
	}
	if _, err := s.GetSweep(ctx, id); err != nil {
		t.Errorf("GetSweep() after reopen error = %v", err)
	}
}

func TestResultName(t *testing.T) {
	tests := []struct {
		name   string
		kind   string
		params topology.Params
		want   string
	}{
		{"erdos renyi", "erdos_renyi", topology.Params{{Key: "n", Value: "500"}, {Key: "p", Value: "0.3"}}, "erdos_renyi_n=500_p=0.3"},
		{"watts strogatz", "watts_strogatz", topology.Params{{Key: "n", Value: "100"}, {Key: "k", Value: "4"}, {Key: "p", Value: "0.1"}}, "watts_strogatz_n=100_k=4_p=0.1"},
		{"no params", "custom", nil, "custom"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResultName(tt.kind, tt.params); got != tt.want {
				t.Errorf("ResultName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDatabasePath(t *testing.T) {
	if got := DatabasePath("results"); got != filepath.Join("results", "sisweep.db") {
		t.Errorf("DatabasePath() = %s", got)
	}
}
