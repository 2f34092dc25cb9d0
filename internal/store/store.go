// Package store defines the ResultStore interface for persisting finished
// sweeps and provides SQLite and in-memory implementations.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/nvandessel/sisweep/internal/sweep"
	"github.com/nvandessel/sisweep/internal/topology"
)

var (
	// ErrNotFound is returned when no sweep matches an id.
	ErrNotFound = errors.New("sweep not found")

	// ErrAmbiguousID is returned when an id prefix matches several sweeps.
	ErrAmbiguousID = errors.New("ambiguous sweep id")
)

// TopologyInfo describes the network a sweep ran on.
type TopologyInfo struct {
	Kind   string          `json:"kind"`
	Params topology.Params `json:"params"`
	Seed   uint64          `json:"seed"`
	Nodes  int             `json:"nodes"`
	Edges  int             `json:"edges"`
}

// SweepRecord is one persisted sweep.
type SweepRecord struct {
	ID        string       `json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	Topology  TopologyInfo `json:"topology"`
	Config    sweep.Config `json:"config"`
	Table     *sweep.Table `json:"table"`
}

// Name returns the result name used for plots and exports.
func (r *SweepRecord) Name() string {
	return ResultName(r.Topology.Kind, r.Topology.Params)
}

// Summary is the listing view of a sweep.
type Summary struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Kind        string    `json:"kind"`
	Nodes       int       `json:"nodes"`
	Betas       int       `json:"betas"`
	Mus         int       `json:"mus"`
	Repeats     int       `json:"repeats"`
	Diagnostics int       `json:"diagnostics"`
	CreatedAt   time.Time `json:"created_at"`
}

// ResultStore persists sweeps.
type ResultStore interface {
	// SaveSweep stores rec and returns its id. An empty ID is assigned a new
	// UUID and a zero CreatedAt is set to now; both are written back to rec.
	SaveSweep(ctx context.Context, rec *SweepRecord) (string, error)

	// GetSweep returns the sweep whose id equals or starts with id.
	GetSweep(ctx context.Context, id string) (*SweepRecord, error)

	// ListSweeps returns all sweeps, newest first.
	ListSweeps(ctx context.Context) ([]Summary, error)

	DeleteSweep(ctx context.Context, id string) error
	Close() error
}

// ResultName joins the topology kind and its params the way result files
// are named, e.g. "erdos_renyi_n=500_p=0.3".
func ResultName(kind string, params topology.Params) string {
	if slug := params.Slug(); slug != "" {
		return kind + "_" + slug
	}
	return kind
}

func summarize(rec *SweepRecord) Summary {
	s := Summary{
		ID:        rec.ID,
		Name:      rec.Name(),
		Kind:      rec.Topology.Kind,
		Nodes:     rec.Topology.Nodes,
		Repeats:   rec.Config.Repeats,
		CreatedAt: rec.CreatedAt,
	}
	if rec.Table != nil {
		s.Betas = len(rec.Table.Betas)
		s.Mus = len(rec.Table.Series)
		s.Diagnostics = len(rec.Table.Diagnostics)
	}
	return s
}

func prepare(rec *SweepRecord) error {
	if rec == nil || rec.Table == nil {
		return errors.New("sweep record has no result table")
	}
	if err := rec.Table.Validate(); err != nil {
		return err
	}
	if rec.ID == "" {
		rec.ID = newID()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return nil
}
