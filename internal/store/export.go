package store

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// ExportJSONL writes every sweep in s to w, one JSON object per line,
// newest first.
func ExportJSONL(ctx context.Context, s ResultStore, w io.Writer) (int, error) {
	sums, err := s.ListSweeps(ctx)
	if err != nil {
		return 0, err
	}

	enc := json.NewEncoder(w)
	for i, sum := range sums {
		if err := ctx.Err(); err != nil {
			return i, err
		}
		rec, err := s.GetSweep(ctx, sum.ID)
		if err != nil {
			return i, fmt.Errorf("failed to load sweep %s: %w", sum.ID, err)
		}
		if err := enc.Encode(rec); err != nil {
			return i, fmt.Errorf("failed to write sweep %s: %w", sum.ID, err)
		}
	}
	return len(sums), nil
}

// ImportJSONL reads sweeps written by ExportJSONL and saves them into s.
// Sweeps whose id already exists in s are skipped.
func ImportJSONL(ctx context.Context, s ResultStore, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	// Trajectories make for long lines
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, 64*1024*1024)

	sums, err := s.ListSweeps(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list stored sweeps: %w", err)
	}
	stored := make(map[string]bool, len(sums))
	for _, sum := range sums {
		stored[sum.ID] = true
	}

	imported, lineNum := 0, 0
	for scanner.Scan() {
		lineNum++
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var rec SweepRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return imported, fmt.Errorf("line %d: %w", lineNum, err)
		}
		// Ids match exactly; a stored id that merely starts with rec.ID is
		// a different sweep.
		if stored[rec.ID] {
			continue
		}
		id, err := s.SaveSweep(ctx, &rec)
		if err != nil {
			return imported, fmt.Errorf("line %d: %w", lineNum, err)
		}
		stored[id] = true
		imported++
	}
	if err := scanner.Err(); err != nil {
		return imported, fmt.Errorf("scanner error: %w", err)
	}
	return imported, nil
}
