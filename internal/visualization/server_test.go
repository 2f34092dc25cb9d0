package visualization

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/nvandessel/sisweep/internal/store"
)

func setupTestStore(t *testing.T) (*store.InMemoryResultStore, string) {
	t.Helper()
	rs := store.NewInMemoryResultStore()
	id, err := rs.SaveSweep(context.Background(), &store.SweepRecord{
		Topology: store.TopologyInfo{Kind: "erdos_renyi", Params: erParams, Nodes: 500},
		Table:    sampleTable(),
	})
	if err != nil {
		t.Fatalf("SaveSweep() error = %v", err)
	}
	return rs, id
}

func newTestServer(t *testing.T, rs store.ResultStore) *httptest.Server {
	t.Helper()
	srv, err := NewServer(rs, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, string(body)
}

func TestServer_Index(t *testing.T) {
	rs, id := setupTestStore(t)
	ts := newTestServer(t, rs)

	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET / status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.Contains(body, "erdos_renyi_n=500_p=0.3") {
		t.Error("index should list the stored sweep")
	}
	if !strings.Contains(body, id[:8]) {
		t.Error("index should show the short id")
	}
	if strings.Contains(body, "<img") {
		t.Error("index without selection should not embed a plot")
	}

	resp, body = get(t, ts.URL+"/sweeps/"+id[:8])
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /sweeps/{id} status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "/sweeps/"+id+"/plot.svg") {
		t.Error("selected sweep should embed its plot")
	}
}

func TestServer_EmptyIndex(t *testing.T) {
	ts := newTestServer(t, store.NewInMemoryResultStore())
	resp, body := get(t, ts.URL+"/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "No sweeps stored yet") {
		t.Error("expected empty-state message")
	}
}

func TestServer_Plot(t *testing.T) {
	rs, id := setupTestStore(t)
	ts := newTestServer(t, rs)

	resp, body := get(t, ts.URL+"/sweeps/"+id+"/plot.svg")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/svg+xml" {
		t.Errorf("Content-Type = %q", ct)
	}
	parseSVG(t, []byte(body))
}

func TestServer_API(t *testing.T) {
	rs, id := setupTestStore(t)
	ts := newTestServer(t, rs)

	resp, body := get(t, ts.URL+"/api/sweeps")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("list status = %d", resp.StatusCode)
	}
	var sums []store.Summary
	if err := json.Unmarshal([]byte(body), &sums); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(sums) != 1 || sums[0].ID != id || sums[0].Mus != 3 {
		t.Errorf("list = %+v", sums)
	}

	resp, body = get(t, ts.URL+"/api/sweeps/"+id)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d", resp.StatusCode)
	}
	var rec store.SweepRecord
	if err := json.Unmarshal([]byte(body), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.ID != id || len(rec.Table.Series) != 3 {
		t.Errorf("record = %+v", rec)
	}
}

func TestServer_NotFound(t *testing.T) {
	rs, _ := setupTestStore(t)
	ts := newTestServer(t, rs)

	for _, path := range []string{"/api/sweeps/missing", "/sweeps/missing/plot.svg", "/sweeps/missing"} {
		resp, _ := get(t, ts.URL+path)
		if resp.StatusCode != http.StatusNotFound {
			t.Errorf("GET %s status = %d, want 404", path, resp.StatusCode)
		}
	}
}

func TestServer_ListenAndServe(t *testing.T) {
	rs, _ := setupTestStore(t)
	srv, err := NewServer(rs, nil)
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe(ctx, "") }()

	deadline := time.Now().Add(2 * time.Second)
	for srv.Addr() == "" {
		if time.Now().After(deadline) {
			t.Fatal("server did not start")
		}
		time.Sleep(10 * time.Millisecond)
	}

	resp, _ := get(t, "http://"+srv.Addr()+"/api/sweeps")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d", resp.StatusCode)
	}

	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("ListenAndServe() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
