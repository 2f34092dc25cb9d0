package visualization

import (
	"encoding/xml"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nvandessel/sisweep/internal/epidemic"
	"github.com/nvandessel/sisweep/internal/sweep"
	"github.com/nvandessel/sisweep/internal/topology"
)

var erParams = topology.Params{{Key: "n", Value: "500"}, {Key: "p", Value: "0.3"}}

func sampleTable() *sweep.Table {
	return &sweep.Table{
		Betas: []float64{0, 0.25, 0.5, 0.75, 1},
		Series: []sweep.Series{
			{Mu: 0.1, Values: []float64{0, 0.6, 0.8, 0.9, 0.95}},
			{Mu: 0.5, Values: []float64{0, 0.2, 0.45, 0.6, 0.7}},
			{Mu: 0.9, Values: []float64{0, 0, 0.1, 0.25, 0.4}},
		},
	}
}

// svgDoc is the subset of the rendered SVG the tests inspect.
type svgDoc struct {
	XMLName xml.Name   `xml:"svg"`
	Texts   []string   `xml:"text"`
	Groups  []svgGroup `xml:"g"`
}

type svgGroup struct {
	Class     string        `xml:"class,attr"`
	Texts     []string      `xml:"text"`
	Polylines []svgPolyline `xml:"polyline"`
}

type svgPolyline struct {
	Stroke string `xml:"stroke,attr"`
	Points string `xml:"points,attr"`
}

func parseSVG(t *testing.T, data []byte) svgDoc {
	t.Helper()
	var doc svgDoc
	if err := xml.Unmarshal(data, &doc); err != nil {
		t.Fatalf("rendered SVG is not well-formed XML: %v\n%s", err, data)
	}
	return doc
}

func TestRenderSVG(t *testing.T) {
	data, err := RenderSVG(sampleTable(), "erdos_renyi", erParams)
	if err != nil {
		t.Fatalf("RenderSVG() error = %v", err)
	}
	doc := parseSVG(t, data)

	wantTitle := "SIS Model Stationary States on erdos_renyi Network"
	found := false
	for _, text := range doc.Texts {
		if text == wantTitle {
			found = true
		}
	}
	if !found {
		t.Errorf("title %q not found in %v", wantTitle, doc.Texts)
	}

	var lines []svgPolyline
	var legend []string
	for _, g := range doc.Groups {
		lines = append(lines, g.Polylines...)
		if g.Class == "legend" {
			legend = g.Texts
		}
	}
	if len(lines) != 3 {
		t.Fatalf("got %d polylines, want 3", len(lines))
	}
	for i, line := range lines {
		if n := len(strings.Fields(line.Points)); n != 5 {
			t.Errorf("series %d has %d points, want 5", i, n)
		}
		if line.Stroke != palette[i] {
			t.Errorf("series %d stroke = %s, want %s", i, line.Stroke, palette[i])
		}
	}

	wantLegend := []string{"µ=0.1, n=500, p=0.3", "µ=0.5, n=500, p=0.3", "µ=0.9, n=500, p=0.3"}
	if len(legend) != len(wantLegend) {
		t.Fatalf("legend = %v, want %v", legend, wantLegend)
	}
	for i := range wantLegend {
		if legend[i] != wantLegend[i] {
			t.Errorf("legend[%d] = %q, want %q", i, legend[i], wantLegend[i])
		}
	}
}

func TestRenderSVG_AxisRange(t *testing.T) {
	table := &sweep.Table{
		Betas:  []float64{0.2, 0.4},
		Series: []sweep.Series{{Mu: 0.5, Values: []float64{0, 1}}},
	}
	data, err := RenderSVG(table, "watts_strogatz", nil)
	if err != nil {
		t.Fatalf("RenderSVG() error = %v", err)
	}
	d := layout(table, "watts_strogatz", nil)

	// First point sits on the left edge at y=0, last on the right edge at y=1.
	wantPoints := d.Left + "," + d.Bottom + " " + d.Right + "," + d.Top
	if d.Series[0].Points != wantPoints {
		t.Errorf("points = %q, want %q", d.Series[0].Points, wantPoints)
	}
	if d.XTicks[0].Label != "0.2" || d.XTicks[len(d.XTicks)-1].Label != "0.4" {
		t.Errorf("x ticks = %v", d.XTicks)
	}
	if d.YTicks[0].Label != "0" || d.YTicks[len(d.YTicks)-1].Label != "1" {
		t.Errorf("y ticks = %v", d.YTicks)
	}
	if !strings.Contains(string(data), ">µ=0.5<") {
		t.Error("legend without params should be just the mu label")
	}
}

func TestRenderSVG_SingleBeta(t *testing.T) {
	table := &sweep.Table{
		Betas:  []float64{0.3},
		Series: []sweep.Series{{Mu: 0.5, Values: []float64{0.4}}},
	}
	if _, err := RenderSVG(table, "erdos_renyi", erParams); err != nil {
		t.Fatalf("RenderSVG() error = %v", err)
	}
}

func TestRenderSVG_InvalidTable(t *testing.T) {
	tests := []struct {
		name  string
		table *sweep.Table
	}{
		{"nil", nil},
		{"no series", &sweep.Table{Betas: []float64{0}}},
		{"short series", &sweep.Table{Betas: []float64{0, 1}, Series: []sweep.Series{{Mu: 0.1, Values: []float64{0}}}}},
		{"value above one", &sweep.Table{Betas: []float64{0}, Series: []sweep.Series{{Mu: 0.1, Values: []float64{1.5}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := RenderSVG(tt.table, "erdos_renyi", erParams)
			if !errors.Is(err, epidemic.ErrInvalidParameter) {
				t.Errorf("RenderSVG() error = %v, want ErrInvalidParameter", err)
			}
		})
	}
}

func TestSavePlot(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "results")

	path, err := SavePlot(dir, sampleTable(), "erdos_renyi", erParams)
	if err != nil {
		t.Fatalf("SavePlot() error = %v", err)
	}
	if want := filepath.Join(dir, "erdos_renyi_n=500_p=0.3.svg"); path != want {
		t.Errorf("SavePlot() path = %s, want %s", path, want)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read plot: %v", err)
	}
	parseSVG(t, data)
}
