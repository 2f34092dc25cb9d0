package visualization

import (
	"bytes"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/sisweep/internal/store"
	"github.com/nvandessel/sisweep/internal/sweep"
	"github.com/nvandessel/sisweep/internal/topology"
)

// Plot geometry, in SVG user units.
const (
	plotWidth   = 800
	plotHeight  = 600
	marginLeft  = 70
	marginRight = 30
	marginTop   = 45
	marginBot   = 60
	legendRow   = 18
)

// palette is the matplotlib default color cycle.
var palette = []string{
	"#1f77b4", "#ff7f0e", "#2ca02c", "#d62728", "#9467bd",
	"#8c564b", "#e377c2", "#7f7f7f", "#bcbd22", "#17becf",
}

type tick struct {
	Pos   string
	Label string
}

type plotSeries struct {
	Label  string
	Color  string
	Points string
	KeyX1  string
	KeyX2  string
	KeyY   string
	TextX  string
}

type plotData struct {
	Width, Height            int
	Title, XLabel, YLabel    string
	Left, Top, Right, Bottom string
	PlotWidth, PlotHeight    string
	CenterX, CenterY         string
	XTickY, YTickX           string
	XLabelY, YLabelX         string
	XTicks, YTicks           []tick
	Series                   []plotSeries
	LegendX, LegendY         string
	LegendWidth              string
	LegendHeight             string
}

// PlotTitle returns the chart title for a topology kind.
func PlotTitle(kind string) string {
	return fmt.Sprintf("SIS Model Stationary States on %s Network", kind)
}

// LegendLabel returns the legend entry for one mu series.
func LegendLabel(mu float64, params topology.Params) string {
	if len(params) == 0 {
		return fmt.Sprintf("µ=%v", mu)
	}
	return fmt.Sprintf("µ=%v, %s", mu, params.String())
}

// RenderSVG draws the stationary prevalence against beta, one line per mu.
// The x axis spans the beta grid and the y axis is fixed to [0, 1].
func RenderSVG(table *sweep.Table, kind string, params topology.Params) ([]byte, error) {
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("render plot: %w", err)
	}
	if len(table.Betas) == 0 {
		return nil, fmt.Errorf("render plot: empty beta grid")
	}

	tmplBytes, err := templates.ReadFile("templates/plot.svg.tmpl")
	if err != nil {
		return nil, fmt.Errorf("read plot template: %w", err)
	}
	tmpl, err := template.New("plot").Parse(string(tmplBytes))
	if err != nil {
		return nil, fmt.Errorf("parse plot template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, layout(table, kind, params)); err != nil {
		return nil, fmt.Errorf("execute plot template: %w", err)
	}
	return buf.Bytes(), nil
}

// SavePlot renders the plot and writes it to dir as <kind>_<params>.svg,
// creating dir if needed. It returns the written path.
func SavePlot(dir string, table *sweep.Table, kind string, params topology.Params) (string, error) {
	svg, err := RenderSVG(table, kind, params)
	if err != nil {
		return "", err
	}
	if err := store.EnsureDir(dir); err != nil {
		return "", err
	}
	path := filepath.Join(dir, store.ResultName(kind, params)+".svg")
	if err := os.WriteFile(path, svg, 0644); err != nil {
		return "", fmt.Errorf("write plot: %w", err)
	}
	return path, nil
}

func layout(table *sweep.Table, kind string, params topology.Params) plotData {
	left, top := float64(marginLeft), float64(marginTop)
	right, bottom := float64(plotWidth-marginRight), float64(plotHeight-marginBot)

	xmin, xmax := table.Betas[0], table.Betas[len(table.Betas)-1]
	if xmax <= xmin {
		xmin, xmax = xmin-0.5, xmin+0.5
	}
	xpos := func(v float64) float64 { return left + (v-xmin)/(xmax-xmin)*(right-left) }
	ypos := func(v float64) float64 { return bottom - v*(bottom-top) }

	d := plotData{
		Width:      plotWidth,
		Height:     plotHeight,
		Title:      PlotTitle(kind),
		XLabel:     "Infection Probability (β)",
		YLabel:     "Infected Fraction (ρ)",
		Left:       coord(left),
		Top:        coord(top),
		Right:      coord(right),
		Bottom:     coord(bottom),
		PlotWidth:  coord(right - left),
		PlotHeight: coord(bottom - top),
		CenterX:    coord((left + right) / 2),
		CenterY:    coord((top + bottom) / 2),
		XTickY:     coord(bottom + 18),
		YTickX:     coord(left - 8),
		XLabelY:    coord(bottom + 42),
		YLabelX:    coord(left - 50),
	}

	const ticks = 5
	for i := 0; i <= ticks; i++ {
		xv := xmin + float64(i)*(xmax-xmin)/ticks
		d.XTicks = append(d.XTicks, tick{Pos: coord(xpos(xv)), Label: tickLabel(xv)})
		yv := float64(i) / ticks
		d.YTicks = append(d.YTicks, tick{Pos: coord(ypos(yv)), Label: tickLabel(yv)})
	}

	longest := 0
	for i, s := range table.Series {
		label := LegendLabel(s.Mu, params)
		longest = max(longest, len([]rune(label)))

		pts := make([]string, len(s.Values))
		for j, v := range s.Values {
			pts[j] = coord(xpos(table.Betas[j])) + "," + coord(ypos(v))
		}
		d.Series = append(d.Series, plotSeries{
			Label:  label,
			Color:  palette[i%len(palette)],
			Points: strings.Join(pts, " "),
		})
	}

	// Legend box in the lower right corner of the plot area.
	legendW := 40 + 7*float64(longest)
	legendH := 8 + legendRow*float64(len(d.Series))
	lx := right - legendW - 10
	ly := bottom - legendH - 10
	d.LegendX, d.LegendY = coord(lx), coord(ly)
	d.LegendWidth, d.LegendHeight = coord(legendW), coord(legendH)
	for i := range d.Series {
		y := ly + 4 + legendRow*(float64(i)+0.5)
		d.Series[i].KeyX1 = coord(lx + 6)
		d.Series[i].KeyX2 = coord(lx + 28)
		d.Series[i].KeyY = coord(y)
		d.Series[i].TextX = coord(lx + 34)
	}
	return d
}

func coord(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func tickLabel(v float64) string {
	return strconv.FormatFloat(v, 'g', 3, 64)
}
