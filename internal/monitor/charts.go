package monitor

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/headtrack/internal/pose"
	"github.com/banshee-data/headtrack/internal/recorder"
)

const echartsAssetsPrefix = "https://go-echarts.github.io/go-echarts-assets/assets/"

// axisGroups splits the six axes by unit so each chart has one y scale.
var axisGroups = []struct {
	name  string
	unit  string
	axes  []pose.Axis
	group string
}{
	{name: "Translation", unit: "cm", axes: []pose.Axis{pose.X, pose.Y, pose.Z}, group: "translation"},
	{name: "Rotation", unit: "deg", axes: []pose.Axis{pose.Yaw, pose.Pitch, pose.Roll}, group: "rotation"},
}

// history reads the n query parameter and returns that many recorded
// samples. It writes an error response and returns ok=false on failure.
func (ws *WebServer) history(w http.ResponseWriter, r *http.Request) ([]recorder.Sample, bool) {
	rec := ws.tracker.Recorder()
	if rec == nil {
		ws.writeJSONError(w, http.StatusNotFound, "pose recording is disabled")
		return nil, false
	}
	n := 0
	if s := r.URL.Query().Get("n"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil || v <= 0 {
			ws.writeJSONError(w, http.StatusBadRequest, "invalid 'n' parameter")
			return nil, false
		}
		n = v
	}
	samples := rec.History(n)
	if len(samples) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no pose samples recorded yet")
		return nil, false
	}
	return samples, true
}

// handlePoseChart renders input and output pose history as go-echarts line
// charts, one per axis group.
// Query params:
//   - n (optional; default all recorded) number of samples
func (ws *WebServer) handlePoseChart(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodGet) {
		return
	}
	samples, ok := ws.history(w, r)
	if !ok {
		return
	}

	start := samples[0].Time
	x := make([]string, len(samples))
	for i, s := range samples {
		x[i] = fmt.Sprintf("%.1f", s.Time.Sub(start).Seconds())
	}

	page := components.NewPage()
	page.SetAssetsHost(echartsAssetsPrefix)

	for _, g := range axisGroups {
		line := charts.NewLine()
		line.SetGlobalOptions(
			charts.WithInitializationOpts(opts.Initialization{Width: "100%", Height: "420px", AssetsHost: echartsAssetsPrefix}),
			charts.WithTitleOpts(opts.Title{Title: g.name, Subtitle: fmt.Sprintf("%d samples since %s", len(samples), start.Format(time.RFC3339))}),
			charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
			charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
			charts.WithXAxisOpts(opts.XAxis{Name: "t (s)"}),
			charts.WithYAxisOpts(opts.YAxis{Name: g.unit}),
		)
		line.SetXAxis(x)
		for _, a := range g.axes {
			in := make([]opts.LineData, len(samples))
			out := make([]opts.LineData, len(samples))
			for i, s := range samples {
				in[i] = opts.LineData{Value: s.Input[a]}
				out[i] = opts.LineData{Value: s.Output[a]}
			}
			line.AddSeries(a.String()+" in", in,
				charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}),
			)
			line.AddSeries(a.String()+" out", out)
		}
		page.AddCharts(line)
	}

	var buf bytes.Buffer
	if err := page.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("render error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// handlePosePlot renders one axis group of the pose history as a PNG.
// Query params:
//   - group (optional; rotation or translation, default rotation)
//   - n (optional; default all recorded) number of samples
func (ws *WebServer) handlePosePlot(w http.ResponseWriter, r *http.Request) {
	if !ws.allow(w, r, http.MethodGet) {
		return
	}
	group := r.URL.Query().Get("group")
	if group == "" {
		group = "rotation"
	}
	gi := -1
	for i, g := range axisGroups {
		if g.group == group {
			gi = i
		}
	}
	if gi < 0 {
		ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("unknown group %q", group))
		return
	}
	samples, ok := ws.history(w, r)
	if !ok {
		return
	}

	wt, err := plotPoseGroup(samples, gi)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("plot error: %v", err))
		return
	}
	var buf bytes.Buffer
	if _, err := wt.WriteTo(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("plot error: %v", err))
		return
	}
	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(buf.Bytes())
}

// plotPoseGroup draws input (dashed) and output (solid) traces for the axes
// of one group against seconds since the first sample.
func plotPoseGroup(samples []recorder.Sample, gi int) (io.WriterTo, error) {
	g := axisGroups[gi]
	p := plot.New()
	p.Title.Text = g.name
	p.X.Label.Text = "t (s)"
	p.Y.Label.Text = g.unit
	p.Add(plotter.NewGrid())

	start := samples[0].Time
	for i, a := range g.axes {
		in := make(plotter.XYs, len(samples))
		out := make(plotter.XYs, len(samples))
		for j, s := range samples {
			t := s.Time.Sub(start).Seconds()
			in[j] = plotter.XY{X: t, Y: s.Input[a]}
			out[j] = plotter.XY{X: t, Y: s.Output[a]}
		}

		inLine, err := plotter.NewLine(in)
		if err != nil {
			return nil, err
		}
		inLine.Color = plotutil.Color(i)
		inLine.Width = vg.Points(1)
		inLine.Dashes = []vg.Length{vg.Points(4), vg.Points(2)}
		p.Add(inLine)
		p.Legend.Add(a.String()+" in", inLine)

		outLine, err := plotter.NewLine(out)
		if err != nil {
			return nil, err
		}
		outLine.Color = plotutil.Color(i)
		outLine.Width = vg.Points(1.5)
		p.Add(outLine)
		p.Legend.Add(a.String()+" out", outLine)
	}
	p.Legend.Top = true
	p.Legend.Left = false
	p.Legend.XOffs = -10
	p.Legend.YOffs = -10

	return p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
}
