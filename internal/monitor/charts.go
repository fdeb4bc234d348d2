package monitor

import (
	"fmt"
	"image/color"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// leadValue returns the distance of a found lead, or nil so the chart shows
// a gap.
func leadValue(l leadPoint) any {
	if !l.status {
		return nil
	}
	return l.dRel
}

type leadPoint struct {
	status bool
	dRel   float64
}

type series struct {
	cycles []uint64
	one    []leadPoint
	two    []leadPoint
}

func seriesFromSamples(samples []Sample) series {
	var s series
	for _, smp := range samples {
		s.cycles = append(s.cycles, smp.Cycle)
		s.one = append(s.one, leadPoint{smp.LeadOne.Status, smp.LeadOne.DRel})
		s.two = append(s.two, leadPoint{smp.LeadTwo.Status, smp.LeadTwo.DRel})
	}
	return s
}

// renderLeadChart writes an HTML line chart of lead distance per cycle.
func renderLeadChart(w io.Writer, title string, s series) error {
	x := make([]string, len(s.cycles))
	for i, c := range s.cycles {
		x[i] = strconv.FormatUint(c, 10)
	}
	toData := func(pts []leadPoint) []opts.LineData {
		out := make([]opts.LineData, len(pts))
		for i, p := range pts {
			out[i] = opts.LineData{Value: leadValue(p)}
		}
		return out
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Lead distance", Width: "100%", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Lead distance", Subtitle: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "cycle", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "dRel (m)", Min: 0}),
	)
	line.SetXAxis(x).
		AddSeries("lead_one", toData(s.one)).
		AddSeries("lead_two", toData(s.two))
	return line.Render(w)
}

// renderLeadPlot writes a PNG plot of lead distance per cycle.
func renderLeadPlot(w io.Writer, title string, s series) error {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Lead distance %s", title)
	p.X.Label.Text = "Cycle"
	p.Y.Label.Text = "Distance (m)"
	p.Y.Min = 0

	add := func(name string, pts []leadPoint, c color.Color) error {
		xys := make(plotter.XYs, 0, len(pts))
		for i, pt := range pts {
			if pt.status {
				xys = append(xys, plotter.XY{X: float64(s.cycles[i]), Y: pt.dRel})
			}
		}
		if len(xys) == 0 {
			return nil
		}
		sc, err := plotter.NewScatter(xys)
		if err != nil {
			return fmt.Errorf("%s scatter: %w", name, err)
		}
		sc.GlyphStyle.Color = c
		sc.GlyphStyle.Radius = vg.Points(1.5)
		p.Add(sc)
		p.Legend.Add(name, sc)
		return nil
	}
	if err := add("lead_one", s.one, color.RGBA{R: 31, G: 119, B: 180, A: 255}); err != nil {
		return err
	}
	if err := add("lead_two", s.two, color.RGBA{R: 255, G: 127, B: 14, A: 255}); err != nil {
		return err
	}

	wt, err := p.WriterTo(10*vg.Inch, 4*vg.Inch, "png")
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}
