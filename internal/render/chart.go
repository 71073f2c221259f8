package render

import (
	"fmt"
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/banshee-data/explore.replay/internal/coverage"
)

// CoverageChart writes an HTML page with one line per robot and one for
// the union of all robots: explored cells against tick.
func CoverageChart(w io.Writer, s coverage.Series, subtitle string) error {
	if len(s.Samples) == 0 {
		return ErrNoFrames
	}

	ticks := make([]string, len(s.Samples))
	for i, smp := range s.Samples {
		ticks[i] = strconv.Itoa(smp.Tick)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Exploration Coverage", Width: "1100px", Height: "600px"}),
		charts.WithTitleOpts(opts.Title{Title: "Explored cells per tick", Subtitle: subtitle}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "bottom"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Tick", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Cells", NameLocation: "middle", NameGap: 40}),
	)
	line.SetXAxis(ticks)

	for _, id := range s.Robots {
		line.AddSeries(fmt.Sprintf("Robot %d", id), lineData(s.Robot(id)))
	}
	line.AddSeries("Union", lineData(s.Union()),
		charts.WithLabelOpts(opts.Label{Show: opts.Bool(false)}),
	)

	page := components.NewPage()
	page.PageTitle = "Exploration Coverage"
	page.AddCharts(line)
	if err := page.Render(w); err != nil {
		return fmt.Errorf("failed to render coverage chart: %w", err)
	}
	return nil
}

func lineData(values []float64) []opts.LineData {
	out := make([]opts.LineData, len(values))
	for i, v := range values {
		out[i] = opts.LineData{Value: v}
	}
	return out
}
