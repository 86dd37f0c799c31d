package report

import (
	"fmt"
	"io"
	"math"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/sentinelmap/signaudit/internal/geo"
	"github.com/sentinelmap/signaudit/internal/reconcile"
)

// RenderScatter writes an HTML scatter chart of a run to w. Longitude is
// the X axis and latitude the Y axis, one series per classification.
func RenderScatter(w io.Writer, res *reconcile.Result, title string) error {
	confirmed := make([]opts.ScatterData, 0, len(res.Confirmed))
	for _, m := range res.Confirmed {
		if pt, ok := scatterPoint(m.Detection, m.DistanceMeters); ok {
			confirmed = append(confirmed, pt)
		}
	}
	novel := make([]opts.ScatterData, 0, len(res.Novel))
	for _, m := range res.Novel {
		if pt, ok := scatterPoint(m.Detection, m.DistanceMeters); ok {
			novel = append(novel, pt)
		}
	}
	absent := make([]opts.ScatterData, 0, len(res.Absent))
	for _, m := range res.Absent {
		if pt, ok := scatterPoint(m.GroundTruth, m.DistanceMeters); ok {
			absent = append(absent, pt)
		}
	}

	c, n, a := res.Counts()
	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: title, Theme: "dark", Width: "900px", Height: "900px"}),
		charts.WithTitleOpts(opts.Title{Title: title, Subtitle: fmt.Sprintf("confirmed=%d novel=%d absent=%d", c, n, a)}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "Longitude", NameLocation: "middle", NameGap: 25, Scale: opts.Bool(true)}),
		charts.WithYAxisOpts(opts.YAxis{Name: "Latitude", NameLocation: "middle", NameGap: 30, Scale: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true)}),
	)
	scatter.AddSeries("confirmed", confirmed,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#35b779"}))
	scatter.AddSeries("novel", novel,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#fde725"}))
	scatter.AddSeries("absent", absent,
		charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 8}),
		charts.WithItemStyleOpts(opts.ItemStyle{Color: "#d62728"}))

	if err := scatter.Render(w); err != nil {
		return fmt.Errorf("render scatter: %w", err)
	}
	return nil
}

func scatterPoint(c *geo.Coordinate, distanceMeters float64) (opts.ScatterData, bool) {
	if c == nil {
		return opts.ScatterData{}, false
	}
	d := distanceMeters
	if math.IsInf(d, 0) || math.IsNaN(d) {
		d = -1
	}
	return opts.ScatterData{Value: []interface{}{c.Lon, c.Lat, d}}, true
}
