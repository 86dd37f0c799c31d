package report

import (
	"fmt"

	"github.com/sentinelmap/signaudit/internal/reconcile"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// SaveHistogram writes a PNG histogram of the finite match distances of
// a run to path. Returns an error when the result has no finite
// distances to bin.
func SaveHistogram(path string, res *reconcile.Result, bins int) error {
	distances := finiteDistances(res)
	if len(distances) == 0 {
		return fmt.Errorf("no finite distances to plot")
	}
	if bins <= 0 {
		bins = 20
	}

	p := plot.New()
	p.Title.Text = "Match Distance Distribution"
	p.X.Label.Text = "Distance (m)"
	p.Y.Label.Text = "Count"

	h, err := plotter.NewHist(plotter.Values(distances), bins)
	if err != nil {
		return fmt.Errorf("build histogram: %w", err)
	}
	p.Add(h)

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save histogram: %w", err)
	}
	return nil
}
