package sim

import (
	"image/color"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/spatial/r2"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/jemminiz/EZ-Template/pkg/odom"
)

// SavePlot draws the driven path and any waypoints to an image file.  The
// format follows the file extension (png, svg, pdf).
func SavePlot(file, title string, path []odom.Pose, waypoints []r2.Vec) error {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "x (in)"
	p.Y.Label.Text = "y (in)"
	p.Add(plotter.NewGrid())

	pts := make(plotter.XYs, 0, len(path))
	for _, pose := range path {
		pts = append(pts, plotter.XY{X: pose.X, Y: pose.Y})
	}
	if len(pts) > 0 {
		line, err := plotter.NewLine(pts)
		if err != nil {
			return errors.Wrap(err, "path line")
		}
		line.Width = vg.Points(1.5)
		line.Color = color.RGBA{R: 0xe0, G: 0x90, B: 0x00, A: 0xff}
		p.Add(line)
		p.Legend.Add("path", line)
	}

	if len(waypoints) > 0 {
		wps := make(plotter.XYs, 0, len(waypoints))
		for _, w := range waypoints {
			wps = append(wps, plotter.XY{X: w.X, Y: w.Y})
		}
		scatter, err := plotter.NewScatter(wps)
		if err != nil {
			return errors.Wrap(err, "waypoints")
		}
		scatter.Radius = vg.Points(3)
		p.Add(scatter)
		p.Legend.Add("waypoints", scatter)
	}

	if err := p.Save(6*vg.Inch, 6*vg.Inch, file); err != nil {
		return errors.Wrapf(err, "saving plot %s", file)
	}
	return nil
}
