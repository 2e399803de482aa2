package report

import (
	"fmt"
	"image/color"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// palette holds distinct line colours, cycled when a file has more
// measured columns than entries.
var palette = []color.Color{
	color.RGBA{R: 31, G: 119, B: 180, A: 255},
	color.RGBA{R: 255, G: 127, B: 14, A: 255},
	color.RGBA{R: 44, G: 160, B: 44, A: 255},
	color.RGBA{R: 214, G: 39, B: 40, A: 255},
	color.RGBA{R: 148, G: 103, B: 189, A: 255},
	color.RGBA{R: 140, G: 86, B: 75, A: 255},
}

// RenderPNG renders the data file as a static line plot saved to path, one
// line per measured column against the named x column.
func RenderPNG(df *DataFile, xColumn, path string) error {
	xi, err := df.ColumnIndex(xColumn)
	if err != nil {
		return err
	}
	xs := df.Column(xi)

	p := plot.New()
	p.Title.Text = df.Description
	p.X.Label.Text = df.Columns[xi]
	p.Legend.Top = true

	for ci, name := range df.Columns {
		if ci == xi {
			continue
		}
		col := df.Column(ci)
		pts := make(plotter.XYs, len(col))
		for i := range col {
			pts[i].X = xs[i]
			pts[i].Y = col[i]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return fmt.Errorf("series %q: %w", name, err)
		}
		line.Width = vg.Points(1)
		line.Color = palette[ci%len(palette)]
		p.Add(line)
		p.Legend.Add(name, line)
	}

	if err := p.Save(10*vg.Inch, 6*vg.Inch, path); err != nil {
		return fmt.Errorf("save plot: %w", err)
	}
	return nil
}
