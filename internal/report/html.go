package report

import (
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// RenderHTML renders the data file as an interactive line chart, one series
// per measured column plotted against the named x column.
func RenderHTML(df *DataFile, xColumn string, w io.Writer) error {
	xi, err := df.ColumnIndex(xColumn)
	if err != nil {
		return err
	}

	xs := df.Column(xi)
	xAxis := make([]string, len(xs))
	for i, v := range xs {
		xAxis[i] = fmt.Sprintf("%g", v)
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: "labsweep",
			Width:     "1100px",
			Height:    "600px",
		}),
		charts.WithTitleOpts(opts.Title{
			Title:    df.Description,
			Subtitle: fmt.Sprintf("%s, %d points", df.Timestamp, len(df.Rows)),
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: df.Columns[xi]}),
	)
	line.SetXAxis(xAxis)

	for ci, name := range df.Columns {
		if ci == xi {
			continue
		}
		col := df.Column(ci)
		data := make([]opts.LineData, len(col))
		for i, v := range col {
			data[i] = opts.LineData{Value: v}
		}
		line.AddSeries(name, data)
	}

	return line.Render(w)
}
