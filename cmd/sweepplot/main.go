// Command sweepplot renders a finished sweep data file as an interactive
// HTML chart and/or a static PNG plot.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/banshee-data/labsweep/internal/fsutil"
	"github.com/banshee-data/labsweep/internal/report"
	"github.com/banshee-data/labsweep/internal/version"
)

var (
	in          = flag.String("in", "", "Data file to plot")
	htmlOut     = flag.String("html", "", "Write an interactive HTML chart to this path")
	pngOut      = flag.String("png", "", "Write a static PNG plot to this path")
	xColumn     = flag.String("x", "", "Column to use as the x axis (default: first column)")
	showVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *in == "" {
		log.Fatalf("need -in")
	}
	if *htmlOut == "" && *pngOut == "" {
		log.Fatalf("need -html and/or -png")
	}

	df, err := report.ParseFile(fsutil.OSFileSystem{}, *in)
	if err != nil {
		log.Fatalf("parse %s: %v", *in, err)
	}
	log.Printf("%s: %d rows, columns %v", *in, len(df.Rows), df.Columns)

	if *htmlOut != "" {
		f, err := os.Create(*htmlOut)
		if err != nil {
			log.Fatalf("create %s: %v", *htmlOut, err)
		}
		if err := report.RenderHTML(df, *xColumn, f); err != nil {
			f.Close()
			log.Fatalf("render HTML: %v", err)
		}
		if err := f.Close(); err != nil {
			log.Fatalf("close %s: %v", *htmlOut, err)
		}
		log.Printf("wrote %s", *htmlOut)
	}

	if *pngOut != "" {
		if err := report.RenderPNG(df, *xColumn, *pngOut); err != nil {
			log.Fatalf("render PNG: %v", err)
		}
		log.Printf("wrote %s", *pngOut)
	}
}
