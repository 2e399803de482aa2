// Command sweep runs one of the four sweep operations against the rig
// described by a JSON config, streaming rows to a data file.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/banshee-data/labsweep/internal/datafile"
	"github.com/banshee-data/labsweep/internal/drive"
	"github.com/banshee-data/labsweep/internal/fsutil"
	"github.com/banshee-data/labsweep/internal/instrument"
	"github.com/banshee-data/labsweep/internal/rigconfig"
	"github.com/banshee-data/labsweep/internal/sweep"
	"github.com/banshee-data/labsweep/internal/timeutil"
	"github.com/banshee-data/labsweep/internal/version"
)

var (
	configPath  = flag.String("config", "config/rig.json", "Path to the rig config JSON")
	devMode     = flag.Bool("dev", false, "Use simulated instruments instead of real hardware")
	showVersion = flag.Bool("version", false, "Print version and exit")

	mode      = flag.String("mode", "sweep", "Operation: sweep, mega, multi or multimega")
	out       = flag.String("out", "run.csv", "Output data file (relative to the config's data_dir)")
	scale     = flag.String("scale", "lin", "Curve spacing for single-axis sweeps: lin or log")
	traversal = flag.String("traversal", "standard", "Fast-axis traversal for mega mode: standard, updown, serpentine or split")

	axisSpec    = flag.String("axis", "", "Axis for sweep mode: device:variable:start:stop:rate:points[:name]")
	slowSpec    = flag.String("slow", "", "Slow axis for mega mode (same format as -axis)")
	fastSpec    = flag.String("fast", "", "Fast axis for mega mode (same format as -axis)")
	axesSpec    = flag.String("axes", "", "Semicolon-separated axes for multi mode")
	outerSpec   = flag.String("outer", "", "Semicolon-separated outer axes for multimega mode")
	innerSpec   = flag.String("inner", "", "Semicolon-separated inner axes for multimega mode")
	points      = flag.Int("points", 0, "Shared point count for multi mode")
	outerPoints = flag.Int("outer-points", 0, "Outer point count for multimega mode")
	innerPoints = flag.Int("inner-points", 0, "Inner point count for multimega mode")
)

// parseAxis parses "device:variable:start:stop:rate:points[:name]".
func parseAxis(reg *instrument.Registry, spec string) (sweep.Axis, error) {
	parts := strings.Split(spec, ":")
	if len(parts) != 6 && len(parts) != 7 {
		return sweep.Axis{}, fmt.Errorf("axis %q: want device:variable:start:stop:rate:points[:name]", spec)
	}
	entry, err := reg.Lookup(parts[0])
	if err != nil {
		return sweep.Axis{}, err
	}
	nums := make([]float64, 3)
	for i, p := range parts[2:5] {
		v, err := strconv.ParseFloat(p, 64)
		if err != nil {
			return sweep.Axis{}, fmt.Errorf("axis %q: invalid number %q: %w", spec, p, err)
		}
		nums[i] = v
	}
	n, err := strconv.Atoi(parts[5])
	if err != nil {
		return sweep.Axis{}, fmt.Errorf("axis %q: invalid point count %q: %w", spec, parts[5], err)
	}
	axis := sweep.Axis{
		Entry:    entry,
		Variable: parts[1],
		Start:    nums[0],
		Stop:     nums[1],
		Rate:     nums[2],
		Points:   n,
	}
	if len(parts) == 7 {
		axis.Name = parts[6]
	}
	return axis, nil
}

func parseAxes(reg *instrument.Registry, specs string) ([]sweep.Axis, error) {
	var axes []sweep.Axis
	for _, s := range strings.Split(specs, ";") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		axis, err := parseAxis(reg, s)
		if err != nil {
			return nil, err
		}
		axes = append(axes, axis)
	}
	if len(axes) == 0 {
		return nil, fmt.Errorf("no axes given")
	}
	return axes, nil
}

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}

	cfg, err := rigconfig.Load(*configPath)
	if err != nil {
		log.Fatalf("load rig config: %v", err)
	}

	clock := timeutil.RealClock{}
	var reg *instrument.Registry
	if *devMode {
		reg, err = cfg.SimDevices(clock)
	} else {
		reg, err = cfg.OpenDevices()
	}
	if err != nil {
		log.Fatalf("open devices: %v", err)
	}

	set, err := cfg.MeasurementSet(reg)
	if err != nil {
		log.Fatalf("build measurement set: %v", err)
	}

	engine := drive.New(cfg.DriveConfig(), clock)
	runner := sweep.NewRunner(engine, clock, cfg.SweepConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fs := fsutil.OSFileSystem{}
	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	outPath := filepath.Join(dataDir, *out)

	if err := run(ctx, reg, set, runner, fs, clock, outPath); err != nil {
		log.Fatalf("%s: %v", *mode, err)
	}
}

func run(ctx context.Context, reg *instrument.Registry, set *instrument.MeasurementSet, runner *sweep.Runner, fs fsutil.FileSystem, clock timeutil.Clock, outPath string) error {
	newSink := func(description string, axes []sweep.Axis, extra ...string) (*datafile.Writer, error) {
		columns := append(sweep.AxisLabels(axes), extra...)
		columns = append(columns, set.Names()...)
		sink, err := datafile.New(fs, clock, outPath, description, columns)
		if err != nil {
			return nil, err
		}
		log.Printf("writing to %s", sink.Path())
		return sink, nil
	}

	switch *mode {
	case "sweep":
		axis, err := parseAxis(reg, *axisSpec)
		if err != nil {
			return err
		}
		sink, err := newSink(fmt.Sprintf("sweep %s (%s)", axis.Describe(), *scale), []sweep.Axis{axis})
		if err != nil {
			return err
		}
		defer sink.Close()
		return runner.Sweep(ctx, axis, sweep.Scale(*scale), set, sink)

	case "mega":
		slow, err := parseAxis(reg, *slowSpec)
		if err != nil {
			return err
		}
		fast, err := parseAxis(reg, *fastSpec)
		if err != nil {
			return err
		}
		tv, err := sweep.ParseTraversal(*traversal)
		if err != nil {
			return err
		}
		sink, err := newSink(fmt.Sprintf("megasweep %s; slow %s; fast %s", tv, slow.Describe(), fast.Describe()),
			[]sweep.Axis{slow, fast})
		if err != nil {
			return err
		}
		defer sink.Close()
		return runner.Megasweep(ctx, slow, fast, tv, set, sink)

	case "multi":
		axes, err := parseAxes(reg, *axesSpec)
		if err != nil {
			return err
		}
		n := *points
		if n == 0 && len(axes) > 0 {
			n = axes[0].Points
		}
		sink, err := newSink(fmt.Sprintf("multisweep %d axes, %d points", len(axes), n), axes)
		if err != nil {
			return err
		}
		defer sink.Close()
		return runner.Multisweep(ctx, axes, n, set, sink)

	case "multimega":
		outer, err := parseAxes(reg, *outerSpec)
		if err != nil {
			return err
		}
		inner, err := parseAxes(reg, *innerSpec)
		if err != nil {
			return err
		}
		no, ni := *outerPoints, *innerPoints
		if no == 0 {
			no = outer[0].Points
		}
		if ni == 0 {
			ni = inner[0].Points
		}
		sink, err := newSink(fmt.Sprintf("multimegasweep %dx%d axes, %dx%d points", len(outer), len(inner), no, ni),
			append(append([]sweep.Axis(nil), outer...), inner...))
		if err != nil {
			return err
		}
		defer sink.Close()
		return runner.Multimegasweep(ctx, outer, inner, no, ni, set, sink)

	default:
		return fmt.Errorf("unknown mode %q", *mode)
	}
}
