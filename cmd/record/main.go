// Command record samples the rig's measurement set at a fixed cadence,
// either for a bounded number of points or until a stop condition on one
// channel is met.
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
	"time"

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

	out       = flag.String("out", "record.csv", "Output data file (relative to the config's data_dir)")
	interval  = flag.Duration("interval", time.Second, "Sampling interval")
	points    = flag.Int("points", 0, "Number of points to record (0 with -until means until the condition)")
	until     = flag.String("until", "", "Stop condition, e.g. 'temperature<4.2' (operators >, <, ==)")
	maxPoints = flag.Int("max-points", 0, "Safety bound for -until (0 uses the configured default)")
)

// parseUntil splits "channel<value" into its three parts.
func parseUntil(s string) (channel string, op sweep.CompareOp, value float64, err error) {
	for _, candidate := range []string{"==", ">", "<"} {
		if i := strings.Index(s, candidate); i > 0 {
			channel = strings.TrimSpace(s[:i])
			op, err = sweep.ParseCompareOp(candidate)
			if err != nil {
				return "", "", 0, err
			}
			value, err = strconv.ParseFloat(strings.TrimSpace(s[i+len(candidate):]), 64)
			if err != nil {
				return "", "", 0, fmt.Errorf("invalid threshold in %q: %w", s, err)
			}
			return channel, op, value, nil
		}
	}
	return "", "", 0, fmt.Errorf("invalid stop condition %q: want channel<value, channel>value or channel==value", s)
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

	dataDir := cfg.DataDir
	if dataDir == "" {
		dataDir = "."
	}
	columns := append([]string{"time_s"}, set.Names()...)

	var description string
	if *until != "" {
		description = fmt.Sprintf("record every %s until %s", *interval, *until)
	} else {
		description = fmt.Sprintf("record %d points every %s", *points, *interval)
	}

	fs := fsutil.OSFileSystem{}
	sink, err := datafile.New(fs, clock, filepath.Join(dataDir, *out), description, columns)
	if err != nil {
		log.Fatalf("create data file: %v", err)
	}
	defer sink.Close()
	log.Printf("writing to %s", sink.Path())

	if *until != "" {
		channel, op, value, err := parseUntil(*until)
		if err != nil {
			log.Fatalf("%v", err)
		}
		if err := runner.RecordUntil(ctx, set, *interval, channel, op, value, *maxPoints, sink); err != nil {
			log.Fatalf("record until: %v", err)
		}
		return
	}
	if *points < 1 {
		log.Fatalf("need -points or -until")
	}
	if err := runner.Record(ctx, set, *interval, *points, sink); err != nil {
		log.Fatalf("record: %v", err)
	}
}
