// Command waitfor blocks until a device variable has stayed within a
// threshold band of a setpoint for a contiguous minimum duration.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/banshee-data/labsweep/internal/drive"
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

	device    = flag.String("device", "", "Device name from the rig config")
	variable  = flag.String("var", "", "Variable to watch")
	setpoint  = flag.Float64("setpoint", 0, "Value the variable must stay near")
	threshold = flag.Float64("threshold", 0.01, "Allowed band around the setpoint")
	tmin      = flag.Duration("tmin", time.Minute, "Contiguous in-band duration required")
)

func main() {
	flag.Parse()
	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if *device == "" || *variable == "" {
		log.Fatalf("need -device and -var")
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
	entry, err := reg.Lookup(*device)
	if err != nil {
		log.Fatalf("%v", err)
	}

	engine := drive.New(cfg.DriveConfig(), clock)
	runner := sweep.NewRunner(engine, clock, cfg.SweepConfig())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runner.WaitFor(ctx, entry, *variable, *setpoint, *threshold, *tmin); err != nil {
		log.Fatalf("waitfor: %v", err)
	}
	log.Printf("%s.%s stable at %g +/- %g for %s", *device, *variable, *setpoint, *threshold, *tmin)
}
