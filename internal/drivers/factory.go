package drivers

import (
	"fmt"

	"github.com/gotmc/prologix"
	"go.bug.st/serial"
)

// OpenSerial opens a real serial port as a Transport. This is the only
// place go.bug.st/serial appears; everything above works against the
// Transport interface.
func OpenSerial(path string, baud int) (Transport, error) {
	if baud == 0 {
		baud = 9600
	}
	port, err := serial.Open(path, &serial.Mode{BaudRate: baud})
	if err != nil {
		return nil, fmt.Errorf("open serial port %s: %w", path, err)
	}
	return port, nil
}

// OpenSCPISerial opens a serial port and wraps it as a table-driven SCPI
// device.
func OpenSCPISerial(name, path string, baud int, vars map[string]VariableSpec) (*SCPIDevice, error) {
	tr, err := OpenSerial(path, baud)
	if err != nil {
		return nil, err
	}
	return NewSCPIDevice(name, tr, vars), nil
}

// OpenIPS120 opens the Prologix controller's serial port and addresses the
// magnet PSU at the given GPIB address. This is the only place the
// prologix package appears.
func OpenIPS120(name, path string, baud, gpibAddress int) (*IPS120, error) {
	tr, err := OpenSerial(path, baud)
	if err != nil {
		return nil, err
	}
	gpib, err := prologix.NewController(tr, gpibAddress, false)
	if err != nil {
		tr.Close()
		return nil, fmt.Errorf("open GPIB controller for %s: %w", name, err)
	}
	// C3 puts the PSU under remote control with the front panel unlocked.
	if err := gpib.Command("$C3"); err != nil {
		tr.Close()
		return nil, fmt.Errorf("set %s to remote control: %w", name, err)
	}
	return NewIPS120(name, gpib), nil
}

// OpenMercury opens a serial port and wraps it as a MercuryiPS device with
// the default axis groups.
func OpenMercury(name, path string, baud int) (*Mercury, error) {
	tr, err := OpenSerial(path, baud)
	if err != nil {
		return nil, err
	}
	return NewMercury(name, tr, nil), nil
}
