// Package onewire reads DS18B20 probes through the Linux w1-therm sysfs
// interface. Reading w1_slave makes the kernel run a conversion, which takes
// up to 750ms, so reads run in the background and are collected later.
package onewire

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/sweeney/water-filter/internal/sensor"
)

// DefaultW1Path is where the w1 bus master exposes its slaves.
const DefaultW1Path = "/sys/bus/w1/devices"

// familyDS18B20 is the ROM family code prefix of DS18B20 device ids.
const familyDS18B20 = "28-"

// ErrBadCRC is returned when the kernel reports a CRC mismatch.
var ErrBadCRC = errors.New("w1: crc check failed")

// Probe is one DS18B20 on the bus. It implements sensor.DigitalProbe.
type Probe struct {
	path string

	mu      sync.Mutex
	busy    bool
	done    bool
	celsius float64
	err     error
}

// NewProbe returns a probe for device id under w1Path.
func NewProbe(w1Path, id string) *Probe {
	if w1Path == "" {
		w1Path = DefaultW1Path
	}
	return &Probe{path: filepath.Join(w1Path, id, "w1_slave")}
}

// Discover lists DS18B20 device ids under w1Path in sorted order.
func Discover(w1Path string) ([]string, error) {
	if w1Path == "" {
		w1Path = DefaultW1Path
	}
	entries, err := os.ReadDir(w1Path)
	if err != nil {
		return nil, fmt.Errorf("list w1 devices: %w", err)
	}
	var ids []string
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), familyDS18B20) {
			ids = append(ids, e.Name())
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// RequestConversion starts a background read. A request while one is
// already in flight is a no-op.
func (p *Probe) RequestConversion() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.busy {
		return nil
	}
	p.busy = true
	p.done = false
	go p.convert()
	return nil
}

func (p *Probe) convert() {
	c, err := readW1Slave(p.path)
	p.mu.Lock()
	p.celsius, p.err = c, err
	p.busy = false
	p.done = true
	p.mu.Unlock()
}

// ReadCelsius returns the result of the last requested conversion, or
// sensor.ErrConversionPending if it has not finished yet.
func (p *Probe) ReadCelsius() (float64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.done {
		return 0, sensor.ErrConversionPending
	}
	p.done = false
	return p.celsius, p.err
}

func readW1Slave(path string) (float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return 0, fmt.Errorf("%s: %w", path, sensor.ErrSensorDisconnected)
		}
		return 0, fmt.Errorf("read %s: %w", path, err)
	}
	return parseW1Slave(string(data))
}

// parseW1Slave parses the two-line w1_slave format:
//
//	72 01 4b 46 7f ff 0e 10 57 : crc=57 YES
//	72 01 4b 46 7f ff 0e 10 57 t=23125
func parseW1Slave(s string) (float64, error) {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) < 2 {
		return 0, fmt.Errorf("w1_slave: short read %q", s)
	}
	if !strings.HasSuffix(strings.TrimSpace(lines[0]), "YES") {
		return 0, ErrBadCRC
	}
	i := strings.Index(lines[1], "t=")
	if i < 0 {
		return 0, fmt.Errorf("w1_slave: no temperature in %q", lines[1])
	}
	milli, err := strconv.Atoi(strings.TrimSpace(lines[1][i+2:]))
	if err != nil {
		return 0, fmt.Errorf("w1_slave: %w", err)
	}
	return float64(milli) / 1000, nil
}
