package status

import (
	"fmt"

	"github.com/shirou/gopsutil/v4/host"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
)

// HostInfo is a coarse view of the controller board's health.
type HostInfo struct {
	Hostname      string
	UptimeSeconds uint64
	Load1         float64
	MemUsedPct    float64
}

// ReadHost samples host statistics. Partial results are returned together
// with the first error encountered.
func ReadHost() (*HostInfo, error) {
	info := &HostInfo{}
	var firstErr error
	keep := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	h, err := host.Info()
	keep(err)
	if h != nil {
		info.Hostname = h.Hostname
		info.UptimeSeconds = h.Uptime
	}

	avg, err := load.Avg()
	keep(err)
	if avg != nil {
		info.Load1 = avg.Load1
	}

	vm, err := mem.VirtualMemory()
	keep(err)
	if vm != nil {
		info.MemUsedPct = vm.UsedPercent
	}

	if firstErr != nil {
		return info, fmt.Errorf("read host stats: %w", firstErr)
	}
	return info, nil
}
