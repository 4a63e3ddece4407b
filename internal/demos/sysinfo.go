package demos

import (
	"fmt"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/parley-dev/parley"
)

// sysinfo reports host statistics and refreshes them on demand. It
// also round-trips one eval to show where the client lives.
func sysinfo() error {
	if err := parley.SetEnv(parley.WithTitle("parley sysinfo")); err != nil {
		return gone(err)
	}
	tz, err := parley.EvalJS("Intl.DateTimeFormat().resolvedOptions().timeZone", nil)
	if err != nil {
		return gone(err)
	}
	if tz != nil {
		if err := parley.Text(fmt.Sprintf("client timezone: %v", tz)); err != nil {
			return gone(err)
		}
	}

	for {
		if err := reportHost(); err != nil {
			return gone(err)
		}
		if err := parley.Text("send anything to refresh, quit to leave"); err != nil {
			return gone(err)
		}
		ev, err := parley.NextClientEvent()
		if err != nil {
			return gone(err)
		}
		if s, _ := ev.Data.(string); s == "quit" {
			return gone(parley.Text("bye"))
		}
	}
}

// reportHost pushes one snapshot of host, memory, cpu and load.
func reportHost() error {
	if hi, err := host.Info(); err == nil {
		up := time.Duration(hi.Uptime) * time.Second
		if err := parley.Text(fmt.Sprintf("%s: %s %s (%s), up %s",
			hi.Hostname, hi.Platform, hi.PlatformVersion, hi.KernelArch, up)); err != nil {
			return err
		}
	}
	if vm, err := mem.VirtualMemory(); err == nil {
		if err := parley.Text(fmt.Sprintf("memory: %.1f%% of %s used",
			vm.UsedPercent, byteSize(vm.Total))); err != nil {
			return err
		}
	}
	if pct, err := cpu.Percent(0, false); err == nil && len(pct) > 0 {
		if err := parley.Text(fmt.Sprintf("cpu: %.1f%%", pct[0])); err != nil {
			return err
		}
	}
	// Load averages are not available everywhere; skip quietly.
	if avg, err := load.Avg(); err == nil {
		if err := parley.Text(fmt.Sprintf("load: %.2f %.2f %.2f",
			avg.Load1, avg.Load5, avg.Load15)); err != nil {
			return err
		}
	}
	return nil
}

func byteSize(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
