package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/shirou/gopsutil/process"

	"livepoll/contract"
)

// PresenceMonitor periodically reports how many users are connected,
// along with the process's own memory and CPU figures. Logging only;
// it touches the registry exclusively through its thread-safe reads.
type PresenceMonitor struct {
	log      *slog.Logger
	registry contract.IRegistry
	interval time.Duration
}

func NewPresenceMonitor(log *slog.Logger, registry contract.IRegistry, interval time.Duration) *PresenceMonitor {
	return &PresenceMonitor{log: log, registry: registry, interval: interval}
}

func (w *PresenceMonitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			w.log.Debug("Context done, stopping presence monitor")
			return nil
		case <-ticker.C:
			rss, cpu := selfStats(p)
			w.log.Info("Presence report",
				"connected", w.registry.Count(),
				"ram_bytes", rss,
				"cpu_percent", cpu)
		}
	}
}

func selfStats(p *process.Process) (uint64, float64) {
	var rss uint64
	if memInfo, err := p.MemoryInfo(); err == nil {
		rss = memInfo.RSS
	}
	cpu, _ := p.CPUPercent()
	return rss, cpu
}
