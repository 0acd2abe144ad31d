package workers

import (
	"context"
	"log/slog"
	"os"
	"time"

	"chat-relay/contract"
	"chat-relay/runtime"

	"github.com/shirou/gopsutil/process"
)

// Ensure *TelemetryWorker implements the contract.Worker interface at
// compile time.
var _ contract.Worker = (*TelemetryWorker)(nil)

// TelemetryWorker periodically logs process health (CPU, RSS) together
// with registry occupancy. Reading counters off the registries is cheap
// and lock-scoped, so sampling never interferes with fan-out.
type TelemetryWorker struct {
	log      *slog.Logger
	registry *runtime.Registry
	rooms    *runtime.RoomTable
	presence *runtime.PresenceTracker
	interval time.Duration
}

func NewTelemetryWorker(log *slog.Logger, registry *runtime.Registry,
	rooms *runtime.RoomTable, presence *runtime.PresenceTracker,
	interval time.Duration) *TelemetryWorker {
	return &TelemetryWorker{
		log:      log,
		registry: registry,
		rooms:    rooms,
		presence: presence,
		interval: interval,
	}
}

func (w *TelemetryWorker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	p, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			rss, cpu, err := selfStats(p)
			if err != nil {
				w.log.Error("Failed to collect self stats", "err", err)
				continue
			}
			w.log.Info("Relay stats",
				"connections", w.registry.CountConnections(),
				"users", w.registry.CountUsers(),
				"rooms", w.rooms.CountRooms(),
				"online", w.presence.OnlineCount(),
				"cpu_percent", cpu,
				"ram_bytes", rss,
			)
		}
	}
}

// selfStats retrieves memory and CPU usage for the given process.
func selfStats(p *process.Process) (uint64, float64, error) {
	memInfo, err := p.MemoryInfo()
	if err != nil {
		return 0, 0, err
	}
	cpuPercent, err := p.CPUPercent()
	if err != nil {
		return 0, 0, err
	}
	return memInfo.RSS, cpuPercent, nil
}
