package ffmpeg

import (
	"context"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v4/process"
)

// ProcessStats holds peak resource usage observed for an FFmpeg process.
type ProcessStats struct {
	PID            int     `json:"pid"`
	PeakCPUPercent float64 `json:"peak_cpu_percent"`
	PeakRSSBytes   uint64  `json:"peak_rss_bytes"`
	Samples        int     `json:"samples"`
}

// ProcessMonitor samples CPU and memory usage of a running process at a
// fixed interval and records the observed peaks.
type ProcessMonitor struct {
	pid      int
	interval time.Duration

	mu    sync.Mutex
	stats ProcessStats

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewProcessMonitor creates a monitor for the given PID.
func NewProcessMonitor(pid int) *ProcessMonitor {
	return &ProcessMonitor{
		pid:      pid,
		interval: time.Second,
		stats:    ProcessStats{PID: pid},
	}
}

// Start begins sampling in the background.
func (pm *ProcessMonitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	pm.cancel = cancel

	pm.wg.Add(1)
	go pm.loop(ctx)
}

// Stop ends sampling and returns the collected stats.
func (pm *ProcessMonitor) Stop() ProcessStats {
	if pm.cancel != nil {
		pm.cancel()
	}
	pm.wg.Wait()

	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.stats
}

func (pm *ProcessMonitor) loop(ctx context.Context) {
	defer pm.wg.Done()

	proc, err := process.NewProcessWithContext(ctx, int32(pm.pid))
	if err != nil {
		return
	}

	ticker := time.NewTicker(pm.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			pm.sample(ctx, proc)
		}
	}
}

func (pm *ProcessMonitor) sample(ctx context.Context, proc *process.Process) {
	cpu, cpuErr := proc.CPUPercentWithContext(ctx)
	mem, memErr := proc.MemoryInfoWithContext(ctx)

	pm.mu.Lock()
	defer pm.mu.Unlock()

	if cpuErr == nil && cpu > pm.stats.PeakCPUPercent {
		pm.stats.PeakCPUPercent = cpu
	}
	if memErr == nil && mem != nil && mem.RSS > pm.stats.PeakRSSBytes {
		pm.stats.PeakRSSBytes = mem.RSS
	}
	if cpuErr == nil || memErr == nil {
		pm.stats.Samples++
	}
}
