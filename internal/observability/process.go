package observability

import (
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/process"
)

// ProcessStats: снимок ресурсов процесса
type ProcessStats struct {
	Uptime     time.Duration
	RSS        uint64
	HeapAlloc  uint64
	CPUPercent float64
	Goroutines int
}

// String форматирует снимок для логов
func (s ProcessStats) String() string {
	return fmt.Sprintf("uptime=%s rss=%s heap=%s cpu=%.1f%% goroutines=%d",
		s.Uptime.Truncate(time.Second), humanize.Bytes(s.RSS), humanize.Bytes(s.HeapAlloc),
		s.CPUPercent, s.Goroutines)
}

// ProcessMonitor собирает статистику текущего процесса через gopsutil
type ProcessMonitor struct {
	start time.Time
	proc  *process.Process
}

// NewProcessMonitor создаёт монитор для текущего процесса
func NewProcessMonitor() (*ProcessMonitor, error) {
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, err
	}
	return &ProcessMonitor{start: time.Now(), proc: proc}, nil
}

// Snapshot возвращает текущую статистику процесса
func (pm *ProcessMonitor) Snapshot() ProcessStats {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	stats := ProcessStats{
		Uptime:     time.Since(pm.start),
		HeapAlloc:  ms.HeapAlloc,
		Goroutines: runtime.NumGoroutine(),
	}
	if mem, err := pm.proc.MemoryInfo(); err == nil {
		stats.RSS = mem.RSS
	}

	// Получаем процент использования CPU за последний интервал
	if pct, err := pm.proc.CPUPercent(); err == nil {
		stats.CPUPercent = pct
	} else if pcts, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(pcts) > 0 {
		// Если не удалось получить метрику процесса, берём системную
		stats.CPUPercent = pcts[0]
	}
	return stats
}

// Register публикует RSS и CPU процесса как Prometheus GaugeFunc
func (pm *ProcessMonitor) Register(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	rss := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "worldd",
		Name:      "process_rss_bytes",
		Help:      "Resident set size процесса.",
	}, func() float64 {
		mem, err := pm.proc.MemoryInfo()
		if err != nil {
			return 0
		}
		return float64(mem.RSS)
	})
	cpuPct := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "worldd",
		Name:      "process_cpu_percent",
		Help:      "Загрузка CPU процессом.",
	}, func() float64 {
		pct, err := pm.proc.CPUPercent()
		if err != nil {
			return 0
		}
		return pct
	})
	if err := reg.Register(rss); err != nil {
		return err
	}
	return reg.Register(cpuPct)
}
