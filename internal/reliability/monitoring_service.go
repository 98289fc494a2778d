package reliability

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/mem"
)

// AlertLevel indicates alert severity.
type AlertLevel string

const (
	AlertInfo     AlertLevel = "INFO"
	AlertWarning  AlertLevel = "WARNING"
	AlertCritical AlertLevel = "CRITICAL"
)

// Alert represents a monitoring alert.
type Alert struct {
	Level     AlertLevel `json:"level"`
	Component string     `json:"component"`
	Message   string     `json:"message"`
	Timestamp time.Time  `json:"timestamp"`
}

// SystemStats is the snapshot served by the system stats endpoint.
type SystemStats struct {
	Status            string             `json:"status"`
	UptimeSeconds     int64              `json:"uptime_seconds"`
	Goroutines        int                `json:"goroutines"`
	CPUUsagePercent   float64            `json:"cpu_usage_percent"`
	MemoryUsedPercent float64            `json:"memory_used_percent"`
	MemoryUsedMB      float64            `json:"memory_used_mb"`
	DiskUsedPercent   float64            `json:"disk_used_percent"`
	DiskFreeGB        float64            `json:"disk_free_gb"`
	Databases         []*DatabaseMetrics `json:"databases"`
	LastDailyBackup   string             `json:"last_daily_backup,omitempty"`
	LastWeeklyBackup  string             `json:"last_weekly_backup,omitempty"`
	CollectedAt       time.Time          `json:"collected_at"`
}

// Disk space thresholds for the alert ladder, in GB free.
const (
	diskCriticalGB = 0.5
	diskSevereGB   = 5
	diskWarningGB  = 10
)

// walAlertSizeMB is the WAL size past which a checkpoint is overdue.
const walAlertSizeMB = 100

// SystemMonitor collects host and database health for the stats
// endpoint and the maintenance alert sweep.
type SystemMonitor struct {
	health    map[string]*DatabaseHealthService
	dataDir   string
	backupDir string
	startedAt time.Time
	log       zerolog.Logger
}

// NewSystemMonitor creates a monitor over the given health services.
func NewSystemMonitor(health map[string]*DatabaseHealthService, dataDir, backupDir string, log zerolog.Logger) *SystemMonitor {
	return &SystemMonitor{
		health:    health,
		dataDir:   dataDir,
		backupDir: backupDir,
		startedAt: time.Now(),
		log:       log.With().Str("service", "monitor").Logger(),
	}
}

// Stats gathers a full system snapshot. Collection errors degrade the
// snapshot rather than failing it, so the endpoint stays up.
func (m *SystemMonitor) Stats() *SystemStats {
	stats := &SystemStats{
		Status:        "healthy",
		UptimeSeconds: int64(time.Since(m.startedAt).Seconds()),
		Goroutines:    runtime.NumGoroutine(),
		CollectedAt:   time.Now().UTC(),
	}

	// Short sample window so the endpoint does not block.
	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		stats.CPUUsagePercent = cpuPercent[0]
	} else if err != nil {
		m.log.Warn().Err(err).Msg("Failed to sample CPU usage")
	}

	if memStat, err := mem.VirtualMemory(); err == nil {
		stats.MemoryUsedPercent = memStat.UsedPercent
		stats.MemoryUsedMB = float64(memStat.Used) / 1024 / 1024
	} else {
		m.log.Warn().Err(err).Msg("Failed to read memory usage")
	}

	if usage, err := disk.Usage(m.dataDir); err == nil {
		stats.DiskUsedPercent = usage.UsedPercent
		stats.DiskFreeGB = float64(usage.Free) / 1024 / 1024 / 1024
	} else {
		m.log.Warn().Err(err).Msg("Failed to read disk usage")
	}

	for _, name := range m.sortedNames() {
		metrics, err := m.health[name].Metrics()
		if err != nil {
			m.log.Warn().Err(err).Str("database", name).Msg("Failed to collect database metrics")
			continue
		}
		if !metrics.IntegrityOK {
			stats.Status = "degraded"
		}
		stats.Databases = append(stats.Databases, metrics)
	}

	stats.LastDailyBackup = m.newestBackup("daily")
	stats.LastWeeklyBackup = m.newestBackup("weekly")

	return stats
}

// CheckAlerts evaluates the alert ladder against live readings. The
// returned slice feeds the maintenance job, which halts on CRITICAL.
func (m *SystemMonitor) CheckAlerts() []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if usage, err := disk.Usage(m.dataDir); err == nil {
		freeGB := float64(usage.Free) / 1024 / 1024 / 1024
		switch {
		case freeGB < diskCriticalGB:
			alerts = append(alerts, Alert{AlertCritical, "disk", fmt.Sprintf("only %.2fGB free, operations will fail", freeGB), now})
		case freeGB < diskSevereGB:
			alerts = append(alerts, Alert{AlertWarning, "disk", fmt.Sprintf("only %.1fGB free, cleanup needed soon", freeGB), now})
		case freeGB < diskWarningGB:
			alerts = append(alerts, Alert{AlertInfo, "disk", fmt.Sprintf("%.1fGB free, monitor usage", freeGB), now})
		}
	}

	for _, name := range m.sortedNames() {
		metrics, err := m.health[name].Metrics()
		if err != nil {
			continue
		}
		if !metrics.IntegrityOK {
			alerts = append(alerts, Alert{AlertCritical, name, "integrity check failed", now})
		}
		if metrics.WALSizeMB > walAlertSizeMB {
			alerts = append(alerts, Alert{AlertWarning, name, fmt.Sprintf("WAL is %.1fMB, checkpoint overdue", metrics.WALSizeMB), now})
		}
	}

	if newest := m.newestBackup("daily"); newest == "" {
		alerts = append(alerts, Alert{AlertWarning, "backup", "no daily backups found", now})
	}

	for _, alert := range alerts {
		event := m.log.Info()
		switch alert.Level {
		case AlertCritical:
			event = m.log.Error()
		case AlertWarning:
			event = m.log.Warn()
		}
		event.Str("alert_component", alert.Component).Msg(alert.Message)
	}

	return alerts
}

// Helper functions

func (m *SystemMonitor) sortedNames() []string {
	names := make([]string, 0, len(m.health))
	for name := range m.health {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// newestBackup returns the name of the most recent backup directory in
// a tier, or empty when the tier has none. Directory names sort
// chronologically in both tiers.
func (m *SystemMonitor) newestBackup(tier string) string {
	entries, err := os.ReadDir(filepath.Join(m.backupDir, tier))
	if err != nil {
		return ""
	}

	newest := ""
	for _, entry := range entries {
		if entry.IsDir() && entry.Name() > newest {
			newest = entry.Name()
		}
	}
	return newest
}
