package metrics

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"video-converter/internal/logging"
)

// StatsProvider interface for collecting stats
type StatsProvider interface {
	GetStats() Stats
}

// Stats holds the current statistics
type Stats struct {
	// HistoryByStatus is nil when history is disabled.
	HistoryByStatus map[string]int
	ReservedOutputs int
}

// Collector periodically collects and updates metrics
type Collector struct {
	statsProvider StatsProvider
	dbPath        string
	uploadDir     string
	interval      time.Duration
	stopChan      chan struct{}
}

// NewCollector creates a new metrics collector. dbPath and uploadDir may be
// empty to skip their size gauges.
func NewCollector(provider StatsProvider, dbPath, uploadDir string, interval time.Duration) *Collector {
	return &Collector{
		statsProvider: provider,
		dbPath:        dbPath,
		uploadDir:     uploadDir,
		interval:      interval,
		stopChan:      make(chan struct{}),
	}
}

// Start begins the metrics collection loop
func (c *Collector) Start() {
	go c.collectLoop()
}

// Stop stops the metrics collection
func (c *Collector) Stop() {
	close(c.stopChan)
}

func (c *Collector) collectLoop() {
	c.collect()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.collect()
		case <-c.stopChan:
			return
		}
	}
}

func (c *Collector) collect() {
	c.collectDBSize()
	c.collectUploadDirSize()

	if c.statsProvider == nil {
		return
	}

	stats := c.statsProvider.GetStats()
	for status, count := range stats.HistoryByStatus {
		HistoryConversions.WithLabelValues(status).Set(float64(count))
	}
	OutputNamesReserved.Set(float64(stats.ReservedOutputs))

	logging.Debug("Metrics collected: history=%v, reserved=%d", stats.HistoryByStatus, stats.ReservedOutputs)
}

func (c *Collector) collectDBSize() {
	if c.dbPath == "" {
		return
	}
	files := map[string]string{
		"main": c.dbPath,
		"wal":  c.dbPath + "-wal",
		"shm":  c.dbPath + "-shm",
	}
	for label, path := range files {
		if info, err := os.Stat(path); err == nil {
			DBSizeBytes.WithLabelValues(label).Set(float64(info.Size()))
		} else {
			DBSizeBytes.WithLabelValues(label).Set(0)
		}
	}
}

func (c *Collector) collectUploadDirSize() {
	if c.uploadDir == "" {
		return
	}
	size, err := dirSize(c.uploadDir)
	if err != nil {
		logging.Debug("Failed to measure upload directory: %v", err)
		return
	}
	UploadDirBytes.Set(float64(size))
}

func dirSize(root string) (int64, error) {
	var total int64
	err := filepath.WalkDir(root, func(_ string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.Type().IsRegular() {
			if info, err := d.Info(); err == nil {
				total += info.Size()
			}
		}
		return nil
	})
	return total, err
}
