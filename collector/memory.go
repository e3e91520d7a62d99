package collector

import (
	"fmt"
	"path/filepath"

	"github.com/ftahirops/spikemon/model"
	"github.com/ftahirops/spikemon/util"
)

// MemoryCollector reports used RAM as (MemTotal - MemAvailable) / MemTotal.
type MemoryCollector struct {
	path string
}

// NewMemoryCollector creates a collector reading <procRoot>/meminfo.
func NewMemoryCollector(procRoot string) *MemoryCollector {
	return &MemoryCollector{path: filepath.Join(procRoot, "meminfo")}
}

func (m *MemoryCollector) Name() string { return "memory" }

func (m *MemoryCollector) Collect(snap *model.Snapshot) error {
	kv, err := util.ParseKeyValueFile(m.path)
	if err != nil {
		return fmt.Errorf("read %s: %w", m.path, err)
	}
	totalStr, ok := kv["MemTotal"]
	if !ok {
		return fmt.Errorf("missing MemTotal in %s", m.path)
	}
	availStr, ok := kv["MemAvailable"]
	if !ok {
		return fmt.Errorf("missing MemAvailable in %s", m.path)
	}
	total := util.ParseKB(totalStr)
	if total == 0 {
		snap.RAMPercent = 0
		return nil
	}
	used := util.Delta(util.ParseKB(availStr), total)
	snap.RAMPercent = float64(used) / float64(total) * 100
	return nil
}
