package shopify

import (
	"fmt"
	"os"

	"github.com/shirou/gopsutil/v3/process"
)

// ResourceGuard tells the pager to stop before the process runs out of room.
type ResourceGuard interface {
	Exceeded() (bool, string)
}

// MemoryGuard trips when the resident set size of this process passes a ceiling.
type MemoryGuard struct {
	limit uint64
	proc  *process.Process
}

// NewMemoryGuard returns a guard for limitMB megabytes, or nil when limitMB <= 0.
func NewMemoryGuard(limitMB int) (*MemoryGuard, error) {
	if limitMB <= 0 {
		return nil, nil
	}
	proc, err := process.NewProcess(int32(os.Getpid()))
	if err != nil {
		return nil, fmt.Errorf("inspect process: %w", err)
	}
	return &MemoryGuard{limit: uint64(limitMB) << 20, proc: proc}, nil
}

// Exceeded reports whether RSS is above the ceiling. If memory cannot be
// read the guard stays open.
func (g *MemoryGuard) Exceeded() (bool, string) {
	if g == nil {
		return false, ""
	}
	info, err := g.proc.MemoryInfo()
	if err != nil || info == nil {
		return false, ""
	}
	if info.RSS > g.limit {
		return true, fmt.Sprintf("resident memory %d MB over %d MB ceiling", info.RSS>>20, g.limit>>20)
	}
	return false, ""
}
