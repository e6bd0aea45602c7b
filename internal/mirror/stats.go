package mirror

import (
	"time"

	"github.com/shirou/gopsutil/v3/process"
)

// Stats is a resource snapshot of the live scrcpy process.
type Stats struct {
	PID        int32         `json:"pid"`
	Name       string        `json:"name,omitempty"`
	CPUPercent float64       `json:"cpuPercent"`
	MemoryMB   float64       `json:"memoryMB"`
	Threads    int32         `json:"threads,omitempty"`
	Uptime     time.Duration `json:"uptime"`
}

// ProcessStats samples the live subprocess. ok is false when nothing is
// running or the process has already gone.
func (c *Controller) ProcessStats() (Stats, bool) {
	c.mu.Lock()
	s := c.current
	c.mu.Unlock()
	if s == nil || s.exited() {
		return Stats{}, false
	}

	p, err := process.NewProcess(int32(s.proc.Pid()))
	if err != nil {
		return Stats{}, false
	}

	st := Stats{PID: p.Pid, Uptime: time.Since(s.startedAt).Truncate(time.Second)}
	if name, err := p.Name(); err == nil {
		st.Name = name
	}
	if cpu, err := p.CPUPercent(); err == nil {
		st.CPUPercent = cpu
	}
	if mem, err := p.MemoryInfo(); err == nil && mem != nil {
		st.MemoryMB = float64(mem.RSS) / 1024 / 1024
	}
	if n, err := p.NumThreads(); err == nil {
		st.Threads = n
	}
	if created, err := p.CreateTime(); err == nil {
		st.Uptime = time.Since(time.UnixMilli(created)).Truncate(time.Second)
	}
	return st, true
}
