package profiler

import (
	"log"
	"runtime"
	"time"

	"github.com/Carmen-Shannon/oxy-occlusion/engine/scene"
)

// Report is one interval's worth of statistics.
type Report struct {
	FPS         float64
	HeapMB      float64
	AllocRateMB float64
	GCCount     uint32
	LastPauseUs uint64
	MaxPauseUs  uint64
	SysMB       float64

	// Frame totals over the interval, fed by Record.
	Drawn           int
	Discarded       int
	Hidden          int
	IdentityRenders int
	// ReuseRatio is the share of frames in the interval that re-rendered no identity map.
	ReuseRatio float64
}

// Profiler tracks frame rate, memory and occlusion statistics for performance monitoring.
// Outputs stats to the log at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	recorded    int
	reused      int
	frameTotals scene.FrameStats
	last        Report
	now         func() time.Time
}

// NewProfiler creates a new Profiler with default settings.
// Update interval defaults to 1 second.
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler() *Profiler {
	return NewProfilerWithInterval(time.Second)
}

// NewProfilerWithInterval creates a Profiler reporting every interval.
//
// Parameters:
//   - interval: how often stats are logged, at least one millisecond
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfilerWithInterval(interval time.Duration) *Profiler {
	p := &Profiler{
		updateInterval: max(interval, time.Millisecond),
		now:            time.Now,
	}
	p.lastTime = p.now()
	return p
}

// Record adds a rendered frame's scene statistics to the current interval.
//
// Parameters:
//   - stats: the statistics returned by Scene.Stats after Render
func (p *Profiler) Record(stats scene.FrameStats) {
	p.recorded++
	if stats.IdentityRenders == 0 {
		p.reused++
	}
	p.frameTotals.Drawn += stats.Drawn
	p.frameTotals.Discarded += stats.Discarded
	p.frameTotals.Hidden += stats.Hidden
	p.frameTotals.IdentityRenders += stats.IdentityRenders
}

// Last returns the most recently logged report.
func (p *Profiler) Last() Report {
	return p.last
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
// Statistics include: FPS, heap usage, allocation rate, GC count/pause times, total memory
// and the occlusion totals handed to Record.
//
// Returns:
//   - bool: true if stats were logged this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	runtime.ReadMemStats(&p.memStats)
	r := Report{
		FPS:             float64(p.frameCount) / elapsed.Seconds(),
		HeapMB:          float64(p.memStats.Alloc) / 1024 / 1024,
		SysMB:           float64(p.memStats.Sys) / 1024 / 1024,
		AllocRateMB:     float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / 1024 / 1024 / elapsed.Seconds(),
		GCCount:         p.memStats.NumGC,
		Drawn:           p.frameTotals.Drawn,
		Discarded:       p.frameTotals.Discarded,
		Hidden:          p.frameTotals.Hidden,
		IdentityRenders: p.frameTotals.IdentityRenders,
	}
	if p.recorded > 0 {
		r.ReuseRatio = float64(p.reused) / float64(p.recorded)
	}

	if gcCount := r.GCCount; gcCount > 0 {
		// PauseNs is a circular buffer of last 256 GC pauses
		r.LastPauseUs = p.memStats.PauseNs[(gcCount-1)%256] / 1000
		startIdx := p.lastGCCount
		if gcCount-startIdx > 256 {
			startIdx = gcCount - 256
		}
		for i := startIdx; i < gcCount; i++ {
			r.MaxPauseUs = max(r.MaxPauseUs, p.memStats.PauseNs[i%256]/1000)
		}
	}

	log.Printf("[Profiler] FPS: %.2f | Heap: %.2f MB | Alloc Rate: %.2f MB/s | GC: %d (last: %d µs, max: %d µs) | Sys: %.2f MB | Drawn: %d | Discarded: %d | Identity renders: %d (reuse %.0f%%)",
		r.FPS, r.HeapMB, r.AllocRateMB, r.GCCount, r.LastPauseUs, r.MaxPauseUs, r.SysMB,
		r.Drawn, r.Discarded, r.IdentityRenders, r.ReuseRatio*100)

	p.last = r
	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = r.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc
	p.recorded, p.reused = 0, 0
	p.frameTotals = scene.FrameStats{}
	return true
}
