// Package telemetry measures extractions and records the results.
package telemetry

import (
	"runtime"
	"sync"
	"time"
)

// SampleInterval is how often heap usage is sampled during a measurement.
var SampleInterval = 2 * time.Millisecond

const bytesPerMiB = 1 << 20

// Measurement is the cost of one wrapped call.
type Measurement struct {
	Elapsed time.Duration
	// PeakBytes is the highest heap growth over the starting allocation seen
	// while the call ran.
	PeakBytes uint64
}

// Seconds returns the elapsed time in seconds.
func (m Measurement) Seconds() float64 {
	return m.Elapsed.Seconds()
}

// MiB returns the peak heap growth in mebibytes.
func (m Measurement) MiB() float64 {
	return float64(m.PeakBytes) / bytesPerMiB
}

// Measure runs fn while tracking wall-clock time and peak heap growth.
// Each call starts from a fresh baseline.
func Measure(fn func() error) (Measurement, error) {
	baseline := heapAlloc()
	s := &sampler{baseline: baseline, done: make(chan struct{})}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.run()
	}()

	start := time.Now()
	err := fn()
	elapsed := time.Since(start)

	close(s.done)
	wg.Wait()
	// Catch growth that happened between the last tick and return.
	s.observe()

	return Measurement{Elapsed: elapsed, PeakBytes: s.peak}, err
}

type sampler struct {
	baseline uint64
	peak     uint64
	done     chan struct{}
}

func (s *sampler) run() {
	ticker := time.NewTicker(SampleInterval)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.observe()
		}
	}
}

func (s *sampler) observe() {
	if cur := heapAlloc(); cur > s.baseline && cur-s.baseline > s.peak {
		s.peak = cur - s.baseline
	}
}

func heapAlloc() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}
