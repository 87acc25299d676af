package runner

import (
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
)

// maxRecordableUs bounds recorded durations to one hour.
const maxRecordableUs = 3_600_000_000

// Stats summarizes the durations of executed tests.
type Stats struct {
	Count int64         `json:"count"`
	Min   time.Duration `json:"min"`
	Max   time.Duration `json:"max"`
	Mean  time.Duration `json:"mean"`
	P50   time.Duration `json:"p50"`
	P90   time.Duration `json:"p90"`
	P99   time.Duration `json:"p99"`
}

// durationRecorder collects test durations in a histogram with microsecond
// precision.
type durationRecorder struct {
	mu        sync.Mutex
	histogram *hdrhistogram.Histogram
}

func newDurationRecorder() *durationRecorder {
	return &durationRecorder{
		histogram: hdrhistogram.New(1, maxRecordableUs, 3),
	}
}

// Record adds one duration.
func (d *durationRecorder) Record(duration time.Duration) {
	us := duration.Microseconds()
	if us < 1 {
		us = 1
	}
	if us > maxRecordableUs {
		us = maxRecordableUs
	}

	d.mu.Lock()
	_ = d.histogram.RecordValue(us)
	d.mu.Unlock()
}

// Stats returns the current summary.
func (d *durationRecorder) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	h := d.histogram
	if h.TotalCount() == 0 {
		return Stats{}
	}

	us := func(v int64) time.Duration { return time.Duration(v) * time.Microsecond }
	return Stats{
		Count: h.TotalCount(),
		Min:   us(h.Min()),
		Max:   us(h.Max()),
		Mean:  time.Duration(h.Mean() * float64(time.Microsecond)),
		P50:   us(h.ValueAtQuantile(50)),
		P90:   us(h.ValueAtQuantile(90)),
		P99:   us(h.ValueAtQuantile(99)),
	}
}
