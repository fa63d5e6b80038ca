package vad

import (
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func testConfig() Config {
	return Config{
		Interval:        50 * time.Millisecond,
		Threshold:       0.02,
		MinSoundSamples: 3,
		SilenceWindow:   200 * time.Millisecond, // 4 quiet readings
	}
}

func feed(s Sampler, levels ...float64) (firedAt int) {
	for i, l := range levels {
		if s.Sample(l) {
			return i
		}
	}
	return -1
}

func TestSilenceDetector(t *testing.T) {
	const loud, quiet = 0.1, 0.001

	tests := []struct {
		name   string
		levels []float64
		want   int
	}{
		{"silence only never ends", []float64{quiet, quiet, quiet, quiet, quiet, quiet}, -1},
		{"utterance then silence", []float64{loud, loud, loud, quiet, quiet, quiet, quiet}, 6},
		{"click is debounced", []float64{loud, quiet, quiet, quiet, quiet, quiet}, -1},
		{"two loud readings are not enough", []float64{loud, loud, quiet, quiet, quiet, quiet, quiet}, -1},
		{"sound resets the silence window", []float64{loud, loud, loud, quiet, quiet, quiet, loud, quiet, quiet, quiet, quiet}, 10},
		{"threshold itself is quiet", []float64{0.02, 0.02, 0.02, 0.02, 0.02}, -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewSilenceDetector(testConfig())
			if got := feed(d, tt.levels...); got != tt.want {
				t.Errorf("fired at reading %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSilenceDetector_FiresOnce(t *testing.T) {
	d := NewSilenceDetector(testConfig())
	feed(d, 0.1, 0.1, 0.1, 0, 0, 0, 0)
	if !d.State().Ended {
		t.Fatal("detector should have ended")
	}
	if d.Sample(0) {
		t.Error("Sample after end should not fire again")
	}

	d.Reset()
	if s := d.State(); s.Confirmed || s.Ended || s.SoundSamples != 0 {
		t.Errorf("State after Reset = %+v", s)
	}
}

func TestInterruptDetector(t *testing.T) {
	tests := []struct {
		name   string
		levels []float64
		want   int
	}{
		{"three loud readings", []float64{0.05, 0.05, 0.05}, 2},
		{"bleed below twice the threshold", []float64{0.03, 0.035, 0.039, 0.03}, -1},
		{"interrupted run restarts", []float64{0.05, 0.05, 0.01, 0.05, 0.05, 0.05}, 5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewInterruptDetector(0.02, 2.0, 3)
			if got := feed(d, tt.levels...); got != tt.want {
				t.Errorf("fired at reading %d, want %d", got, tt.want)
			}
		})
	}
}

func TestInterruptDetector_Threshold(t *testing.T) {
	d := NewInterruptDetector(0.02, 2.0, 3)
	if math.Abs(d.Threshold()-0.04) > 1e-9 {
		t.Errorf("Threshold() = %v, want 0.04", d.Threshold())
	}
}

func TestRMS(t *testing.T) {
	if RMS(nil) != 0 {
		t.Error("RMS(nil) should be 0")
	}
	full := []int16{32767, -32768, 32767, -32768}
	if got := RMS(full); got < 0.99 {
		t.Errorf("RMS(full scale) = %v, want ~1", got)
	}
	if got := RMS([]int16{0, 0, 0}); got != 0 {
		t.Errorf("RMS(silence) = %v, want 0", got)
	}
}

type scriptedAnalyser struct {
	mu     sync.Mutex
	levels []float64
	closed bool
}

func (a *scriptedAnalyser) Level() float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.levels) == 0 {
		return 0
	}
	l := a.levels[0]
	if len(a.levels) > 1 {
		a.levels = a.levels[1:]
	}
	return l
}

func (a *scriptedAnalyser) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.closed = true
	return nil
}

func (a *scriptedAnalyser) isClosed() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.closed
}

func TestMonitor_TriggersAndDisconnects(t *testing.T) {
	a := &scriptedAnalyser{levels: []float64{0.1, 0.1, 0.1, 0}}
	fired := make(chan struct{}, 2)
	cfg := testConfig()
	cfg.Interval = time.Millisecond
	cfg.SilenceWindow = 5 * time.Millisecond

	m := Start(a, NewSilenceDetector(cfg), cfg.Interval, func() { fired <- struct{}{} })

	select {
	case <-fired:
	case <-time.After(2 * time.Second):
		t.Fatal("monitor did not fire")
	}
	<-m.Done()
	if !a.isClosed() {
		t.Error("analyser should be closed after trigger")
	}
	if len(fired) != 0 {
		t.Error("monitor fired more than once")
	}
}

func TestMonitor_StopPreventsTrigger(t *testing.T) {
	a := &scriptedAnalyser{levels: []float64{0}}
	var fired int32
	m := Start(a, NewInterruptDetector(0.02, 2, 3), time.Millisecond, func() { atomic.AddInt32(&fired, 1) })

	m.Stop()
	m.Stop()
	<-m.Done()

	if !a.isClosed() {
		t.Error("Stop should close the analyser")
	}
	if atomic.LoadInt32(&fired) != 0 {
		t.Error("stopped monitor must not fire")
	}
}
