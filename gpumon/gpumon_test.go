package gpumon

import (
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

type fakeReader struct {
	mu    sync.Mutex
	snap  Snapshot
	err   error
	calls int32
}

func (f *fakeReader) Read() (Snapshot, error) {
	atomic.AddInt32(&f.calls, 1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Snapshot{}, f.err
	}
	return f.snap, nil
}

func (f *fakeReader) set(s Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.snap, f.err = s, nil
}

func (f *fakeReader) setErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.err = err
}

func TestDefaultCollectorConfig(t *testing.T) {
	config := DefaultCollectorConfig()
	if config.Interval != 5*time.Second {
		t.Errorf("Interval = %v, want 5s", config.Interval)
	}
	if config.HistorySize != 720 {
		t.Errorf("HistorySize = %d, want 720", config.HistorySize)
	}
}

func TestNewCollectorNormalizesConfig(t *testing.T) {
	c := NewCollector(CollectorConfig{Interval: time.Millisecond, HistorySize: 0}, &fakeReader{}, nil)
	defer c.Stop()
	if c.config.Interval != 5*time.Second {
		t.Errorf("Interval = %v, want default 5s", c.config.Interval)
	}
	if c.config.HistorySize != 720 {
		t.Errorf("HistorySize = %d, want default 720", c.config.HistorySize)
	}
}

func TestCollectorPollsAndReportsCurrent(t *testing.T) {
	r := &fakeReader{snap: Snapshot{VRAMUsedMB: 1024, VRAMTotalMB: 8192, Utilization: 42, DeviceName: "fake-gpu"}}

	var got atomic.Value
	c := NewCollector(CollectorConfig{Interval: 10 * time.Millisecond, HistorySize: 4}, r, func(s Snapshot) {
		got.Store(s)
	})
	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v := got.Load(); v != nil {
			snap := v.(Snapshot)
			if snap.DeviceName == "fake-gpu" {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
	}

	current, ok := c.Current()
	if !ok {
		t.Fatal("expected device to be available")
	}
	if current.VRAMUsedMB != 1024 || current.VRAMTotalMB != 8192 {
		t.Fatalf("unexpected current snapshot: %+v", current)
	}
	if current.VRAMFreeMB() != 7168 {
		t.Fatalf("VRAMFreeMB() = %d, want 7168", current.VRAMFreeMB())
	}
}

func TestCollectorMarksUnavailableOnError(t *testing.T) {
	r := &fakeReader{err: errors.New("no device")}
	c := NewCollector(CollectorConfig{Interval: 10 * time.Millisecond, HistorySize: 4}, r, nil)
	c.Start()
	defer c.Stop()

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if c.LastError() != nil {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}

	if _, ok := c.Current(); ok {
		t.Fatal("expected unavailable when the reader errors")
	}
	if c.LastError() == nil {
		t.Fatal("expected LastError to be set")
	}
}

func TestCollectorHistoryOldestFirst(t *testing.T) {
	r := &fakeReader{}
	c := NewCollector(CollectorConfig{Interval: 5 * time.Millisecond, HistorySize: 3}, r, nil)
	c.Start()
	defer c.Stop()

	for i := 0; i < 5; i++ {
		r.set(Snapshot{VRAMUsedMB: int64(i)})
		time.Sleep(15 * time.Millisecond)
	}

	hist := c.History(10)
	if len(hist) != 3 {
		t.Fatalf("History(10) len = %d, want 3 (capped at HistorySize)", len(hist))
	}
	for i := 1; i < len(hist); i++ {
		if hist[i].VRAMUsedMB < hist[i-1].VRAMUsedMB {
			t.Fatalf("history not oldest-first: %+v", hist)
		}
	}
}

func TestCollectorHistoryEmptyBeforeFirstPoll(t *testing.T) {
	c := NewCollector(DefaultCollectorConfig(), &fakeReader{}, nil)
	if hist := c.History(5); len(hist) != 0 {
		t.Fatalf("History(5) = %v, want empty before any poll", hist)
	}
}

func TestUnavailableReaderAlwaysErrors(t *testing.T) {
	r := UnavailableReader{}
	if _, err := r.Read(); err == nil {
		t.Fatal("expected UnavailableReader.Read to always error")
	}
	r2 := UnavailableReader{Reason: "driver not loaded"}
	_, err := r2.Read()
	if err == nil || err.Error() != "gpumon: driver not loaded" {
		t.Fatalf("unexpected error: %v", err)
	}
}
