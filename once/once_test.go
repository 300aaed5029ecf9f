package once

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func catch(f func()) (r any) {
	defer func() { r = recover() }()
	f()
	return nil
}

func TestDoRunsOnce(t *testing.T) {
	var o Once
	counter := 0
	for i := 0; i < 4; i++ {
		o.Do(func() { counter++ })
	}
	if counter != 1 {
		t.Errorf("counter = %d, want 1", counter)
	}
	if !o.State().IsDone() {
		t.Errorf("State = %s, want done", o.State())
	}
}

func TestConcurrentCallers(t *testing.T) {
	var o Once
	var runs atomic.Int32
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			o.Do(func() { runs.Add(1) })
		}()
	}
	wg.Wait()

	if runs.Load() != 1 {
		t.Errorf("initializer ran %d times, want 1", runs.Load())
	}
}

func TestBlockedCallersSeeCompletion(t *testing.T) {
	var o Once
	started := make(chan struct{})
	release := make(chan struct{})
	value := 0

	go o.Do(func() {
		close(started)
		<-release
		value = 42
	})
	<-started

	if o.State() != InProgress {
		t.Errorf("State = %s, want in_progress", o.State())
	}

	done := make(chan int)
	go func() {
		o.Do(func() { value = -1 })
		done <- value
	}()

	select {
	case <-done:
		t.Fatal("second caller returned before the initializer finished")
	case <-time.After(20 * time.Millisecond):
	}

	close(release)
	if got := <-done; got != 42 {
		t.Errorf("second caller saw %d, want 42", got)
	}
}

func TestPoisoning(t *testing.T) {
	var o Once

	if o.State() != New {
		t.Fatalf("State = %s, want new", o.State())
	}

	r := catch(func() { o.Do(func() { panic("boom") }) })
	if r != "boom" {
		t.Errorf("panic value = %v, want boom", r)
	}
	if !o.State().IsPoisoned() {
		t.Fatalf("State = %s, want poisoned", o.State())
	}

	ran := false
	r = catch(func() { o.Do(func() { ran = true }) })
	if r != ErrPoisoned {
		t.Errorf("panic value = %v, want ErrPoisoned", r)
	}
	if ran {
		t.Error("default call ran on a poisoned barrier")
	}

	var seen State
	o.DoForce(func(s State) { seen = s })
	if seen != Poisoned {
		t.Errorf("forced initializer saw %s, want poisoned", seen)
	}
	if !o.State().IsDone() {
		t.Errorf("State = %s, want done", o.State())
	}

	o.Do(func() { t.Error("initializer ran after completion") })
}

func TestForceRetriesUntilSuccess(t *testing.T) {
	var o Once
	counter := 0
	for i := 0; i < 100; i++ {
		_ = catch(func() {
			o.DoForce(func(State) {
				if i < 6 {
					panic(i)
				}
				counter = i
			})
		})
	}
	if counter != 6 {
		t.Errorf("counter = %d, want 6", counter)
	}
}
