package client

import (
	"context"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
)

// syncEvery is the tick cadence of the periodic server sync: the tracked
// total is pushed whenever it crosses a multiple of this many seconds, so
// the persisted value trails the local one by at most syncEvery-1 seconds.
const syncEvery = 10

// Tracker owns the client-side task cache and the one-second ticking
// clock. All cache state lives inside a single goroutine; callers talk to
// it through commands and subscribers receive immutable snapshots. While a
// task is tracking, each tick adds one second locally and every tenth
// second is pushed to the server best-effort.
type Tracker struct {
	api    *Client
	clock  clockwork.Clock
	logger *zap.SugaredLogger

	cmds   chan func()
	done   chan struct{}
	closed chan struct{}

	// loop-owned state, never touched outside the loop goroutine
	tasks []Task
	subs  []chan []Task
}

// NewTracker starts the tracker loop. clock may be nil for wall time.
func NewTracker(api *Client, clock clockwork.Clock, logger *zap.SugaredLogger) *Tracker {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	t := &Tracker{
		api:    api,
		clock:  clock,
		logger: logger,
		cmds:   make(chan func()),
		done:   make(chan struct{}),
		closed: make(chan struct{}),
	}
	go t.loop()
	return t
}

func (t *Tracker) loop() {
	defer close(t.closed)
	ticker := t.clock.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-t.done:
			for _, sub := range t.subs {
				close(sub)
			}
			return
		case fn := <-t.cmds:
			fn()
		case <-ticker.Chan():
			t.tick()
		}
	}
}

// tick advances every tracked task by one second and fires the periodic
// sync at each multiple-of-ten boundary. The network call runs off the
// loop goroutine so a slow or failed sync never blocks the next tick.
func (t *Tracker) tick() {
	changed := false
	for i := range t.tasks {
		if !t.tasks[i].IsTracking {
			continue
		}
		t.tasks[i].TotalTime++
		changed = true
		if t.tasks[i].TotalTime%syncEvery == 0 {
			id := t.tasks[i].ID
			total := t.tasks[i].TotalTime
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := t.api.SyncTotalTime(ctx, id, total); err != nil {
					// next boundary retries; nothing else to do
					t.logger.Warnw("periodic time sync failed", "task_id", id, "err", err)
				}
			}()
		}
	}
	if changed {
		t.notify()
	}
}

// run executes fn on the loop goroutine and waits for it.
func (t *Tracker) run(fn func()) {
	doneFn := make(chan struct{})
	select {
	case t.cmds <- func() { fn(); close(doneFn) }:
		<-doneFn
	case <-t.done:
	}
}

func (t *Tracker) notify() {
	snap := t.snapshotLocked()
	for _, sub := range t.subs {
		select {
		case sub <- snap:
		default:
			// slow subscriber drops this update, not the loop
		}
	}
}

func (t *Tracker) snapshotLocked() []Task {
	snap := make([]Task, len(t.tasks))
	copy(snap, t.tasks)
	return snap
}

// Load replaces the local cache with the server's task list.
func (t *Tracker) Load(ctx context.Context) error {
	tasks, err := t.api.ListTasks(ctx)
	if err != nil {
		return err
	}
	t.run(func() {
		t.tasks = tasks
		t.notify()
	})
	return nil
}

// Snapshot returns a copy of the current task cache.
func (t *Tracker) Snapshot() []Task {
	var snap []Task
	t.run(func() { snap = t.snapshotLocked() })
	return snap
}

// Subscribe returns a channel that receives a snapshot after every cache
// change. The channel closes when the tracker closes.
func (t *Tracker) Subscribe() <-chan []Task {
	sub := make(chan []Task, 8)
	t.run(func() { t.subs = append(t.subs, sub) })
	return sub
}

// Start begins tracking the named task server-side and mirrors the
// exclusive-timer rule in the local cache.
func (t *Tracker) Start(ctx context.Context, taskID string) (*Task, error) {
	updated, err := t.api.StartTimer(ctx, taskID)
	if err != nil {
		return nil, err
	}
	t.run(func() {
		for i := range t.tasks {
			if t.tasks[i].ID == updated.ID {
				t.tasks[i] = *updated
			} else {
				t.tasks[i].IsTracking = false
			}
		}
		t.notify()
	})
	return updated, nil
}

// Stop flushes the locally ticked total to the server, then clears the
// tracking flag, so the persisted value reflects every whole second seen
// locally.
func (t *Tracker) Stop(ctx context.Context, taskID string) (*Task, error) {
	var total int64
	found := false
	t.run(func() {
		for i := range t.tasks {
			if t.tasks[i].ID == taskID {
				total = t.tasks[i].TotalTime
				found = true
				return
			}
		}
	})
	if found {
		if err := t.api.SyncTotalTime(ctx, taskID, total); err != nil {
			return nil, err
		}
	}

	updated, err := t.api.StopTimer(ctx, taskID)
	if err != nil {
		return nil, err
	}
	t.run(func() {
		for i := range t.tasks {
			if t.tasks[i].ID == updated.ID {
				t.tasks[i] = *updated
				t.tasks[i].TotalTime = max(t.tasks[i].TotalTime, total)
			}
		}
		t.notify()
	})
	return updated, nil
}

// Close stops the loop and closes all subscriber channels.
func (t *Tracker) Close() {
	close(t.done)
	<-t.closed
}
