package notifier

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"uzimasmart/internal/domain"
	"uzimasmart/internal/logging"
)

type collector struct {
	mu  sync.Mutex
	got []Outcome
}

func (c *collector) add(o Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.got = append(c.got, o)
}

func (c *collector) outcomes() []Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Outcome(nil), c.got...)
}

func TestQueueRunsAndReportsOutcomes(t *testing.T) {
	c := &collector{}
	q := New(Options{Size: 8, Timeout: time.Second, OnOutcome: c.add}, logging.Discard())
	q.Run(context.Background(), 2)

	boom := errors.New("sms gateway down")
	if !q.Submit("ok", func(context.Context) error { return nil }) {
		t.Fatal("submit ok rejected")
	}
	if !q.Submit("fail", func(context.Context) error { return boom }) {
		t.Fatal("submit fail rejected")
	}
	q.Close()

	got := c.outcomes()
	if len(got) != 2 {
		t.Fatalf("got %d outcomes, want 2", len(got))
	}
	for _, o := range got {
		switch o.Task {
		case "ok":
			if o.Err != nil {
				t.Errorf("ok task err = %v", o.Err)
			}
		case "fail":
			var nerr *domain.NotificationError
			if !errors.As(o.Err, &nerr) || !errors.Is(o.Err, boom) {
				t.Errorf("fail task err = %v", o.Err)
			}
		default:
			t.Errorf("unexpected task %q", o.Task)
		}
	}
}

func TestQueueDropsWhenFull(t *testing.T) {
	q := New(Options{Size: 1}, logging.Discard())
	// no workers running: the second submit finds the buffer full
	if !q.Submit("a", func(context.Context) error { return nil }) {
		t.Fatal("first submit rejected")
	}
	if q.Submit("b", func(context.Context) error { return nil }) {
		t.Fatal("second submit should be dropped")
	}
	if q.Dropped() != 1 {
		t.Errorf("dropped = %d", q.Dropped())
	}
	q.Run(context.Background(), 1)
	q.Close()
}

func TestQueueRejectsAfterClose(t *testing.T) {
	q := New(Options{Size: 4}, logging.Discard())
	q.Run(context.Background(), 1)
	q.Close()
	q.Close()
	if q.Submit("late", func(context.Context) error { return nil }) {
		t.Error("submit after close accepted")
	}
}

func TestTaskTimeoutIsIndependent(t *testing.T) {
	c := &collector{}
	in := Inline{Timeout: 20 * time.Millisecond, OnOutcome: c.add}
	in.Submit("slow", func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	})
	got := c.outcomes()
	if len(got) != 1 || !errors.Is(got[0].Err, context.DeadlineExceeded) {
		t.Fatalf("outcomes = %+v", got)
	}
}

func TestPanicBecomesOutcome(t *testing.T) {
	c := &collector{}
	Inline{OnOutcome: c.add}.Submit("panicky", func(context.Context) error { panic("nil map") })
	got := c.outcomes()
	if len(got) != 1 || got[0].Err == nil {
		t.Fatalf("outcomes = %+v", got)
	}
}
