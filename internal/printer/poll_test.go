package printer

import (
	"errors"
	"testing"
	"time"
)

type scriptedSource struct {
	statuses []Status
	err      error
	calls    int
}

func (s *scriptedSource) Fetch() (Status, error) {
	if s.err != nil {
		return Status{}, s.err
	}
	st := s.statuses[s.calls]
	s.calls++
	return st, nil
}

func (s *scriptedSource) Close() {}

func TestWaitIdle_PollsUntilIdle(t *testing.T) {
	src := &scriptedSource{statuses: []Status{
		{State: "PRINTING", Printing: true, RemainingSeconds: 10},
		{State: "PRINTING", Printing: true, RemainingSeconds: 5},
		{State: "IDLE", Printing: false},
	}}

	var sleeps []time.Duration
	var reported []Status
	status, err := WaitIdle(src, 5*time.Second,
		func(d time.Duration) { sleeps = append(sleeps, d) },
		func(_ time.Time, st Status) { reported = append(reported, st) })
	if err != nil {
		t.Fatalf("WaitIdle returned error: %v", err)
	}
	if !status.Idle() {
		t.Errorf("WaitIdle returned non-idle status %+v", status)
	}
	if src.calls != 3 {
		t.Errorf("fetch count = %d, want 3", src.calls)
	}
	if len(reported) != 3 {
		t.Errorf("report count = %d, want 3", len(reported))
	}
	if len(sleeps) != 2 {
		t.Fatalf("sleep count = %d, want 2", len(sleeps))
	}
	for _, d := range sleeps {
		if d != 5*time.Second {
			t.Errorf("slept %v, want 5s", d)
		}
	}
}

func TestWaitIdle_ImmediatelyIdle(t *testing.T) {
	src := &scriptedSource{statuses: []Status{{State: "IDLE"}}}

	_, err := WaitIdle(src, time.Second,
		func(time.Duration) { t.Error("slept on an already idle printer") }, nil)
	if err != nil {
		t.Fatalf("WaitIdle returned error: %v", err)
	}
	if src.calls != 1 {
		t.Errorf("fetch count = %d, want 1", src.calls)
	}
}

func TestWaitIdle_FetchErrorAborts(t *testing.T) {
	fetchErr := errors.New("connection refused")
	src := &scriptedSource{err: fetchErr}

	_, err := WaitIdle(src, time.Second, func(time.Duration) {}, nil)
	if !errors.Is(err, fetchErr) {
		t.Fatalf("WaitIdle error = %v, want %v", err, fetchErr)
	}
}
