package schedule

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/am43-core/internal/device"
	"github.com/nerrad567/am43-core/internal/dispatch"
	"github.com/nerrad567/am43-core/internal/infrastructure/config"
)

type mockExecutor struct {
	mu       sync.Mutex
	requests []dispatch.Request
	calls    chan dispatch.Request
	err      error
	fail     bool
}

func newMockExecutor() *mockExecutor {
	return &mockExecutor{calls: make(chan dispatch.Request, 16)}
}

func (m *mockExecutor) Execute(_ context.Context, req dispatch.Request) (*dispatch.Result, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()
	select {
	case m.calls <- req:
	default:
	}
	if m.err != nil {
		return nil, m.err
	}
	return &dispatch.Result{
		ID:       "d-1",
		Action:   req.Action,
		Target:   req.Target,
		Outcomes: []dispatch.Outcome{{Device: device.Device{Name: "left"}, Succeeded: !m.fail}},
	}, nil
}

func TestParseSchedule(t *testing.T) {
	base := time.Date(2026, 3, 2, 6, 0, 0, 0, time.Local) // Monday

	tests := []struct {
		spec    string
		want    time.Time
		wantErr bool
	}{
		{spec: "30 7 * * 1-5", want: time.Date(2026, 3, 2, 7, 30, 0, 0, time.Local)},
		{spec: "@daily", want: time.Date(2026, 3, 3, 0, 0, 0, 0, time.Local)},
		{spec: "45m", want: base.Add(45 * time.Minute)},
		{spec: " 1h ", want: base.Add(time.Hour)},
		{spec: "", wantErr: true},
		{spec: "-5m", wantErr: true},
		{spec: "0s", wantErr: true},
		{spec: "every morning", wantErr: true},
		{spec: "61 * * * *", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.spec, func(t *testing.T) {
			sched, err := ParseSchedule(tt.spec)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSchedule) {
					t.Fatalf("ParseSchedule(%q) error = %v, want ErrInvalidSchedule", tt.spec, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchedule(%q) error = %v", tt.spec, err)
			}
			if got := sched.Next(base); !got.Equal(tt.want) {
				t.Errorf("Next() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestJobFromConfig(t *testing.T) {
	morning := config.ScheduleConfig{
		Name:   "morning",
		Cron:   "30 7 * * *",
		Action: "open",
		Target: config.ScheduleTarget{Kind: "group", Name: "lounge"},
	}

	got, err := JobFromConfig(morning)
	if err != nil {
		t.Fatalf("JobFromConfig() error = %v", err)
	}
	if got.Name != "morning" || got.Schedule != "30 7 * * *" {
		t.Errorf("job = %+v", got)
	}
	if got.Request.Action != dispatch.Open() {
		t.Errorf("action = %v, want open", got.Request.Action)
	}
	if diff := cmp.Diff(dispatch.Group("lounge"), got.Request.Target); diff != "" {
		t.Errorf("target mismatch (-want +got):\n%s", diff)
	}
	if got.Request.Source != "schedule:morning" {
		t.Errorf("source = %q", got.Request.Source)
	}

	allTargets, err := JobFromConfig(config.ScheduleConfig{Name: "poll", Cron: "1h", Action: "getStatus"})
	if err != nil {
		t.Fatalf("JobFromConfig() error = %v", err)
	}
	if allTargets.Request.Target != dispatch.All() {
		t.Errorf("default target = %v, want all", allTargets.Request.Target)
	}

	bad := []struct {
		name    string
		cfg     config.ScheduleConfig
		wantErr error
	}{
		{"no name", config.ScheduleConfig{Cron: "1h", Action: "open"}, ErrInvalidJob},
		{"bad action", config.ScheduleConfig{Name: "x", Cron: "1h", Action: "wiggle"}, dispatch.ErrInvalidAction},
		{"position out of range", config.ScheduleConfig{Name: "x", Cron: "1h", Action: "101"}, ErrInvalidJob},
		{"group without name", config.ScheduleConfig{Name: "x", Cron: "1h", Action: "open", Target: config.ScheduleTarget{Kind: "group"}}, dispatch.ErrInvalidTarget},
		{"unknown target kind", config.ScheduleConfig{Name: "x", Cron: "1h", Action: "open", Target: config.ScheduleTarget{Kind: "room", Name: "a"}}, ErrInvalidJob},
		{"bad schedule", config.ScheduleConfig{Name: "x", Cron: "soon", Action: "open"}, ErrInvalidSchedule},
	}
	for _, tt := range bad {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := JobFromConfig(tt.cfg); !errors.Is(err, tt.wantErr) {
				t.Errorf("JobFromConfig() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestScheduler_Add(t *testing.T) {
	s := NewScheduler(newMockExecutor(), nil)
	job := Job{Name: "morning", Schedule: "30 7 * * *", Request: dispatch.Request{Action: dispatch.Open(), Target: dispatch.All()}}

	if err := s.Add(job); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if err := s.Add(job); !errors.Is(err, ErrDuplicateJob) {
		t.Errorf("second Add() error = %v, want ErrDuplicateJob", err)
	}
	if err := s.Add(Job{Name: "x", Schedule: "never", Request: job.Request}); !errors.Is(err, ErrInvalidSchedule) {
		t.Errorf("Add(bad schedule) error = %v, want ErrInvalidSchedule", err)
	}
	if err := s.Add(Job{Name: "y", Schedule: "1h"}); !errors.Is(err, ErrInvalidJob) {
		t.Errorf("Add(no action) error = %v, want ErrInvalidJob", err)
	}

	entries := s.Entries()
	if len(entries) != 1 || entries[0].Name != "morning" || entries[0].Action != "open" || entries[0].Target != "all" {
		t.Errorf("Entries() = %+v", entries)
	}
}

func TestScheduler_FiresJobs(t *testing.T) {
	exec := newMockExecutor()
	s := NewScheduler(exec, nil)
	req := dispatch.Request{Action: dispatch.Stop(), Target: dispatch.Device("left"), Source: "schedule:tick"}
	if err := s.Add(Job{Name: "tick", Schedule: "20ms", Request: req}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}

	s.Start(context.Background())
	defer s.Stop()

	select {
	case got := <-exec.calls:
		if diff := cmp.Diff(req.Target, got.Target); diff != "" || got.Action != req.Action || got.Source != req.Source {
			t.Errorf("request = %+v, want %+v", got, req)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("job did not fire")
	}
}

func TestScheduler_StopPreventsRuns(t *testing.T) {
	exec := newMockExecutor()
	s := NewScheduler(exec, nil)
	if err := s.Add(Job{Name: "tick", Schedule: "1h", Request: dispatch.Request{Action: dispatch.Open(), Target: dispatch.All()}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	s.Start(context.Background())
	s.Stop()
	s.Stop()

	for _, j := range s.jobs {
		s.fire(j)
	}
	if len(exec.requests) != 0 {
		t.Errorf("executor called %d times after Stop", len(exec.requests))
	}
}

func TestScheduler_RunNow(t *testing.T) {
	exec := newMockExecutor()
	s := NewScheduler(exec, nil)
	if err := s.Add(Job{Name: "poll", Schedule: "1h", Request: dispatch.Request{Action: dispatch.GetStatus(), Target: dispatch.All()}}); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	ctx := context.Background()

	res, err := s.RunNow(ctx, "poll")
	if err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if res.Action != dispatch.GetStatus() {
		t.Errorf("result action = %v", res.Action)
	}
	if e := s.Entries()[0]; e.LastRun.IsZero() || !e.LastOK {
		t.Errorf("entry after run = %+v", e)
	}

	exec.fail = true
	if _, err := s.RunNow(ctx, "poll"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	if s.Entries()[0].LastOK {
		t.Error("LastOK = true after failed dispatch")
	}

	exec.err = device.ErrUnknownGroup
	if _, err := s.RunNow(ctx, "poll"); !errors.Is(err, device.ErrUnknownGroup) {
		t.Errorf("RunNow() error = %v, want ErrUnknownGroup", err)
	}

	if _, err := s.RunNow(ctx, "nope"); !errors.Is(err, ErrUnknownJob) {
		t.Errorf("RunNow(unknown) error = %v, want ErrUnknownJob", err)
	}
}
