package main

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nerrad567/am43-core/internal/device"
	"github.com/nerrad567/am43-core/internal/dispatch"
	"github.com/nerrad567/am43-core/internal/infrastructure/config"
	"github.com/nerrad567/am43-core/internal/infrastructure/logging"
	"github.com/nerrad567/am43-core/internal/link"
)

const testDevices = `
bedroom:
  left: "02:4E:F0:E1:5E:BC"
  right: "02:4E:F0:E1:5E:BD"
lounge:
  bay: "02:4E:F0:E1:5E:BE"
`

// writeFiles writes a config and devices file into a temp dir and points
// AM43_CONFIG at the config.
func writeFiles(t *testing.T, configContent string) string {
	t.Helper()
	dir := t.TempDir()

	devicesPath := filepath.Join(dir, "devices.yaml")
	if err := os.WriteFile(devicesPath, []byte(testDevices), 0o600); err != nil {
		t.Fatalf("failed to write devices file: %v", err)
	}

	configPath := filepath.Join(dir, "config.yaml")
	content := strings.ReplaceAll(configContent, "{{DIR}}", dir)
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config file: %v", err)
	}

	t.Setenv("AM43_CONFIG", configPath)
	return dir
}

// TestRun_InvalidConfig verifies run fails with invalid config path.
func TestRun_InvalidConfig(t *testing.T) {
	t.Setenv("AM43_CONFIG", "/nonexistent/path/config.yaml")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := run(ctx); err == nil {
		t.Fatal("run() should fail with invalid config path")
	}
}

// TestRun_MissingDevicesFile verifies run fails when the devices file is absent.
func TestRun_MissingDevicesFile(t *testing.T) {
	writeFiles(t, `
devices_file: "{{DIR}}/missing.yaml"
link:
  transport: simulated
mqtt:
  enabled: false
database:
  enabled: false
api:
  host: "127.0.0.1"
  port: 18943
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with a missing devices file")
	}
	if !strings.Contains(err.Error(), "loading devices") {
		t.Errorf("error = %v, want loading devices", err)
	}
}

// TestRun_InvalidSchedule verifies a bad schedule fails startup.
func TestRun_InvalidSchedule(t *testing.T) {
	writeFiles(t, `
devices_file: "{{DIR}}/devices.yaml"
link:
  transport: simulated
mqtt:
  enabled: false
database:
  enabled: false
api:
  host: "127.0.0.1"
  port: 18944
schedules:
  - name: morning
    cron: "not a schedule"
    action: open
`)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err := run(ctx)
	if err == nil {
		t.Fatal("run() should fail with an invalid schedule")
	}
	if !strings.Contains(err.Error(), "configuring schedules") {
		t.Errorf("error = %v, want configuring schedules", err)
	}
}

// TestRun_SimulatedStartsAndStops verifies a full startup with the
// simulated transport and a database, then a clean shutdown on cancel.
func TestRun_SimulatedStartsAndStops(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping startup test in short mode")
	}

	writeFiles(t, `
devices_file: "{{DIR}}/devices.yaml"
link:
  transport: simulated
mqtt:
  enabled: false
database:
  enabled: true
  path: "{{DIR}}/data/am43.db"
logging:
  level: error
api:
  host: "127.0.0.1"
  port: 18945
schedules:
  - name: nightly-status
    cron: "@daily"
    action: getStatus
`)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx) }()

	// Give startup time to reach the wait.
	time.Sleep(200 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run() = %v, want nil", err)
		}
	case <-time.After(15 * time.Second):
		t.Fatal("run() did not return after cancel")
	}
}

// TestStartTransport_Simulated verifies every configured drive is seeded.
func TestStartTransport_Simulated(t *testing.T) {
	registry, err := device.Parse([]byte(testDevices))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	cfg := &config.Config{Link: config.LinkConfig{Transport: config.TransportSimulated}}

	transport, err := startTransport(cfg, nil, registry, logging.Discard())
	if err != nil {
		t.Fatalf("startTransport() error = %v", err)
	}

	sim, ok := transport.(*link.SimulatedTransport)
	if !ok {
		t.Fatalf("transport = %T, want *link.SimulatedTransport", transport)
	}
	for _, addr := range registry.Addresses() {
		drive, ok := sim.Drive(addr)
		if !ok {
			t.Errorf("drive %s not seeded", addr)
			continue
		}
		if drive.Battery != simulatedBattery || drive.Position != simulatedPosition {
			t.Errorf("drive %s = %+v, want battery %d position %d", addr, drive, simulatedBattery, simulatedPosition)
		}
	}
}

// TestStartTransport_MQTTWithoutClient verifies the gateway needs a broker.
func TestStartTransport_MQTTWithoutClient(t *testing.T) {
	registry, err := device.Parse([]byte(testDevices))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	cfg := &config.Config{Link: config.LinkConfig{Transport: config.TransportMQTT}}

	if _, err := startTransport(cfg, nil, registry, logging.Discard()); err == nil {
		t.Fatal("startTransport() should fail without an MQTT client")
	}
}

type fakeExecutor struct{}

func (fakeExecutor) Execute(context.Context, dispatch.Request) (*dispatch.Result, error) {
	return nil, errors.New("not used")
}

// TestBuildScheduler verifies configured schedules become jobs.
func TestBuildScheduler(t *testing.T) {
	scheduler, err := buildScheduler([]config.ScheduleConfig{
		{Name: "morning", Cron: "0 7 * * *", Action: "open"},
		{Name: "bedroom-poll", Cron: "30m", Action: "getStatus", Target: config.ScheduleTarget{Kind: "group", Name: "bedroom"}},
	}, fakeExecutor{}, logging.Discard())
	if err != nil {
		t.Fatalf("buildScheduler() error = %v", err)
	}

	entries := scheduler.Entries()
	if len(entries) != 2 {
		t.Fatalf("len(Entries()) = %d, want 2", len(entries))
	}
}

// TestBuildScheduler_Duplicate verifies duplicate names are rejected.
func TestBuildScheduler_Duplicate(t *testing.T) {
	_, err := buildScheduler([]config.ScheduleConfig{
		{Name: "morning", Cron: "0 7 * * *", Action: "open"},
		{Name: "morning", Cron: "0 8 * * *", Action: "close"},
	}, fakeExecutor{}, logging.Discard())
	if err == nil {
		t.Fatal("buildScheduler() should reject duplicate names")
	}
}
