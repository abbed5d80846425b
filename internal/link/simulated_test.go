package link

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/am43-core/internal/am43"
)

func TestSimulatedTransport_OneConnectionPerDrive(t *testing.T) {
	sim := NewSimulatedTransport()
	sim.AddDrive(testAddr, SimulatedDrive{})

	c, err := sim.Connect(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	if _, err := sim.Connect(context.Background(), testAddr); !errors.Is(err, ErrDeviceBusy) {
		t.Errorf("second Connect() error = %v, want ErrDeviceBusy", err)
	}

	if err := c.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := c.Close(); !errors.Is(err, ErrClosed) {
		t.Errorf("second Close() error = %v, want ErrClosed", err)
	}
	if _, ok := <-c.Notifications(); ok {
		t.Error("notification channel still open after Close")
	}
	if _, err := c.Write(context.Background(), am43.BatteryRequest().Payload); !errors.Is(err, ErrClosed) {
		t.Errorf("Write() after Close error = %v, want ErrClosed", err)
	}
}

func TestSimulatedTransport_UnknownDrive(t *testing.T) {
	sim := NewSimulatedTransport()
	if _, err := sim.Connect(context.Background(), testAddr); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("Connect() error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSimulatedTransport_RejectsBadFrames(t *testing.T) {
	sim := NewSimulatedTransport()
	sim.AddDrive(testAddr, SimulatedDrive{})
	c, err := sim.Connect(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	if _, err := c.Write(context.Background(), []byte{0x9A, 0x0D, 0x01, 0x64, 0x00}); !errors.Is(err, am43.ErrBadChecksum) {
		t.Errorf("Write() error = %v, want ErrBadChecksum", err)
	}
}

func TestSimulatedTransport_Reports(t *testing.T) {
	sim := NewSimulatedTransport()
	sim.AddDrive(testAddr, SimulatedDrive{Battery: 64, Light: 2, Position: 80})
	c, err := sim.Connect(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	tests := []struct {
		cmd  am43.Command
		want []byte
	}{
		{am43.BatteryRequest(), am43.BatteryReport(64)},
		{am43.LightRequest(), am43.LightReport(2)},
		{am43.PositionRequest(), am43.PositionReport(80)},
	}

	for _, tt := range tests {
		frame, _ := tt.cmd.Encode()
		ack, err := c.Write(context.Background(), frame)
		if err != nil || ack != AckWrite {
			t.Fatalf("Write(%v) = %q, %v", tt.cmd, ack, err)
		}
		select {
		case got := <-c.Notifications():
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("%v reply mismatch (-want +got):\n%s", tt.cmd, diff)
			}
		case <-time.After(time.Second):
			t.Fatalf("%v: no reply", tt.cmd)
		}
	}
}

func TestSimulatedTransport_MoveAndStopDoNotNotify(t *testing.T) {
	sim := NewSimulatedTransport()
	sim.AddDrive(testAddr, SimulatedDrive{Position: 10})
	c, err := sim.Connect(context.Background(), testAddr)
	if err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer c.Close()

	for _, cmd := range []am43.Command{am43.MoveCommand(55), am43.StopCommand()} {
		frame, _ := cmd.Encode()
		if ack, err := c.Write(context.Background(), frame); err != nil || ack != AckWrite {
			t.Fatalf("Write(%v) = %q, %v", cmd, ack, err)
		}
	}
	select {
	case n := <-c.Notifications():
		t.Errorf("unexpected notification % X", n)
	default:
	}

	drive, _ := sim.Drive(testAddr)
	if drive.Position != 55 {
		t.Errorf("Position = %d, want 55", drive.Position)
	}
}

func TestSimulatedTransport_Scan(t *testing.T) {
	sim := NewSimulatedTransport()
	sim.AddDrive("02:00:00:00:00:02", SimulatedDrive{})
	sim.AddDrive("02:00:00:00:00:01", SimulatedDrive{})
	sim.AddDrive("02:00:00:00:00:03", SimulatedDrive{Hidden: true})
	sim.AddDrive("02:00:00:00:00:04", SimulatedDrive{Unreachable: true})

	got, err := sim.Scan(context.Background(), time.Second)
	if err != nil {
		t.Fatalf("Scan() error = %v", err)
	}
	want := []Address{"02:00:00:00:00:01", "02:00:00:00:00:02"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Scan() mismatch (-want +got):\n%s", diff)
	}

	sim.FailScans(1)
	if _, err := sim.Scan(context.Background(), time.Second); err == nil {
		t.Error("Scan() expected failure")
	}
	if sim.Scans() != 2 {
		t.Errorf("Scans() = %d, want 2", sim.Scans())
	}
}
