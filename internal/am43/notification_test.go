package am43

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestDecodeNotification(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  Notification
	}{
		{
			name:  "battery 87",
			frame: []byte{0x9A, 0xA2, 0x05, 0x00, 0x00, 0x00, 0x00, 87, 0x00},
			want:  Notification{ID: IDBattery, Kind: KindBattery, Battery: 87},
		},
		{
			name:  "light step 4 is 50 percent",
			frame: []byte{0x9A, 0xAA, 0x02, 0x00, 4, 0x00},
			want:  Notification{ID: IDLight, Kind: KindLight, Light: 50.0},
		},
		{
			name:  "position 30",
			frame: []byte{0x9A, 0xA7, 0x07, 0x0E, 0x00, 30, 0x00},
			want:  Notification{ID: IDPosition, Kind: KindPosition, Position: 30},
		},
		{
			name:  "unknown id is not an error",
			frame: []byte{0x9A, 0xA8, 0x00},
			want:  Notification{ID: IDPosition2, Kind: KindUnknown},
		},
		{
			name:  "two bytes is enough for an unknown id",
			frame: []byte{0x9A, 0x42},
			want:  Notification{ID: 0x42, Kind: KindUnknown},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeNotification(tt.frame)
			if err != nil {
				t.Fatalf("DecodeNotification() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got, cmpopts.IgnoreFields(Notification{}, "Raw")); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.frame, got.Raw); diff != "" {
				t.Errorf("Raw mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDecodeNotification_Malformed(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
	}{
		{"empty", nil},
		{"one byte", []byte{0x9A}},
		{"battery truncated", []byte{0x9A, 0xA2, 0x05, 0x00, 0x00, 0x00, 0x00}},
		{"position truncated", []byte{0x9A, 0xA7, 0x01, 0x00, 0x00}},
		{"light truncated", []byte{0x9A, 0xAA, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeNotification(tt.frame)
			if !errors.Is(err, ErrMalformedFrame) {
				t.Errorf("DecodeNotification() error = %v, want ErrMalformedFrame", err)
			}
		})
	}
}

func TestDecodeNotification_RawIsCopied(t *testing.T) {
	frame := BatteryReport(50)
	n, err := DecodeNotification(frame)
	if err != nil {
		t.Fatalf("DecodeNotification() error = %v", err)
	}
	frame[7] = 0
	if n.Raw[7] != 50 {
		t.Error("Raw aliases the input buffer")
	}
}

func TestReportBuilders_RoundTrip(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		check func(Notification) bool
	}{
		{"battery", BatteryReport(64), func(n Notification) bool { return n.Kind == KindBattery && n.Battery == 64 }},
		{"position", PositionReport(30), func(n Notification) bool { return n.Kind == KindPosition && n.Position == 30 }},
		{"light", LightReport(8), func(n Notification) bool { return n.Kind == KindLight && n.Light == 100.0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyFrame(tt.frame); err != nil {
				t.Fatalf("VerifyFrame() error = %v", err)
			}
			n, err := DecodeNotification(tt.frame)
			if err != nil {
				t.Fatalf("DecodeNotification() error = %v", err)
			}
			if !tt.check(n) {
				t.Errorf("unexpected notification %v", n)
			}
		})
	}
}

func TestKind_String(t *testing.T) {
	for kind, want := range map[Kind]string{
		KindBattery:  "battery",
		KindPosition: "position",
		KindLight:    "light",
		KindUnknown:  "unknown",
	} {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
