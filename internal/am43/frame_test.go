package am43

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name    string
		id      byte
		payload []byte
		want    []byte
	}{
		{
			name:    "open",
			id:      IDMove,
			payload: []byte{0},
			// 9A^0D^01^00 = 96
			want: []byte{0x9A, 0x0D, 0x01, 0x00, 0x96},
		},
		{
			name:    "close",
			id:      IDMove,
			payload: []byte{100},
			want:    []byte{0x9A, 0x0D, 0x01, 0x64, 0xF2},
		},
		{
			name:    "stop",
			id:      IDStop,
			payload: []byte{0xCC},
			want:    []byte{0x9A, 0x0A, 0x01, 0xCC, 0x5D},
		},
		{
			name:    "battery request",
			id:      IDBattery,
			payload: []byte{0x01},
			want:    []byte{0x9A, 0xA2, 0x01, 0x01, 0x38},
		},
		{
			name:    "empty payload",
			id:      IDStop,
			payload: nil,
			want:    []byte{0x9A, 0x0A, 0x00, 0x90},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Encode(tt.id, tt.payload)
			if err != nil {
				t.Fatalf("Encode() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Encode() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEncode_ChecksumInvariant(t *testing.T) {
	ids := []byte{IDMove, IDStop, IDBattery, IDLight, IDPosition, 0x00, 0xFF}
	lengths := []int{0, 1, 2, 7, 64, 254, 255}

	for _, id := range ids {
		for _, n := range lengths {
			payload := make([]byte, n)
			for i := range payload {
				payload[i] = byte(i*31 + int(id))
			}

			frame, err := Encode(id, payload)
			if err != nil {
				t.Fatalf("Encode(%02X, %d bytes) error = %v", id, n, err)
			}

			last := len(frame) - 1
			if Checksum(frame[:last]) != frame[last] {
				t.Errorf("Encode(%02X, %d bytes): checksum %02X does not match XOR of body", id, n, frame[last])
			}
			if err := VerifyFrame(frame); err != nil {
				t.Errorf("VerifyFrame() error = %v", err)
			}
			if frame[0] != FrameStart || frame[1] != id || int(frame[2]) != n {
				t.Errorf("header = % X, want 9A %02X %02X", frame[:3], id, n)
			}
			if !bytes.Equal(frame[3:last], payload) {
				t.Error("payload not copied verbatim")
			}
		}
	}
}

func TestEncode_PayloadTooLong(t *testing.T) {
	for _, n := range []int{256, 300, 1024} {
		_, err := Encode(IDMove, make([]byte, n))
		if !errors.Is(err, ErrPayloadTooLong) {
			t.Errorf("Encode(%d bytes) error = %v, want ErrPayloadTooLong", n, err)
		}
	}
}

func TestCommandBuilders(t *testing.T) {
	tests := []struct {
		name string
		cmd  Command
		want Command
	}{
		{"move 40", MoveCommand(40), Command{ID: 0x0D, Payload: []byte{40}}},
		{"stop", StopCommand(), Command{ID: 0x0A, Payload: []byte{0xCC}}},
		{"battery", BatteryRequest(), Command{ID: 0xA2, Payload: []byte{0x01}}},
		{"light", LightRequest(), Command{ID: 0xAA, Payload: []byte{0x01}}},
		{"position", PositionRequest(), Command{ID: 0xA7, Payload: []byte{0x01}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, tt.cmd); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestVerifyFrame_Errors(t *testing.T) {
	tests := []struct {
		name  string
		frame []byte
		want  error
	}{
		{"too short", []byte{0x9A, 0x0A}, ErrMalformedFrame},
		{"bad start", []byte{0x9B, 0x0A, 0x00, 0x91}, ErrBadStartByte},
		{"length mismatch", []byte{0x9A, 0x0A, 0x02, 0xCC, 0x5D}, ErrMalformedFrame},
		{"bad checksum", []byte{0x9A, 0x0A, 0x01, 0xCC, 0x00}, ErrBadChecksum},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := VerifyFrame(tt.frame); !errors.Is(err, tt.want) {
				t.Errorf("VerifyFrame() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestHex(t *testing.T) {
	if got := Hex([]byte{0x9A, 0x0D, 0x01}); got != "9a 0d 01" {
		t.Errorf("Hex() = %q", got)
	}
}
