package device

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/nerrad567/am43-core/internal/link"
)

const testDevices = `
lounge:
  Left: "02:4E:30:1A:C4:9F"
  right: "02-4e-30-1a-c4-a0"
bedroom:
  window: "02:4e:30:1a:c4:a1"
  left: "02:4e:30:1a:c4:a2"
Office:
  desk: "02:4e:30:1a:c4:a3"
`

func mustParse(t *testing.T, data string) *Registry {
	t.Helper()
	r, err := Parse([]byte(data))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return r
}

func TestParse_DeclarationOrder(t *testing.T) {
	r := mustParse(t, testDevices)

	want := []Device{
		{Name: "left", Address: "02:4e:30:1a:c4:9f", Group: "lounge"},
		{Name: "right", Address: "02:4e:30:1a:c4:a0", Group: "lounge"},
		{Name: "window", Address: "02:4e:30:1a:c4:a1", Group: "bedroom"},
		{Name: "left", Address: "02:4e:30:1a:c4:a2", Group: "bedroom"},
		{Name: "desk", Address: "02:4e:30:1a:c4:a3", Group: "Office"},
	}
	if diff := cmp.Diff(want, r.ResolveAll()); diff != "" {
		t.Errorf("ResolveAll() mismatch (-want +got):\n%s", diff)
	}
	if r.Len() != 5 {
		t.Errorf("Len() = %d, want 5", r.Len())
	}

	var names []string
	for _, g := range r.Groups() {
		names = append(names, g.Name)
	}
	if diff := cmp.Diff([]string{"lounge", "bedroom", "Office"}, names); diff != "" {
		t.Errorf("group order mismatch (-want +got):\n%s", diff)
	}
}

func TestRegistry_ResolveGroup(t *testing.T) {
	r := mustParse(t, testDevices)

	got, err := r.ResolveGroup("bedroom")
	if err != nil {
		t.Fatalf("ResolveGroup() error = %v", err)
	}
	if len(got) != 2 || got[0].Name != "window" || got[1].Name != "left" {
		t.Errorf("ResolveGroup(bedroom) = %v", got)
	}

	for _, name := range []string{"nonexistent", "office", ""} {
		if _, err := r.ResolveGroup(name); !errors.Is(err, ErrUnknownGroup) {
			t.Errorf("ResolveGroup(%q) error = %v, want ErrUnknownGroup", name, err)
		}
	}
}

func TestRegistry_ResolveDevice(t *testing.T) {
	r := mustParse(t, testDevices)

	got, err := r.ResolveDevice("LEFT")
	if err != nil {
		t.Fatalf("ResolveDevice() error = %v", err)
	}
	want := []Device{
		{Name: "left", Address: "02:4e:30:1a:c4:9f", Group: "lounge"},
		{Name: "left", Address: "02:4e:30:1a:c4:a2", Group: "bedroom"},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("ResolveDevice(left) mismatch (-want +got):\n%s", diff)
	}

	if _, err := r.ResolveDevice("nonexistent"); !errors.Is(err, ErrUnknownDevice) {
		t.Errorf("ResolveDevice(nonexistent) error = %v, want ErrUnknownDevice", err)
	}
}

func TestRegistry_ResultsAreCopies(t *testing.T) {
	r := mustParse(t, testDevices)

	devices, _ := r.ResolveGroup("lounge")
	devices[0].Name = "mutated"
	groups := r.Groups()
	groups[0].Devices[0].Name = "mutated"

	again, _ := r.ResolveGroup("lounge")
	if again[0].Name != "left" {
		t.Errorf("registry mutated through returned slice: %v", again[0])
	}
}

func TestRegistry_Lookup(t *testing.T) {
	r := mustParse(t, testDevices)

	d, ok := r.Lookup("02:4e:30:1a:c4:a1")
	if !ok || d.Name != "window" {
		t.Errorf("Lookup() = %v, %v", d, ok)
	}
	if _, ok := r.Lookup("02:00:00:00:00:00"); ok {
		t.Error("Lookup() found an unconfigured address")
	}

	want := []link.Address{"02:4e:30:1a:c4:9f", "02:4e:30:1a:c4:a0", "02:4e:30:1a:c4:a1", "02:4e:30:1a:c4:a2", "02:4e:30:1a:c4:a3"}
	if diff := cmp.Diff(want, r.Addresses()); diff != "" {
		t.Errorf("Addresses() mismatch (-want +got):\n%s", diff)
	}
}

func TestParse_Empty(t *testing.T) {
	r := mustParse(t, "")
	if r.Len() != 0 || len(r.ResolveAll()) != 0 {
		t.Errorf("empty registry has %d devices", r.Len())
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"not yaml", "lounge: [", ErrInvalidFile},
		{"top level list", "- lounge\n- bedroom\n", ErrInvalidFile},
		{"group not a mapping", "lounge: 02:4e:30:1a:c4:9f\n", ErrInvalidFile},
		{"bad address", "lounge:\n  left: not-a-mac\n", ErrInvalidAddress},
		{"address not scalar", "lounge:\n  left: [1, 2]\n", ErrInvalidAddress},
		{"duplicate address", "lounge:\n  left: 02:4e:30:1a:c4:9f\nbedroom:\n  window: 02:4E:30:1A:C4:9F\n", ErrDuplicateAddress},
		{"duplicate device in group", "lounge:\n  left: 02:4e:30:1a:c4:9f\n  LEFT: 02:4e:30:1a:c4:a0\n", ErrDuplicateName},
		{"name with slash", "lounge:\n  left/right: 02:4e:30:1a:c4:9f\n", ErrInvalidName},
		{"empty group name", "'':\n  left: 02:4e:30:1a:c4:9f\n", ErrInvalidName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("Parse() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "devices.yaml")
	if err := os.WriteFile(path, []byte(testDevices), 0600); err != nil {
		t.Fatalf("failed to write devices file: %v", err)
	}

	r, err := LoadFile(path, nil)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if r.Len() != 5 {
		t.Errorf("Len() = %d, want 5", r.Len())
	}

	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml"), nil); err == nil {
		t.Error("LoadFile() expected error for missing file")
	}
}

func TestDisplayName(t *testing.T) {
	tests := map[string]string{
		"lounge":      "Lounge",
		"LOUNGE LEFT": "Lounge left",
		"kitchen2":    "Kitchen2",
		"élan":        "Élan",
		"":            "",
		"x":           "X",
	}
	for in, want := range tests {
		if got := DisplayName(in); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", in, got, want)
		}
	}

	d := Device{Name: "left", Group: "lounge", Address: "02:4e:30:1a:c4:9f"}
	if d.DisplayName() != "Left" {
		t.Errorf("Device.DisplayName() = %q", d.DisplayName())
	}
	if d.String() != "lounge/left@02:4e:30:1a:c4:9f" {
		t.Errorf("String() = %q", d.String())
	}
}
