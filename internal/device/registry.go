package device

import (
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/am43-core/internal/link"
)

// Logger defines the logging interface used by the Registry.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Registry resolves target specifications into configured devices.
//
// A Registry is immutable once loaded: every method is safe for concurrent
// use and returns copies in declaration order.
type Registry struct {
	groups []Group
	byName map[string]int // group name -> index into groups
}

// LoadFile reads a devices file.
//
// The file is a YAML mapping of group names to mappings of device names to
// addresses:
//
//	lounge:
//	  left: "02:4e:30:1a:c4:9f"
//	  right: "02:4e:30:1a:c4:a0"
//	bedroom:
//	  window: "02:4e:30:1a:c4:a1"
//
// Parameters:
//   - path: Path to the devices file
//   - logger: Optional logger (nil for none)
//
// Returns:
//   - *Registry: Loaded registry
//   - error: If the file cannot be read or is invalid
func LoadFile(path string, logger Logger) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading devices file: %w", err)
	}
	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if logger == nil {
		logger = noopLogger{}
	}
	logger.Info("device registry loaded", "path", path, "groups", len(r.groups), "devices", r.Len())
	return r, nil
}

// Parse builds a registry from devices file content.
//
// Group order and device order follow the file. Device names are matched
// case-insensitively and stored in lower case; group names are kept as
// written. Addresses are normalised to lower-case colon form.
func Parse(data []byte) (*Registry, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}

	r := &Registry{byName: make(map[string]int)}
	if len(doc.Content) == 0 {
		return r, nil
	}

	root := doc.Content[0]
	if root.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%w: top level must be a mapping of groups (line %d)", ErrInvalidFile, root.Line)
	}

	seenAddr := make(map[link.Address]Device)
	for i := 0; i+1 < len(root.Content); i += 2 {
		keyNode, valNode := root.Content[i], root.Content[i+1]

		groupName := strings.TrimSpace(keyNode.Value)
		if err := validateName(groupName); err != nil {
			return nil, fmt.Errorf("group at line %d: %w", keyNode.Line, err)
		}
		if _, dup := r.byName[groupName]; dup {
			return nil, fmt.Errorf("%w: group %q (line %d)", ErrDuplicateName, groupName, keyNode.Line)
		}
		if valNode.Kind != yaml.MappingNode {
			return nil, fmt.Errorf("%w: group %q must map device names to addresses (line %d)", ErrInvalidFile, groupName, valNode.Line)
		}

		group := Group{Name: groupName}
		for j := 0; j+1 < len(valNode.Content); j += 2 {
			nameNode, addrNode := valNode.Content[j], valNode.Content[j+1]

			name := strings.ToLower(strings.TrimSpace(nameNode.Value))
			if err := validateName(name); err != nil {
				return nil, fmt.Errorf("device in group %q at line %d: %w", groupName, nameNode.Line, err)
			}
			if slices.ContainsFunc(group.Devices, func(d Device) bool { return d.Name == name }) {
				return nil, fmt.Errorf("%w: device %q in group %q (line %d)", ErrDuplicateName, name, groupName, nameNode.Line)
			}
			if addrNode.Kind != yaml.ScalarNode {
				return nil, fmt.Errorf("%w: device %q in group %q must have a scalar address (line %d)", ErrInvalidAddress, name, groupName, addrNode.Line)
			}

			addr, err := link.ParseAddress(addrNode.Value)
			if err != nil {
				return nil, fmt.Errorf("%w: device %q in group %q: %w", ErrInvalidAddress, name, groupName, err)
			}
			if prev, dup := seenAddr[addr]; dup {
				return nil, fmt.Errorf("%w: %s used by %s/%s and %s/%s", ErrDuplicateAddress, addr, prev.Group, prev.Name, groupName, name)
			}

			d := Device{Name: name, Address: addr, Group: groupName}
			seenAddr[addr] = d
			group.Devices = append(group.Devices, d)
		}

		r.byName[groupName] = len(r.groups)
		r.groups = append(r.groups, group)
	}

	return r, nil
}

// validateName rejects names that cannot be addressed through the API.
func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if strings.ContainsAny(name, "/?#") {
		return fmt.Errorf("%w: %q contains a reserved character", ErrInvalidName, name)
	}
	return nil
}

// Len returns the number of configured devices.
func (r *Registry) Len() int {
	n := 0
	for _, g := range r.groups {
		n += len(g.Devices)
	}
	return n
}

// Groups returns every group with its devices, in declaration order.
func (r *Registry) Groups() []Group {
	out := make([]Group, len(r.groups))
	for i, g := range r.groups {
		out[i] = Group{Name: g.Name, Devices: slices.Clone(g.Devices)}
	}
	return out
}

// ResolveAll returns every configured device across all groups, in
// declaration order.
func (r *Registry) ResolveAll() []Device {
	out := make([]Device, 0, r.Len())
	for _, g := range r.groups {
		out = append(out, g.Devices...)
	}
	return out
}

// ResolveGroup returns the devices of one group.
// Returns ErrUnknownGroup if the group is not configured.
func (r *Registry) ResolveGroup(name string) ([]Device, error) {
	idx, ok := r.byName[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownGroup, name)
	}
	return slices.Clone(r.groups[idx].Devices), nil
}

// ResolveDevice returns every device named name, across all groups, in
// declaration order. Names match case-insensitively.
// Returns ErrUnknownDevice if no group contains the name.
func (r *Registry) ResolveDevice(name string) ([]Device, error) {
	want := strings.ToLower(strings.TrimSpace(name))
	var out []Device
	for _, g := range r.groups {
		for _, d := range g.Devices {
			if d.Name == want {
				out = append(out, d)
			}
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDevice, name)
	}
	return out, nil
}

// Addresses returns every configured address in declaration order.
func (r *Registry) Addresses() []link.Address {
	devices := r.ResolveAll()
	out := make([]link.Address, len(devices))
	for i, d := range devices {
		out[i] = d.Address
	}
	return out
}

// Lookup returns the device configured at addr.
func (r *Registry) Lookup(addr link.Address) (Device, bool) {
	for _, g := range r.groups {
		for _, d := range g.Devices {
			if d.Address == addr {
				return d, true
			}
		}
	}
	return Device{}, false
}
