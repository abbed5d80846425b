package dispatch

import (
	"fmt"

	"github.com/nerrad567/am43-core/internal/device"
)

// TargetKind selects how a target resolves to drives.
type TargetKind string

const (
	TargetAll    TargetKind = "all"
	TargetGroup  TargetKind = "group"
	TargetDevice TargetKind = "device"

	// TargetExplicit marks drives handed to Dispatch already resolved.
	// It cannot be resolved again.
	TargetExplicit TargetKind = "explicit"
)

// Target names the drives an action applies to.
type Target struct {
	Kind TargetKind `json:"kind"`
	Name string     `json:"name,omitempty"`
}

// All targets every configured drive.
func All() Target { return Target{Kind: TargetAll} }

// Group targets the drives of one group.
func Group(name string) Target { return Target{Kind: TargetGroup, Name: name} }

// Device targets every drive with the given name.
func Device(name string) Target { return Target{Kind: TargetDevice, Name: name} }

// String returns the target in "kind" or "kind:name" form.
func (t Target) String() string {
	if t.Name == "" {
		return string(t.Kind)
	}
	return string(t.Kind) + ":" + t.Name
}

// Validate checks the target kind and name.
func (t Target) Validate() error {
	switch t.Kind {
	case TargetAll:
		return nil
	case TargetGroup, TargetDevice:
		if t.Name == "" {
			return fmt.Errorf("%w: %s target needs a name", ErrInvalidTarget, t.Kind)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidTarget, t.Kind)
	}
}

// Resolver expands targets into configured drives.
// *device.Registry satisfies this interface.
type Resolver interface {
	ResolveAll() []device.Device
	ResolveGroup(name string) ([]device.Device, error)
	ResolveDevice(name string) ([]device.Device, error)
}

// Resolve expands t through r, in declaration order.
func Resolve(r Resolver, t Target) ([]device.Device, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	switch t.Kind {
	case TargetGroup:
		return r.ResolveGroup(t.Name)
	case TargetDevice:
		return r.ResolveDevice(t.Name)
	default:
		return r.ResolveAll(), nil
	}
}
