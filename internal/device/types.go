package device

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/nerrad567/am43-core/internal/link"
)

// Device is one configured blind drive.
// Identity is the address; the same name may appear in several groups.
type Device struct {
	Name    string       `json:"name"`
	Address link.Address `json:"address"`
	Group   string       `json:"group"`
}

// DisplayName returns the name used as the response key: the first letter
// upper-cased and the rest lower-cased ("lounge LEFT" -> "Lounge left").
func (d Device) DisplayName() string {
	return DisplayName(d.Name)
}

// String returns a human-readable representation of the device.
func (d Device) String() string {
	return d.Group + "/" + d.Name + "@" + d.Address.String()
}

// DisplayName capitalises name: first rune upper case, the rest lower case.
func DisplayName(name string) string {
	if name == "" {
		return ""
	}
	r, size := utf8.DecodeRuneInString(name)
	return string(unicode.ToUpper(r)) + strings.ToLower(name[size:])
}

// Group is a named, ordered collection of devices.
type Group struct {
	Name    string   `json:"name"`
	Devices []Device `json:"devices"`
}
