// Package device provides the device registry for the AM43 drive service.
//
// The registry is the read-only catalogue of configured blind drives,
// loaded once at startup from the devices file. It resolves dispatch
// targets (every device, one group, or one device name) into ordered
// device lists.
//
// # Devices File
//
// A YAML mapping of group names to mappings of device names to hardware
// addresses. Declaration order is significant: it is the order devices are
// contacted and reported in.
//
//	lounge:
//	  left: "02:4e:30:1a:c4:9f"
//	  right: "02:4e:30:1a:c4:a0"
//	bedroom:
//	  window: "02:4e:30:1a:c4:a1"
//
// Group names are case-sensitive. Device names are case-insensitive and
// may repeat across groups; a device-name target resolves to every match.
// Addresses must be unique.
//
// # Usage
//
//	reg, err := device.LoadFile(cfg.DevicesFile, log)
//	if err != nil {
//	    return err
//	}
//
//	targets, err := reg.ResolveGroup("lounge")
//	if errors.Is(err, device.ErrUnknownGroup) {
//	    // reject the request
//	}
//
// # Thread Safety
//
// A loaded Registry is immutable and safe for concurrent use.
package device
