// Package discovery checks that configured AM43 drives are advertising
// before commands are sent to them.
//
// A Probe scans through the link transport up to Options.Attempts times.
// When a scan misses drives, the optional Restarter resets the radio stack
// (typically "systemctl restart bluetooth") before the next scan. The probe
// result is advisory only: callers log it and dispatch regardless.
//
// Usage:
//
//	probe := discovery.NewProbe(transport, discovery.Options{
//	    Restart: discovery.CommandRestarter([]string{"systemctl", "restart", "bluetooth"}),
//	}, logger)
//	report := probe.Run(ctx, registry.Addresses())
package discovery
