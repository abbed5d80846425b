// Package config handles loading and validating the AM43 drive service
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with environment variables (AM43_*)
//   - Validation of required fields
//   - Default value handling
//
// The device registry lives in a separate file (devices_file) owned by the
// device package; this package only carries its path.
//
// Security Considerations:
//   - Broker credentials should be set via environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load(config.PathFromEnv())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.API.Port)
package config
