// Package config handles loading and validating the IoT bridge configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with IOTBRIDGE_* environment variables
//   - Validation of required fields, reported together
//   - Default value handling
//
// Device secrets never live here. They are held by the identity store and
// seeded from identities.seed_file, which should have restricted permissions (0600).
//
// Usage:
//
//	cfg, err := config.Load("configs/iotbridge.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Platform.ServerURI)
package config
