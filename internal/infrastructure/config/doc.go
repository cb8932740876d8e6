// Package config handles loading and validating the sensor network proxy
// configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with SENSORNET_* environment variables
//   - Validation of required fields
//   - Default value handling
//
// Command-line flags are applied by the caller after Load returns and take
// precedence over both the file and the environment.
//
// Security Considerations:
//   - Sensitive values (MQTT password, InfluxDB token) should be set via
//     environment variables
//   - The config file should have restricted permissions (0600)
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.Gateway.Interface, cfg.Gateway.Port)
package config
