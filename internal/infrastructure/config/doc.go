// Package config handles loading and validating the controller configuration.
//
// This package manages:
//   - Loading configuration from YAML files
//   - Overriding with CARDCORE_* environment variables
//   - Validation of required fields and struct tags
//   - Default value handling
//
// Security Considerations:
//   - Sensitive values (passwords, tokens) should be set via environment variables
//   - The JWT secret guards every mutating API endpoint
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(cfg.ScanInterval())
package config
