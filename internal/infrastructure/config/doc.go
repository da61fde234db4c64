// Package config loads and validates PolyAutomate configuration.
//
// Configuration comes from a YAML file with environment variable
// overrides (POLYAUTOMATE_SECTION_KEY). Defaults are applied first,
// then the file, then the environment.
//
// # Usage
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//
// # Security
//
// The JWT signing secret must never be committed to the config file in
// production deployments; set POLYAUTOMATE_JWT_SECRET instead. Load
// refuses secrets shorter than 32 characters.
package config
