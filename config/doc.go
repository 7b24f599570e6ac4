// Package config loads the service configuration: a YAML file over built-in
// defaults, then CONTACTD_* and DB_* environment variables.
package config
