// Package config loads client configuration from YAML or CUE files.
//
// Both formats decode into the same Config. CUE files are unified with the
// embedded #Config schema before decoding, so constraint violations are
// reported with CUE positions. Every loaded Config is then validated; a
// missing connection parameter is a fatal initialization error.
package config
