// Package config loads and validates the node configuration and the static
// site registry.
//
// The registry is the single source of device identity for the whole
// deployment: every site id, every controllable device and every probe a
// node may reference must appear here. The store layer validates all
// site/device arguments against it before touching the shared store.
//
// Configuration is loaded in three layers: hardcoded defaults, then the
// YAML file, then RIVERCORE_* environment variables.
package config
