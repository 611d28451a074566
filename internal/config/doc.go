// Package config provides configuration structures and utilities for threadscrape.
// It defines the options for fetching threads (bypass or direct), throttling,
// output, run history and the YAML file holding forum templates and
// per-site settings.
package config
