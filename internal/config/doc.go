// Package config provides configuration structures and utilities for mailharvest.
// It defines the crawl limits, fetch settings, output selection and the
// optional per-site overrides read from the .mailharvest YAML file.
package config
