// Package config holds wordcrawl's configuration: defaults, the optional
// YAML config file, and validation of the values a crawl starts from.
package config
