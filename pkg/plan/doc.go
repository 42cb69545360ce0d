// Package plan implements Wright's declarative plan model: TOML parsing,
// validation, variable substitution, MVP/phase merging, and a live-reload
// cache over a hold tree.
package plan
