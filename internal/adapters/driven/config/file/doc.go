// Package file loads the pipeline configuration from a TOML or YAML file.
//
// The configuration is read once at process start, validated, and then
// passed by value. Nothing in the core reads it from globals.
package file
