// Package rawtree reads the raw tree written by connectors.
//
// The first path segment below the raw root names the source. Hidden
// files and directories are ignored. Connector sidecar manifests
// (*_manifest.csv, manifest_*.csv) attach metadata to the files they list
// and may declare a file's format explicitly. Sidecars are hashed as part
// of the corpus but never normalised as documents.
//
// The pipeline never writes below the raw root.
package rawtree
