// Package filesystem stores corpus versions under the processed root.
//
// Layout:
//
//	<root>/<version_id>/manifest.json
//	<root>/<version_id>/normalized/<source>.jsonl
//	<root>/<version_id>/run_manifest.json
//	<root>/<version_id>/runs/<run_id>.json
//
// A version directory is assembled under <root>/.staging-<version_id>-*
// and renamed into place, so readers never observe a partial version.
// Every file write goes through a temporary file, fsync and rename.
package filesystem
