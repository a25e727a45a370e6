// Package fetcher downloads DCMTK support library archives.
//
// Run resolves the release from git, reads the vendor listing, then fetches
// every matching archive concurrently: each task writes the archive, unpacks
// it into the output directory and deletes it. Per-download outcomes are
// collected in a Report; only the marker, version and listing stages abort
// the run.
package fetcher
