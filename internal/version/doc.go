// Package version exposes build metadata of the fetch-support-libs binary.
//
// Version, Commit and BuildTime are injected with -ldflags at build time.
// They describe this tool, not the DCMTK release it downloads for.
package version
