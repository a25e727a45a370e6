// Package archive unpacks downloaded zip archives.
//
// Every regular entry is written next to its destination and swapped in
// with go-update, so readers never observe a partially written file. An
// Extractor shared between goroutines serialises writes per destination
// path; when two archives carry the same file the last one wins.
package archive
