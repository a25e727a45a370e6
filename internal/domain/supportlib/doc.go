// Package supportlib contains the domain types used to pick DCMTK support
// library archives: the enumerated build variants (Runtime, Conversion,
// Arch), the Release resolved from a git tag, and the Selection predicate
// that decides whether a listing link belongs to the requested build.
package supportlib
