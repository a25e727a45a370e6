// Package git resolves the DCMTK release of the working tree.
//
// The Resolver asks git for the most recent tag reachable from HEAD and turns
// it into a supportlib.Release. Commands go through the Runner interface so
// tests can substitute canned output for the real binary.
package git
