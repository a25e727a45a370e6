// Package common holds helpers shared by several services.
//
// It provides a small HTTP client wrapper with per-client timeouts and a
// typed StatusError, so callers can tell a rejected request apart from a
// transport failure.
//
//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common
