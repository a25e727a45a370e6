// Package listing fetches the vendor's directory listing page and extracts
// the archive links that match a supportlib.Selection.
//
// Only tables with at least a minimum number of rows are scanned, which
// keeps navigation and footer tables of the page out of the result.
package listing
