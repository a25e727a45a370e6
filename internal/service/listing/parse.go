package listing

import (
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/dcmtk-tools/support-libs/internal/domain/supportlib"
)

// Parse reads an HTML page and returns the absolute URLs of every anchor,
// in page order, whose href satisfies sel. Tables with fewer than minRows
// rows are ignored. Duplicates are kept.
func Parse(body io.Reader, base *url.URL, sel supportlib.Selection, minRows int) ([]string, error) {
	doc, err := html.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse listing html: %w", err)
	}

	var links []string

	for _, table := range findAll(doc, atom.Table) {
		rows := tableRows(table)
		if len(rows) < minRows {
			continue
		}

		for _, row := range rows {
			for _, cell := range rowCells(row) {
				href, ok := anchorHref(cell)
				if !ok || !sel.Matches(href) {
					continue
				}

				ref, err := url.Parse(strings.TrimSpace(href))
				if err != nil {
					continue
				}

				if base != nil {
					ref = base.ResolveReference(ref)
				}

				links = append(links, ref.String())
			}
		}
	}

	return links, nil
}

// findAll returns every element with the given atom in document order,
// nested ones included.
func findAll(root *html.Node, a atom.Atom) []*html.Node {
	var found []*html.Node

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.DataAtom == a {
			found = append(found, n)
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(root)

	return found
}

// tableRows returns the rows owned by table. Rows of nested tables belong
// to the nested table and are not counted here.
func tableRows(table *html.Node) []*html.Node {
	var rows []*html.Node

	var walk func(*html.Node)

	walk = func(n *html.Node) {
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if c.Type != html.ElementNode {
				continue
			}

			switch c.DataAtom {
			case atom.Tr:
				rows = append(rows, c)
			case atom.Thead, atom.Tbody, atom.Tfoot:
				walk(c)
			}
		}
	}

	walk(table)

	return rows
}

// rowCells returns the td and th children of a row.
func rowCells(row *html.Node) []*html.Node {
	var cells []*html.Node

	for c := row.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && (c.DataAtom == atom.Td || c.DataAtom == atom.Th) {
			cells = append(cells, c)
		}
	}

	return cells
}

// anchorHref returns the href of the first anchor inside cell. Anchors of
// tables nested in the cell belong to those tables and are not considered.
func anchorHref(cell *html.Node) (string, bool) {
	for c := cell.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}

		switch c.DataAtom {
		case atom.Table:
			continue
		case atom.A:
			for _, attr := range c.Attr {
				if attr.Namespace == "" && attr.Key == "href" {
					return attr.Val, true
				}
			}
		}

		if href, ok := anchorHref(c); ok {
			return href, true
		}
	}

	return "", false
}
