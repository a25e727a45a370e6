package listing

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/dcmtk-tools/support-libs/internal/domain/supportlib"
	"github.com/dcmtk-tools/support-libs/internal/service/common"
)

func testSelection() supportlib.Selection {
	return supportlib.Selection{
		Release:    supportlib.Release{Version: "3.6.7"},
		Runtime:    supportlib.RuntimeDynamic,
		Conversion: supportlib.ConversionIconv,
		Arch:       supportlib.Arch64,
	}
}

// table renders a table with rows rows; the hrefs are placed in the first rows.
func table(rows int, hrefs ...string) string {
	var b strings.Builder

	b.WriteString("<table>\n")

	for i := 0; i < rows; i++ {
		href := fmt.Sprintf("filler-%d.txt", i)
		if i < len(hrefs) {
			href = hrefs[i]
		}

		fmt.Fprintf(&b, "<tr><td><img src=\"icon.gif\"></td><td><a href=%q>%s</a></td><td>1.2M</td></tr>\n", href, href)
	}

	b.WriteString("</table>\n")

	return b.String()
}

func page(tables ...string) string {
	return "<html><head><title>Index of /support</title></head><body>" + strings.Join(tables, "<hr>") + "</body></html>"
}

// TestParse_SmallTablesExcluded verifies that only the 25-row table contributes links.
func TestParse_SmallTablesExcluded(t *testing.T) {
	t.Parallel()

	body := page(
		table(25,
			"dcmtk-3.6.7-win64-support-MD-iconv-msvc-15.8.zip",
			"dcmtk-3.6.7-win64-support-MT-iconv-msvc-15.8.zip",
			"dcmtk-3.6.7-win32-support-MD-iconv-msvc-15.8.zip",
			"dcmtk-3.6.7-win64-support-MD-iconv-msvc-17.0.zip",
		),
		table(5,
			"dcmtk-3.6.7-win64-support-MD-iconv-from-small-table.zip",
		),
	)

	base, err := url.Parse("https://dicom.example/download/dcmtk/dcmtk367/support/")
	require.NoError(t, err)

	links, err := Parse(strings.NewReader(body), base, testSelection(), 20)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://dicom.example/download/dcmtk/dcmtk367/support/dcmtk-3.6.7-win64-support-MD-iconv-msvc-15.8.zip",
		"https://dicom.example/download/dcmtk/dcmtk367/support/dcmtk-3.6.7-win64-support-MD-iconv-msvc-17.0.zip",
	}, links)
}

// TestParse_ThresholdBoundary checks that exactly minRows rows are accepted.
func TestParse_ThresholdBoundary(t *testing.T) {
	t.Parallel()

	href := "dcmtk-3.6.7-win64-support-MD-iconv.zip"

	links, err := Parse(strings.NewReader(page(table(20, href))), nil, testSelection(), 20)
	require.NoError(t, err)
	require.Equal(t, []string{href}, links)

	links, err = Parse(strings.NewReader(page(table(19, href))), nil, testSelection(), 20)
	require.NoError(t, err)
	require.Empty(t, links)
}

// TestParse_DuplicatesAndAbsoluteLinks keeps page order, duplicates and absolute hrefs.
func TestParse_DuplicatesAndAbsoluteLinks(t *testing.T) {
	t.Parallel()

	abs := "https://mirror.example/dcmtk-3.6.7-win64-support-MD-iconv.zip"
	rel := "/files/dcmtk-3.6.7-win64-support-MD-iconv.zip"

	base, err := url.Parse("http://dicom.example/support/index.html")
	require.NoError(t, err)

	links, err := Parse(strings.NewReader(page(table(22, rel, abs, rel))), base, testSelection(), 20)
	require.NoError(t, err)
	require.Equal(t, []string{
		"http://dicom.example/files/dcmtk-3.6.7-win64-support-MD-iconv.zip",
		abs,
		"http://dicom.example/files/dcmtk-3.6.7-win64-support-MD-iconv.zip",
	}, links)
}

// TestParse_NestedTableRowsCountSeparately ensures a small table nested in a
// cell of a large one is judged on its own rows.
func TestParse_NestedTableRowsCountSeparately(t *testing.T) {
	t.Parallel()

	nested := table(2, "dcmtk-3.6.7-win64-support-MD-iconv-nested.zip")
	outer := "<table><tr><td>" + nested + "</td></tr></table>"

	links, err := Parse(strings.NewReader(page(outer)), nil, testSelection(), 2)
	require.NoError(t, err)
	require.Equal(t, []string{"dcmtk-3.6.7-win64-support-MD-iconv-nested.zip"}, links)
}

// wrapping renders a 25-row table whose first cell holds inner.
func wrapping(inner string) string {
	return "<table><tr><td>" + inner + "</td></tr>\n" + strings.Repeat("<tr><td>filler</td></tr>\n", 24) + "</table>"
}

// TestParse_NestedSmallTableStaysExcluded keeps links of a small nested table
// out even when the enclosing table is large enough.
func TestParse_NestedSmallTableStaysExcluded(t *testing.T) {
	t.Parallel()

	nested := table(5, "dcmtk-3.6.7-win64-support-MD-iconv-nested.zip")

	links, err := Parse(strings.NewReader(page(wrapping(nested))), nil, testSelection(), 20)
	require.NoError(t, err)
	require.Empty(t, links)
}

// TestParse_NestedLargeTableLinkedOnce reports a link of a large nested table
// once, for the nested table only.
func TestParse_NestedLargeTableLinkedOnce(t *testing.T) {
	t.Parallel()

	href := "dcmtk-3.6.7-win64-support-MD-iconv-nested.zip"
	nested := table(21, href)

	links, err := Parse(strings.NewReader(page(wrapping(nested))), nil, testSelection(), 20)
	require.NoError(t, err)
	require.Equal(t, []string{href}, links)
}

// TestParse_CellLinkBeforeNestedTable takes the cell's own anchor and ignores
// anchors of a table nested ahead of it.
func TestParse_CellLinkBeforeNestedTable(t *testing.T) {
	t.Parallel()

	own := "dcmtk-3.6.7-win64-support-MD-iconv-own.zip"
	nested := table(3, "dcmtk-3.6.7-win64-support-MD-iconv-nested.zip")

	links, err := Parse(strings.NewReader(page(wrapping(nested+"<a href=\""+own+"\">own</a>"))), nil, testSelection(), 20)
	require.NoError(t, err)
	require.Equal(t, []string{own}, links)
}

// TestURL expands placeholders.
func TestURL(t *testing.T) {
	t.Parallel()

	got, err := URL("https://dicom.example/dcmtk{dotless}/support/?v={version}", supportlib.Release{Version: "3.6.7"})
	require.NoError(t, err)
	require.Equal(t, "https://dicom.example/dcmtk367/support/?v=3.6.7", got)

	_, err = URL("dcmtk{dotless}", supportlib.Release{Version: "3.6.7"})
	require.ErrorIs(t, err, ErrListing)
}

// TestFetch_ResolvesAgainstListing serves a listing over HTTP and checks absolute results.
func TestFetch_ResolvesAgainstListing(t *testing.T) {
	t.Parallel()

	body := page(table(21, "dcmtk-3.6.7-win64-support-MD-iconv.zip"))

	mux := http.NewServeMux()
	mux.HandleFunc("/dcmtk367/support/", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(body))
	})

	ts := httptest.NewServer(mux)
	defer ts.Close()

	fetcher := NewFetcher(common.NewClient(), 20)

	links, err := fetcher.Fetch(context.Background(), ts.URL+"/dcmtk367/support/", testSelection())
	require.NoError(t, err)
	require.Equal(t, []string{ts.URL + "/dcmtk367/support/dcmtk-3.6.7-win64-support-MD-iconv.zip"}, links)
}

// TestFetch_EmptyIsNotAnError returns no links and no error for a page without matches.
func TestFetch_EmptyIsNotAnError(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(page(table(30))))
	}))
	defer ts.Close()

	links, err := NewFetcher(common.NewClient(), 20).Fetch(context.Background(), ts.URL, testSelection())
	require.NoError(t, err)
	require.Empty(t, links)
}

// TestFetch_StatusFailureYieldsNoLinks treats an unpublished listing as empty.
func TestFetch_StatusFailureYieldsNoLinks(t *testing.T) {
	t.Parallel()

	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError} {
		ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))

		links, err := NewFetcher(common.NewClient(), 20).Fetch(context.Background(), ts.URL, testSelection())
		require.NoError(t, err, status)
		require.Empty(t, links, status)

		ts.Close()
	}
}

// TestFetch_TransportFailureIsFatal wraps connection failures with ErrListing.
func TestFetch_TransportFailureIsFatal(t *testing.T) {
	t.Parallel()

	ts := httptest.NewServer(http.NotFoundHandler())
	addr := ts.URL
	ts.Close()

	_, err := NewFetcher(common.NewClient(), 20).Fetch(context.Background(), addr, testSelection())
	require.ErrorIs(t, err, ErrListing)

	_, ok := common.IsStatusError(err)
	require.False(t, ok)
}
