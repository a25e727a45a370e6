package fetcher

import (
	"github.com/dcmtk-tools/support-libs/internal/domain/supportlib"
)

// Outcome classifies how a single download ended.
type Outcome int

const (
	// OutcomeExtracted means the archive was written, unpacked and removed.
	OutcomeExtracted Outcome = iota + 1
	// OutcomeSkipped means the server answered with a non-2xx status.
	OutcomeSkipped
	// OutcomeFailed means a transport, write or extraction error aborted the task.
	OutcomeFailed
)

// String implements fmt.Stringer.
func (o Outcome) String() string {
	switch o {
	case OutcomeExtracted:
		return "extracted"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Result describes one matched archive URL after its task finished.
type Result struct {
	// URL is the archive address from the listing.
	URL string
	// File is the local archive name derived from the URL.
	File string
	// Outcome tells how the task ended.
	Outcome Outcome
	// StatusCode is set for skipped downloads.
	StatusCode int
	// Entries lists the files unpacked from the archive.
	Entries []string
	// Err is set for failed downloads.
	Err error
}

// Report is the outcome of a whole run.
type Report struct {
	// Release is the DCMTK release resolved from git.
	Release supportlib.Release
	// ListingURL is the page the archive links were read from.
	ListingURL string
	// Results holds one entry per matched URL, in listing order.
	Results []Result
}

// Counts returns the number of results per outcome.
func (r *Report) Counts() (extracted, skipped, failed int) {
	if r == nil {
		return 0, 0, 0
	}

	for _, res := range r.Results {
		switch res.Outcome {
		case OutcomeExtracted:
			extracted++
		case OutcomeSkipped:
			skipped++
		case OutcomeFailed:
			failed++
		}
	}

	return extracted, skipped, failed
}
