package progress

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"

	"github.com/cwygoda/nftfolder/internal/domain"
)

// WriteSummary prints the run tallies followed by every failure.
func WriteSummary(w io.Writer, stats domain.Stats) {
	fmt.Fprintf(w, "%d discovered, %d completed (%d saved, %d skipped), %d failed, %s written\n",
		stats.Discovered,
		stats.Completed,
		stats.Saved,
		stats.Skipped,
		len(stats.Failures),
		humanize.IBytes(uint64(stats.Bytes)),
	)
	if len(stats.Failures) == 0 {
		return
	}

	fmt.Fprintf(w, "\n%s failures:\n", humanize.Comma(int64(len(stats.Failures))))
	for _, o := range stats.Failures {
		fmt.Fprintf(w, "  %s: %s\n", displayName(o.Name), o.Reason())
	}
}

func displayName(name string) string {
	if name == "" {
		return "(unnamed)"
	}
	return name
}
