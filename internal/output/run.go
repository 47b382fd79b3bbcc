package output

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/dustin/go-humanize"

	"github.com/jmylchreest/rentwatch/internal/orchestrator"
	"github.com/jmylchreest/rentwatch/pkg/listing"
)

// PrintRun writes a run result. JSONL emits the combined listings one per
// line; text prints a per-strategy summary.
func (p *Printer) PrintRun(res orchestrator.RunResult) error {
	switch p.format {
	case FormatJSONL:
		return encodeLines(p, res.Combined)
	case FormatText:
		return p.runSummary(res)
	default:
		return p.encode(res)
	}
}

// PrintHistory writes run history records, oldest first.
func (p *Printer) PrintHistory(records []orchestrator.ScrapeAttemptRecord) error {
	if records == nil {
		records = []orchestrator.ScrapeAttemptRecord{}
	}
	switch p.format {
	case FormatJSONL:
		return encodeLines(p, records)
	case FormatText:
		tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTIME\tMODEL\tAI\tMANUAL\tPARTIAL")
		for _, r := range records {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%t\n",
				r.ID, r.Timestamp.Format("2006-01-02 15:04:05"), r.Model,
				r.AI.Processed, r.Manual.Processed, r.Partial)
		}
		return tw.Flush()
	default:
		return p.encode(records)
	}
}

// PrintListings writes stored listings.
func (p *Printer) PrintListings(listings []listing.Listing) error {
	if listings == nil {
		listings = []listing.Listing{}
	}
	switch p.format {
	case FormatJSONL:
		return encodeLines(p, listings)
	case FormatText:
		tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tRENT\tAREA\tTITLE\tURL")
		for _, l := range listings {
			fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", l.ID, intOrDash(l.Rent), intOrDash(l.Area), strOrDash(l.Title), l.URL)
		}
		return tw.Flush()
	default:
		return p.encode(listings)
	}
}

func (p *Printer) runSummary(res orchestrator.RunResult) error {
	tw := tabwriter.NewWriter(p.w, 0, 4, 2, ' ', 0)

	status := string(res.Status)
	if res.Partial {
		status += " (partial)"
	}
	fmt.Fprintf(tw, "index\t%s\n", res.IndexURL)
	fmt.Fprintf(tw, "status\t%s\n", status)
	if res.Error != "" {
		fmt.Fprintf(tw, "error\t%s\n", res.Error)
	}
	if res.Model != "" {
		fmt.Fprintf(tw, "model\t%s\n", res.Model)
	}
	fmt.Fprintf(tw, "listings\t%d\n", len(res.Combined))

	if res.Record != nil {
		fmt.Fprintln(tw)
		fmt.Fprintln(tw, "STRATEGY\tPROCESSED\tAVG TIME\tAVG SELECTOR\tAVG MEMORY")
		writeStats(tw, listing.StrategyAI, res.Record.AI)
		writeStats(tw, listing.StrategyManual, res.Record.Manual)
	}
	return tw.Flush()
}

func writeStats(w io.Writer, s listing.Strategy, st orchestrator.StrategyStats) {
	selector := "-"
	if st.AvgSelectorTime != nil {
		selector = humanize.FtoaWithDigits(*st.AvgSelectorTime, 2) + "s"
	}
	fmt.Fprintf(w, "%s\t%d\t%ss\t%s\t%s\n",
		s, st.Processed,
		humanize.FtoaWithDigits(st.AvgElapsedTime, 2),
		selector,
		humanize.IBytes(uint64(st.AvgMemoryUsage*(1<<20))))
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return humanize.Comma(int64(*v))
}

func strOrDash(v *string) string {
	if v == nil {
		return "-"
	}
	return *v
}
