package services

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/mattn/go-runewidth"

	"listing-leads/models"
)

// PrintReport writes a human readable run summary.
func PrintReport(w io.Writer, r *models.RunReport) {
	sep := strings.Repeat("═", 64)
	thin := strings.Repeat("─", 64)

	mode := "incremental"
	if r.FullRebuild {
		mode = "full rebuild"
	}

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  LEAD PIPELINE RUN · %s (%s)\033[0m\n", r.TenantID, mode)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	fmt.Fprintf(w, "\033[1;33m  Ingestion\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Raw records read   : \033[1m%d\033[0m\n", r.RawRead)
	fmt.Fprintf(w, "  Ingested           : \033[1m%d\033[0m\n", r.Ingested)
	fmt.Fprintf(w, "  Price observations : \033[1m%d\033[0m new\n", r.PricesAppended)
	fmt.Fprintf(w, "  Watermark          : %s → %s\n", formatWatermark(r.WatermarkFrom.IsZero(), r.WatermarkFrom.Format("2006-01-02 15:04:05")),
		formatWatermark(r.WatermarkTo.IsZero(), r.WatermarkTo.Format("2006-01-02 15:04:05")))
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Dropped (%d)\033[0m\n", r.Dropped())
	fmt.Fprintf(w, "  %s\n", thin)
	printCounts(w, "hard", r.HardFailures)
	printCounts(w, "filtered", r.Filtered)
	if r.Dropped() == 0 {
		fmt.Fprintf(w, "  Nothing dropped\n")
	}
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Leads\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Inserted  : \033[1;32m%d\033[0m\n", r.LeadsInserted)
	fmt.Fprintf(w, "  Updated   : \033[1m%d\033[0m\n", r.LeadsUpdated)
	fmt.Fprintf(w, "  Unchanged : %d\n", r.LeadsUnchanged)
	fmt.Fprintf(w, "  Duplicate groups : %d (phone %d, location %d)\n", r.Groups, r.PhoneGroups, r.LocationGroups)
	fmt.Fprintln(w)

	fmt.Fprintf(w, "\033[1;33m  Top %d Contactable Leads\033[0m\n", len(r.TopLeads))
	fmt.Fprintf(w, "  %s\n", thin)
	if len(r.TopLeads) == 0 {
		fmt.Fprintf(w, "  No contactable leads\n")
	}
	for i, l := range r.TopLeads {
		title := runewidth.FillRight(runewidth.Truncate(l.Title, 34, "..."), 34)
		zone := runewidth.FillRight(runewidth.Truncate(l.Zone, 16, "..."), 16)
		fmt.Fprintf(w, "  \033[1m%d.\033[0m %s %s \033[1;32m%6.2f\033[0m\n", i+1, title, zone, l.Score)
	}

	fmt.Fprintf(w, "\n  Took %s\n", r.Duration.Round(1e6))
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)
}

func formatWatermark(zero bool, s string) string {
	if zero {
		return "beginning"
	}
	return s
}

func printCounts(w io.Writer, label string, counts map[string]int) {
	reasons := make([]string, 0, len(counts))
	for reason := range counts {
		reasons = append(reasons, reason)
	}
	sort.Slice(reasons, func(i, j int) bool {
		if counts[reasons[i]] != counts[reasons[j]] {
			return counts[reasons[i]] > counts[reasons[j]]
		}
		return reasons[i] < reasons[j]
	})
	for _, reason := range reasons {
		name := runewidth.FillRight(runewidth.Truncate(reason, 34, "..."), 34)
		fmt.Fprintf(w, "  %-9s %s %d\n", label, name, counts[reason])
	}
}
