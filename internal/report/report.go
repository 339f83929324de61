package report

import (
	"fmt"
	"io"
	"sort"
	"time"

	"github.com/shelfmark/linkward/internal/checker"
	"github.com/shelfmark/linkward/internal/domain/linkcheck"
)

// statusOrder fixes the summary line ordering so repeated dry runs print
// byte-identical output.
var statusOrder = []linkcheck.Status{
	linkcheck.StatusOK,
	linkcheck.StatusBroken,
	linkcheck.StatusRedirect,
	linkcheck.StatusLoginRequired,
	linkcheck.StatusTimeout,
	linkcheck.StatusDNSError,
	linkcheck.StatusSSLError,
	linkcheck.StatusConnectionError,
	linkcheck.StatusBlocked,
	linkcheck.StatusUnknown,
}

// Write renders the human-readable end-of-batch report. Convenience output
// only; nothing parses it.
func Write(w io.Writer, sum *checker.Summary) {
	fmt.Fprintf(w, "\nLink check finished in %s\n", sum.Elapsed.Round(10*time.Millisecond))
	fmt.Fprintf(w, "Targets: %d  checked: %d  skipped: %d\n",
		sum.Total, sum.Total-len(sum.Skipped), len(sum.Skipped))

	fmt.Fprintln(w, "\nBy status:")
	for _, st := range statusOrder {
		if n := sum.ByStatus[st]; n > 0 {
			fmt.Fprintf(w, "  %-17s %d\n", st, n)
		}
	}
	if sum.SoftNotFound > 0 {
		fmt.Fprintf(w, "  %-17s %d\n", "soft-404", sum.SoftNotFound)
	}

	writeDomains(w, sum)
	writeBroken(w, sum)
	writeSkipped(w, sum)
}

func writeDomains(w io.Writer, sum *checker.Summary) {
	domains := sum.Domains
	var withBroken int
	for _, d := range domains {
		if d.TotalBroken > 0 {
			withBroken++
		}
	}
	if withBroken == 0 {
		return
	}

	sort.Slice(domains, func(i, j int) bool {
		if domains[i].TotalBroken != domains[j].TotalBroken {
			return domains[i].TotalBroken > domains[j].TotalBroken
		}
		return domains[i].Hostname < domains[j].Hostname
	})

	fmt.Fprintln(w, "\nDomains with broken links:")
	for _, d := range domains {
		if d.TotalBroken == 0 {
			continue
		}
		rate := float64(d.TotalBroken) / float64(d.TotalChecked) * 100
		fmt.Fprintf(w, "  %-40s %d/%d (%.0f%%)\n", d.Hostname, d.TotalBroken, d.TotalChecked, rate)
	}
}

func writeBroken(w io.Writer, sum *checker.Summary) {
	if len(sum.Broken) == 0 {
		return
	}

	byHost := make(map[string][]checker.BrokenItem)
	for _, b := range sum.Broken {
		byHost[b.Hostname] = append(byHost[b.Hostname], b)
	}
	hosts := make([]string, 0, len(byHost))
	for h := range byHost {
		hosts = append(hosts, h)
	}
	sort.Strings(hosts)

	fmt.Fprintf(w, "\nBroken links (%d):\n", len(sum.Broken))
	for _, h := range hosts {
		name := h
		if name == "" {
			name = "(invalid url)"
		}
		fmt.Fprintf(w, "  %s\n", name)
		items := byHost[h]
		sort.Slice(items, func(i, j int) bool { return items[i].URL < items[j].URL })
		for _, b := range items {
			label := string(b.Status)
			if b.Soft404 {
				label = "soft-404"
			} else if b.HTTPCode > 0 {
				label = fmt.Sprintf("%s (%d)", b.Status, b.HTTPCode)
			}
			fmt.Fprintf(w, "    %-12s %s\n", label, b.URL)
		}
	}
}

func writeSkipped(w io.Writer, sum *checker.Summary) {
	if len(sum.Skipped) == 0 {
		return
	}
	skipped := append([]checker.SkippedItem(nil), sum.Skipped...)
	sort.Slice(skipped, func(i, j int) bool { return skipped[i].URL < skipped[j].URL })

	fmt.Fprintf(w, "\nSkipped (%d, bot-hostile domains):\n", len(skipped))
	for _, s := range skipped {
		fmt.Fprintf(w, "  %s\n", s.URL)
	}
}
