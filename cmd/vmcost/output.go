package main

import (
	"fmt"
	"io"
	"slices"

	"github.com/goccy/go-json"

	"migration-cost/decision/estimation"
	"migration-cost/decision/inventory"
)

// =============================================================================
// OUTPUT FORMATTERS
// =============================================================================

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func outputTable(w io.Writer, result *estimation.BatchResult) error {
	s := result.Summary

	fmt.Fprintln(w)
	fmt.Fprintln(w, "╔══════════════════════════════════════════════════════════════╗")
	fmt.Fprintln(w, "║                    MIGRATION COST ESTIMATE                   ║")
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintf(w, "║  Region:                %-37s ║\n", result.Region)
	fmt.Fprintf(w, "║  VMs priced:            %-37s ║\n", fmt.Sprintf("%d of %d", s.Priced, s.VMCount))
	fmt.Fprintf(w, "║  Monthly Cost:          $%-36s ║\n", s.TotalMonthly.StringFixed(2))
	fmt.Fprintf(w, "║    Compute:             $%-36s ║\n", s.ComputeMonthly.StringFixed(2))
	fmt.Fprintf(w, "║    Storage:             $%-36s ║\n", s.StorageMonthly.StringFixed(2))
	fmt.Fprintf(w, "║  Annual Cost:           $%-36s ║\n", s.Annual.StringFixed(2))
	fmt.Fprintf(w, "║  Confidence:            %-37s ║\n", fmt.Sprintf("%.0f%%", s.Confidence*100))
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintln(w, "║  BY WORKLOAD CLASS                                           ║")
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")

	for _, class := range inventory.WorkloadClasses {
		if v, ok := s.ByWorkloadClass[class]; ok {
			fmt.Fprintf(w, "║  %-35s  $%-21s ║\n", class, v.StringFixed(2))
		}
	}

	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")
	fmt.Fprintln(w, "║  VIRTUAL MACHINES                                            ║")
	fmt.Fprintln(w, "╠══════════════════════════════════════════════════════════════╣")

	for _, r := range result.Results {
		name := truncate(r.VMID, 18)
		switch {
		case r.Estimate != nil && r.Status == estimation.VMPriced:
			fmt.Fprintf(w, "║  %-18s %-16s $%-21s ║\n", name, truncate(r.Recommendation.SKU, 16), r.Estimate.TotalMonthly.StringFixed(2))
		default:
			fmt.Fprintf(w, "║  %-18s %-40s ║\n", name, truncate(string(r.Status), 40))
		}
	}

	fmt.Fprintln(w, "╚══════════════════════════════════════════════════════════════╝")

	if s.IsIncomplete {
		fmt.Fprintf(w, "\n%d VM(s) were not priced; totals are incomplete.\n", s.VMCount-s.Priced)
	}
	return nil
}

func outputMarkdown(w io.Writer, result *estimation.BatchResult) error {
	s := result.Summary

	fmt.Fprintln(w, "## Migration Cost Estimate")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| Metric | Value |")
	fmt.Fprintln(w, "|--------|-------|")
	fmt.Fprintf(w, "| **Region** | %s |\n", result.Region)
	fmt.Fprintf(w, "| **VMs priced** | %d of %d |\n", s.Priced, s.VMCount)
	fmt.Fprintf(w, "| **Monthly Cost** | $%s |\n", s.TotalMonthly.StringFixed(2))
	fmt.Fprintf(w, "| **Annual Cost** | $%s |\n", s.Annual.StringFixed(2))
	fmt.Fprintf(w, "| **Confidence** | %.0f%% |\n", s.Confidence*100)

	fmt.Fprintln(w)
	fmt.Fprintln(w, "### Cost Breakdown")
	fmt.Fprintln(w)
	fmt.Fprintln(w, "| VM | Instance | Plan | Compute | Storage | Monthly |")
	fmt.Fprintln(w, "|----|----------|------|---------|---------|---------|")

	for _, r := range result.Results {
		if r.Estimate == nil || r.Status != estimation.VMPriced {
			fmt.Fprintf(w, "| %s | - | - | - | - | %s |\n", r.VMID, r.Status)
			continue
		}
		e := r.Estimate
		fmt.Fprintf(w, "| %s | %s | %s | $%s | $%s | $%s |\n",
			r.VMID, r.Recommendation.SKU, e.PricingPlanLabel,
			e.ComputeMonthly.StringFixed(2), e.StorageMonthly.StringFixed(2), e.TotalMonthly.StringFixed(2))
	}

	unpriced := slices.DeleteFunc(slices.Clone(result.Results), func(r estimation.VMResult) bool {
		return r.Status == estimation.VMPriced
	})
	if len(unpriced) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "### Not Priced")
		fmt.Fprintln(w)
		for _, r := range unpriced {
			fmt.Fprintf(w, "- **%s** (%s): %s\n", r.VMID, r.Status, reason(r))
		}
	}
	return nil
}

func reason(r estimation.VMResult) string {
	if r.Error == "" && r.Estimate != nil {
		return r.Estimate.Reason
	}
	return r.Error
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
