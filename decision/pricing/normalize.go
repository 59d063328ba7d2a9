package pricing

import "strings"

// ParseOperatingSystem maps the operatingSystem attribute of a price list
// product. Variants outside the four supported families are rejected.
func ParseOperatingSystem(raw string) (OperatingSystem, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "linux":
		return OSLinux, true
	case "windows":
		return OSWindows, true
	case "rhel", "red hat enterprise linux":
		return OSRHEL, true
	case "suse", "suse linux":
		return OSSUSE, true
	default:
		return "", false
	}
}

// ClassifyGuestOS maps a free-form guest OS description from a VM inventory
// to a billing OS family. Anything unrecognized is billed as Linux.
func ClassifyGuestOS(raw string) OperatingSystem {
	s := strings.ToLower(raw)
	switch {
	case strings.Contains(s, "windows"):
		return OSWindows
	case strings.Contains(s, "red hat"), strings.Contains(s, "rhel"):
		return OSRHEL
	case strings.Contains(s, "suse"), strings.Contains(s, "sles"):
		return OSSUSE
	default:
		return OSLinux
	}
}

// ParseTenancy maps the tenancy attribute.
func ParseTenancy(raw string) (Tenancy, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "shared":
		return TenancyShared, true
	case "dedicated":
		return TenancyDedicated, true
	case "host":
		return TenancyHost, true
	default:
		return "", false
	}
}

// ParseTerm maps LeaseContractLength / purchaseTerm values such as "1yr" or "3 yr".
func ParseTerm(raw string) (Term, bool) {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "")
	switch s {
	case "1yr", "1year":
		return TermOneYr, true
	case "3yr", "3year", "3years":
		return TermThree, true
	default:
		return "", false
	}
}

// ParsePaymentOption maps PurchaseOption values such as "Partial Upfront".
func ParsePaymentOption(raw string) (PaymentOption, bool) {
	s := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(raw)), " ", "")
	switch s {
	case "noupfront", "no_upfront":
		return PaymentNoUpfront, true
	case "partialupfront", "partial_upfront":
		return PaymentPartialUpfront, true
	case "allupfront", "all_upfront":
		return PaymentAllUpfront, true
	default:
		return "", false
	}
}

// PurchaseOptionLabel renders a payment option the way AWS spells it.
func PurchaseOptionLabel(p PaymentOption) string {
	switch p {
	case PaymentNoUpfront:
		return "No Upfront"
	case PaymentPartialUpfront:
		return "Partial Upfront"
	case PaymentAllUpfront:
		return "All Upfront"
	default:
		return ""
	}
}

// SplitInstanceType splits "m5.xlarge" into family "m5" and size "xlarge".
func SplitInstanceType(sku string) (family, size string, ok bool) {
	family, size, ok = strings.Cut(sku, ".")
	if !ok || family == "" || size == "" {
		return "", "", false
	}
	return family, size, true
}
