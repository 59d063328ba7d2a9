package pricing

import "sort"

// regionLocations maps region codes to the "location" attribute AWS uses in
// price list products and GetProducts filters.
var regionLocations = map[string]string{
	"us-east-1":      "US East (N. Virginia)",
	"us-east-2":      "US East (Ohio)",
	"us-west-1":      "US West (N. California)",
	"us-west-2":      "US West (Oregon)",
	"ca-central-1":   "Canada (Central)",
	"ca-west-1":      "Canada West (Calgary)",
	"eu-west-1":      "EU (Ireland)",
	"eu-west-2":      "EU (London)",
	"eu-west-3":      "EU (Paris)",
	"eu-central-1":   "EU (Frankfurt)",
	"eu-central-2":   "EU (Zurich)",
	"eu-north-1":     "EU (Stockholm)",
	"eu-south-1":     "EU (Milan)",
	"eu-south-2":     "EU (Spain)",
	"ap-south-1":     "Asia Pacific (Mumbai)",
	"ap-south-2":     "Asia Pacific (Hyderabad)",
	"ap-southeast-1": "Asia Pacific (Singapore)",
	"ap-southeast-2": "Asia Pacific (Sydney)",
	"ap-southeast-3": "Asia Pacific (Jakarta)",
	"ap-southeast-4": "Asia Pacific (Melbourne)",
	"ap-northeast-1": "Asia Pacific (Tokyo)",
	"ap-northeast-2": "Asia Pacific (Seoul)",
	"ap-northeast-3": "Asia Pacific (Osaka)",
	"ap-east-1":      "Asia Pacific (Hong Kong)",
	"sa-east-1":      "South America (Sao Paulo)",
	"me-south-1":     "Middle East (Bahrain)",
	"me-central-1":   "Middle East (UAE)",
	"af-south-1":     "Africa (Cape Town)",
	"il-central-1":   "Israel (Tel Aviv)",
	"us-gov-west-1":  "AWS GovCloud (US-West)",
	"us-gov-east-1":  "AWS GovCloud (US-East)",
}

var locationRegions = func() map[string]string {
	m := make(map[string]string, len(regionLocations))
	for code, loc := range regionLocations {
		m[loc] = code
	}
	// Older price lists spell a few locations differently.
	m["South America (São Paulo)"] = "sa-east-1"
	m["Europe (Ireland)"] = "eu-west-1"
	m["Europe (Frankfurt)"] = "eu-central-1"
	m["Europe (London)"] = "eu-west-2"
	m["Europe (Paris)"] = "eu-west-3"
	m["Europe (Stockholm)"] = "eu-north-1"
	m["Europe (Milan)"] = "eu-south-1"
	return m
}()

// LocationForRegion returns the AWS location name for a region code.
func LocationForRegion(region string) (string, bool) {
	loc, ok := regionLocations[region]
	return loc, ok
}

// RegionForLocation returns the region code for an AWS location name.
func RegionForLocation(location string) (string, bool) {
	code, ok := locationRegions[location]
	return code, ok
}

// KnownRegion reports whether region is a recognized region code.
func KnownRegion(region string) bool {
	_, ok := regionLocations[region]
	return ok
}

// Regions lists the known region codes in sorted order.
func Regions() []string {
	out := make([]string, 0, len(regionLocations))
	for code := range regionLocations {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
