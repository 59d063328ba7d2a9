package recommend

import "fmt"

// Category is the instance family class a footprint is steered towards.
type Category string

const (
	Burstable        Category = "burstable"
	GeneralPurpose   Category = "general_purpose"
	ComputeOptimized Category = "compute_optimized"
	MemoryOptimized  Category = "memory_optimized"
)

// Candidate is one instance type of the static catalog.
type Candidate struct {
	SKU      string   `json:"sku"`
	Series   string   `json:"series"`
	Category Category `json:"category"`
	VCPU     int      `json:"vcpu"`
	MemoryGB float64  `json:"memory_gb"`
}

type size struct {
	name string
	vcpu int
	mem  float64
}

func series(name string, cat Category, sizes []size) []Candidate {
	out := make([]Candidate, 0, len(sizes))
	for _, s := range sizes {
		out = append(out, Candidate{
			SKU:      fmt.Sprintf("%s.%s", name, s.name),
			Series:   name,
			Category: cat,
			VCPU:     s.vcpu,
			MemoryGB: s.mem,
		})
	}
	return out
}

var (
	burstableSizes = []size{
		{"nano", 2, 0.5}, {"micro", 2, 1}, {"small", 2, 2}, {"medium", 2, 4},
		{"large", 2, 8}, {"xlarge", 4, 16}, {"2xlarge", 8, 32},
	}
	generalSizes = []size{
		{"large", 2, 8}, {"xlarge", 4, 16}, {"2xlarge", 8, 32}, {"4xlarge", 16, 64},
		{"8xlarge", 32, 128}, {"12xlarge", 48, 192}, {"16xlarge", 64, 256}, {"24xlarge", 96, 384},
	}
	c5Sizes = []size{
		{"large", 2, 4}, {"xlarge", 4, 8}, {"2xlarge", 8, 16}, {"4xlarge", 16, 32},
		{"9xlarge", 36, 72}, {"12xlarge", 48, 96}, {"18xlarge", 72, 144}, {"24xlarge", 96, 192},
	}
	c6iSizes = []size{
		{"large", 2, 4}, {"xlarge", 4, 8}, {"2xlarge", 8, 16}, {"4xlarge", 16, 32},
		{"8xlarge", 32, 64}, {"12xlarge", 48, 96}, {"16xlarge", 64, 128}, {"24xlarge", 96, 192},
	}
	memorySizes = []size{
		{"large", 2, 16}, {"xlarge", 4, 32}, {"2xlarge", 8, 64}, {"4xlarge", 16, 128},
		{"8xlarge", 32, 256}, {"12xlarge", 48, 384}, {"16xlarge", 64, 512}, {"24xlarge", 96, 768},
	}
)

// DefaultCatalog returns the built-in x86 catalog.
func DefaultCatalog() []Candidate {
	var out []Candidate
	out = append(out, series("t3", Burstable, burstableSizes)...)
	out = append(out, series("m5", GeneralPurpose, generalSizes)...)
	out = append(out, series("m6i", GeneralPurpose, generalSizes)...)
	out = append(out, series("c5", ComputeOptimized, c5Sizes)...)
	out = append(out, series("c6i", ComputeOptimized, c6iSizes)...)
	out = append(out, series("r5", MemoryOptimized, memorySizes)...)
	out = append(out, series("r6i", MemoryOptimized, memorySizes)...)
	return out
}

// largestDefault is used when no catalog entry covers a footprint.
const largestDefault = "m5.24xlarge"
