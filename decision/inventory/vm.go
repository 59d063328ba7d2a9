// Package inventory turns VM inventory records into validated resource footprints.
package inventory

import (
	"fmt"
	"strings"
	"unicode"

	"migration-cost/decision/pricing"
	perrors "migration-cost/pkg/errors"
)

// WorkloadClass selects the pricing plan and utilization applied to a VM.
type WorkloadClass string

const (
	Production  WorkloadClass = "production"
	Development WorkloadClass = "development"
	Testing     WorkloadClass = "testing"
	Staging     WorkloadClass = "staging"
)

// WorkloadClasses lists every class in reporting order.
var WorkloadClasses = []WorkloadClass{Production, Staging, Testing, Development}

// ParseWorkloadClass accepts the class names and their common abbreviations.
func ParseWorkloadClass(raw string) (WorkloadClass, bool) {
	c, ok := workloadTokens[strings.ToLower(strings.TrimSpace(raw))]
	return c, ok
}

var workloadTokens = map[string]WorkloadClass{
	"production":  Production,
	"prod":        Production,
	"prd":         Production,
	"live":        Production,
	"development": Development,
	"dev":         Development,
	"sandbox":     Development,
	"sbx":         Development,
	"testing":     Testing,
	"test":        Testing,
	"tst":         Testing,
	"qa":          Testing,
	"uat":         Testing,
	"staging":     Staging,
	"stage":       Staging,
	"stg":         Staging,
	"preprod":     Staging,
}

// ClassifyWorkload derives a class from a VM name such as "app-dev-01".
// The first recognised token wins; names with none are production.
func ClassifyWorkload(name string) WorkloadClass {
	tokens := strings.FieldsFunc(strings.ToLower(name), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, tok := range tokens {
		if c, ok := workloadTokens[strings.TrimRight(tok, "0123456789")]; ok {
			return c
		}
	}
	return Production
}

// VM is one inventory record as exported from the source platform.
type VM struct {
	ID        string  `json:"id" yaml:"id"`
	Name      string  `json:"name" yaml:"name"`
	CPU       int     `json:"cpu" yaml:"cpu"`
	MemoryGB  float64 `json:"memory_gb,omitempty" yaml:"memory_gb,omitempty"`
	MemoryMB  float64 `json:"memory_mb,omitempty" yaml:"memory_mb,omitempty"`
	StorageGB float64 `json:"storage_gb" yaml:"storage_gb"`
	GuestOS   string  `json:"os,omitempty" yaml:"os,omitempty"`
	Workload  string  `json:"workload,omitempty" yaml:"workload,omitempty"`
}

// Key identifies the VM in results, preferring ID over Name.
func (vm VM) Key() string {
	if vm.ID != "" {
		return vm.ID
	}
	return vm.Name
}

// Footprint is the validated sizing of a VM.
type Footprint struct {
	VCPU            int                     `json:"vcpu"`
	MemoryGB        float64                 `json:"memory_gb"`
	StorageGB       float64                 `json:"storage_gb"`
	WorkloadClass   WorkloadClass           `json:"workload_class"`
	OperatingSystem pricing.OperatingSystem `json:"operating_system"`
}

// Validate enforces vCPU >= 1, memory > 0 and storage >= 0.
func (f Footprint) Validate() error {
	switch {
	case f.VCPU < 1:
		return fmt.Errorf("vcpu must be at least 1, got %d", f.VCPU)
	case f.MemoryGB <= 0:
		return fmt.Errorf("memory must be positive, got %g GB", f.MemoryGB)
	case f.StorageGB < 0:
		return fmt.Errorf("storage must not be negative, got %g GB", f.StorageGB)
	}
	if _, ok := ParseWorkloadClass(string(f.WorkloadClass)); !ok {
		return fmt.Errorf("unknown workload class %q", f.WorkloadClass)
	}
	return nil
}

// Footprint converts the record, deriving the workload class from the name
// when none is given and defaulting the operating system to Linux.
func (vm VM) Footprint() (Footprint, error) {
	mem := vm.MemoryGB
	if mem == 0 && vm.MemoryMB > 0 {
		mem = vm.MemoryMB / 1024
	}

	class := ClassifyWorkload(vm.Name)
	if vm.Workload != "" {
		c, ok := ParseWorkloadClass(vm.Workload)
		if !ok {
			return Footprint{}, perrors.NewInvalidFootprintError(vm.Key(), fmt.Sprintf("unknown workload class %q", vm.Workload))
		}
		class = c
	}

	fp := Footprint{
		VCPU:            vm.CPU,
		MemoryGB:        mem,
		StorageGB:       vm.StorageGB,
		WorkloadClass:   class,
		OperatingSystem: pricing.ClassifyGuestOS(vm.GuestOS),
	}
	if err := fp.Validate(); err != nil {
		return Footprint{}, perrors.NewInvalidFootprintError(vm.Key(), err.Error())
	}
	return fp, nil
}
