package model

import "fmt"

// ResourceKind identifies a monitored resource.
type ResourceKind int

const (
	ResourceCPU ResourceKind = iota
	ResourceRAM
	ResourceIO
)

// Resources lists every kind in evaluation order.
var Resources = []ResourceKind{ResourceCPU, ResourceRAM, ResourceIO}

// String returns the lower-case name used in the event log ("cpu", "ram", "io").
func (r ResourceKind) String() string {
	switch r {
	case ResourceCPU:
		return "cpu"
	case ResourceRAM:
		return "ram"
	case ResourceIO:
		return "io"
	}
	return "unknown"
}

// Label returns the upper-case display label.
func (r ResourceKind) Label() string {
	switch r {
	case ResourceCPU:
		return "CPU"
	case ResourceRAM:
		return "RAM"
	case ResourceIO:
		return "IO"
	}
	return "UNKNOWN"
}

// Unit returns the display unit for values of this resource.
func (r ResourceKind) Unit() string {
	switch r {
	case ResourceCPU, ResourceRAM:
		return "%"
	case ResourceIO:
		return "MB/s"
	}
	return ""
}

// ParseResourceKind parses "cpu", "ram" or "io".
func ParseResourceKind(s string) (ResourceKind, error) {
	switch s {
	case "cpu":
		return ResourceCPU, nil
	case "ram":
		return ResourceRAM, nil
	case "io":
		return ResourceIO, nil
	}
	return 0, fmt.Errorf("unknown resource %q (want cpu, ram or io)", s)
}

// MarshalText implements encoding.TextMarshaler.
func (r ResourceKind) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (r *ResourceKind) UnmarshalText(b []byte) error {
	k, err := ParseResourceKind(string(b))
	if err != nil {
		return err
	}
	*r = k
	return nil
}

// Thresholds holds one optional threshold per resource.
// A nil entry disables monitoring of that resource.
type Thresholds struct {
	CPU *float64 `yaml:"cpu,omitempty"`
	RAM *float64 `yaml:"ram,omitempty"`
	IO  *float64 `yaml:"io,omitempty"`
}

// For returns the threshold configured for r and whether it is enabled.
func (t Thresholds) For(r ResourceKind) (float64, bool) {
	var p *float64
	switch r {
	case ResourceCPU:
		p = t.CPU
	case ResourceRAM:
		p = t.RAM
	case ResourceIO:
		p = t.IO
	}
	if p == nil {
		return 0, false
	}
	return *p, true
}

// Any reports whether at least one resource is monitored.
func (t Thresholds) Any() bool {
	return t.CPU != nil || t.RAM != nil || t.IO != nil
}

// Threshold returns a pointer to v, for building Thresholds literals.
func Threshold(v float64) *float64 {
	return &v
}
