// Package output renders snapshots, spike events and replayed log records
// for the operator, as styled text or as JSON lines.
package output

import "fmt"

// Format selects the rendering.
type Format int

const (
	FormatText Format = iota
	FormatJSON
)

func (f Format) String() string {
	if f == FormatJSON {
		return "json"
	}
	return "text"
}

// ParseFormat parses "text" or "json".
func ParseFormat(s string) (Format, error) {
	switch s {
	case "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	}
	return FormatText, fmt.Errorf("invalid output %q (want text or json)", s)
}
