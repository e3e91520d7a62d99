package util

import "time"

// Delta returns curr - prev, or 0 if curr < prev (counter wrap or reset).
func Delta(prev, curr uint64) uint64 {
	if curr < prev {
		return 0
	}
	return curr - prev
}

// Rate computes the per-second rate between two counter values.
func Rate(prev, curr uint64, dt time.Duration) float64 {
	if dt <= 0 {
		return 0
	}
	return float64(Delta(prev, curr)) / dt.Seconds()
}

// BusyPct returns the share of non-idle ticks between two readings of
// aggregate CPU counters, in percent.
func BusyPct(prevIdle, currIdle, prevTotal, currTotal uint64) float64 {
	dtotal := Delta(prevTotal, currTotal)
	if dtotal == 0 {
		return 0
	}
	didle := Delta(prevIdle, currIdle)
	if didle > dtotal {
		return 0
	}
	return float64(dtotal-didle) / float64(dtotal) * 100
}
