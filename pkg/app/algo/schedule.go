package algo

import "github.com/uhyunpark/algosim/params"

// TWAPWeights splits the order evenly over ticks.
func TWAPWeights(ticks int) []float64 {
	if ticks <= 0 {
		return nil
	}
	w := make([]float64, ticks)
	for i := range w {
		w[i] = 1 / float64(ticks)
	}
	return w
}

// DailyWeights expands a volume profile into one weight per tick of a
// trading day. Each segment covers int(TimeFraction*ticksPerDay)+1 ticks and
// spreads its VolumeFraction evenly over them. The rounding up overshoots the
// day, so the middle tick is dropped until the length fits; a short profile
// is padded with zero weights.
func DailyWeights(profile []params.ProfileSegment, ticksPerDay int) []float64 {
	if ticksPerDay <= 0 {
		return nil
	}
	var day []float64
	for _, seg := range profile {
		n := int(seg.TimeFraction*float64(ticksPerDay)) + 1
		for i := 0; i < n; i++ {
			day = append(day, seg.VolumeFraction/float64(n))
		}
	}
	for len(day) > ticksPerDay {
		mid := len(day) / 2
		day = append(day[:mid], day[mid+1:]...)
	}
	for len(day) < ticksPerDay {
		day = append(day, 0)
	}
	return day
}

// HorizonWeights lays the daily pattern over ticks ticks beginning at
// start mod len(daily), wrapping into following days, and normalises the
// result to sum to 1. A horizon that only covers zero-volume ticks falls back
// to even weights.
func HorizonWeights(daily []float64, start, ticks int) []float64 {
	if ticks <= 0 {
		return nil
	}
	if len(daily) == 0 {
		return TWAPWeights(ticks)
	}
	start %= len(daily)
	if start < 0 {
		start += len(daily)
	}

	w := make([]float64, ticks)
	var sum float64
	for i := range w {
		w[i] = daily[(start+i)%len(daily)]
		sum += w[i]
	}
	if sum <= 0 {
		return TWAPWeights(ticks)
	}
	for i := range w {
		w[i] /= sum
	}
	return w
}
