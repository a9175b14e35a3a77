package algo

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/uhyunpark/algosim/params"
)

func sum(w []float64) float64 {
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

func TestDailyWeights(t *testing.T) {
	tests := []struct {
		name    string
		profile []params.ProfileSegment
		tpd     int
		wantLen int
	}{
		{"default profile trimmed", params.DefaultVolumeProfile(), 75, 75},
		{"short profile padded", []params.ProfileSegment{{TimeFraction: 0.1, VolumeFraction: 1}}, 20, 20},
		{"single tick day", params.DefaultVolumeProfile(), 1, 1},
		{"no day", params.DefaultVolumeProfile(), 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DailyWeights(tt.profile, tt.tpd)
			require.Len(t, got, tt.wantLen)
			for _, w := range got {
				require.GreaterOrEqual(t, w, 0.0)
			}
		})
	}
}

func TestDailyWeightsDefaultShape(t *testing.T) {
	day := DailyWeights(params.DefaultVolumeProfile(), 75)

	for i := 0; i < 4; i++ {
		require.InDelta(t, 0.05, day[i], 1e-12)
		require.InDelta(t, 0.05, day[74-i], 1e-12)
	}
	for i := 4; i < 8; i++ {
		require.InDelta(t, 0.025, day[i], 1e-12)
		require.InDelta(t, 0.025, day[74-i], 1e-12)
	}
	// two middle ticks dropped from the 61 tick midday segment
	require.InDelta(t, 0.4/61, day[37], 1e-12)
	require.InDelta(t, 1-2*0.4/61, sum(day), 1e-12)
}

func TestDailyWeightsPadsWithZeros(t *testing.T) {
	day := DailyWeights([]params.ProfileSegment{{TimeFraction: 0.1, VolumeFraction: 1}}, 20)
	// int(0.1*20)+1 = 3 ticks
	require.InDelta(t, 1.0/3, day[0], 1e-12)
	require.InDelta(t, 1.0/3, day[2], 1e-12)
	require.Zero(t, day[3])
	require.Zero(t, day[19])
}

func TestHorizonWeights(t *testing.T) {
	daily := []float64{1, 2, 3, 4}

	tests := []struct {
		name  string
		start int
		ticks int
		want  []float64
	}{
		{"within day", 1, 2, []float64{0.4, 0.6}},
		{"wraps into next day", 3, 3, []float64{4.0 / 7, 1.0 / 7, 2.0 / 7}},
		{"start past day length", 5, 1, []float64{1}},
		{"several days", 0, 8, []float64{0.05, 0.1, 0.15, 0.2, 0.05, 0.1, 0.15, 0.2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := HorizonWeights(daily, tt.start, tt.ticks)
			require.InDeltaSlice(t, tt.want, got, 1e-12)
			require.InDelta(t, 1, sum(got), 1e-12)
		})
	}
}

func TestHorizonWeightsFallbacks(t *testing.T) {
	require.Nil(t, HorizonWeights([]float64{1}, 0, 0))
	require.Equal(t, []float64{0.5, 0.5}, HorizonWeights(nil, 0, 2))
	require.Equal(t, []float64{0.5, 0.5}, HorizonWeights([]float64{1, 0, 0, 1}, 1, 2))
	require.Equal(t, []float64{0.25, 0.25, 0.25, 0.25}, TWAPWeights(4))
}
