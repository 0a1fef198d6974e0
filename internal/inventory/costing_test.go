package inventory

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWeightedAverage(t *testing.T) {
	cases := []struct {
		name                        string
		curQty, curAvg, inQty, cost float64
		want                        float64
	}{
		{"first receipt", 0, 0, 10, 100, 100},
		{"blend", 10, 100, 5, 120, 106.67},
		{"free stock keeps dilution", 10, 50, 10, 0, 25},
		{"drained resets to zero", 5, 40, -5, 0, 0},
		{"rounds half away from zero", 1, 0.005, 0, 0, 0.01},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			require.InDelta(t, tc.want, WeightedAverage(tc.curQty, tc.curAvg, tc.inQty, tc.cost), 0.0001)
		})
	}
}

func TestMovementValue(t *testing.T) {
	require.InDelta(t, 600.0, MovementValue(5, 120), 0.0001)
	require.InDelta(t, -640.02, MovementValue(-6, 106.67), 0.0001)
}
