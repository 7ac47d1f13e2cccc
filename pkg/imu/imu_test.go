package imu

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func constant(v Vector) Accelerometer {
	return AccelerometerFunc(func() (Vector, error) { return v, nil })
}

func TestIIRConverges(t *testing.T) {
	for _, alpha := range []float64{0.01, 0.03, 0.5, 0.9} {
		f := IIR{Alpha: alpha}
		step := Vector{5, -2, 9.8}
		prev := f.State
		for n := 0; n < 5000; n++ {
			out := f.Apply(step)
			for i := range out {
				// monotonic approach from 0 towards the step value.
				require.LessOrEqual(t, math.Abs(step[i]-out[i]), math.Abs(step[i]-prev[i]),
					"alpha=%v n=%d axis=%d", alpha, n, i)
			}
			prev = out
		}
		for i := range prev {
			require.InDelta(t, step[i], prev[i], 1e-9, "alpha=%v axis=%d", alpha, i)
		}
	}
}

func TestCalibrate(t *testing.T) {
	bias := Vector{0.12, -0.3, 9.8}
	for _, samples := range []int{1, 7, DefaultCalibrationSamples} {
		cal, err := Calibrate(constant(bias), samples)
		require.NoError(t, err)
		for i := range bias {
			require.InDelta(t, bias[i], cal[i], 1e-9, "samples=%d axis=%d", samples, i)
		}
	}
}

func TestCalibrateAverages(t *testing.T) {
	samples := []Vector{{1, 0, 9}, {3, 2, 11}}
	n := 0
	acc := AccelerometerFunc(func() (Vector, error) {
		v := samples[n%len(samples)]
		n++
		return v, nil
	})
	cal, err := Calibrate(acc, 4)
	require.NoError(t, err)
	require.Equal(t, Calibration{2, 1, 10}, cal)
}

func TestCalibrateErrors(t *testing.T) {
	_, err := Calibrate(constant(Vector{}), 0)
	require.Equal(t, ErrNoSamples, err)

	errBus := errors.New("i2c: nack")
	calls := 0
	_, err = Calibrate(AccelerometerFunc(func() (Vector, error) {
		if calls++; calls == 3 {
			return Vector{}, errBus
		}
		return Vector{}, nil
	}), 10)
	require.True(t, errors.Is(err, errBus))
	require.Equal(t, 3, calls)
}

func TestGate(t *testing.T) {
	testCases := []struct {
		name   string
		rpm    float64
		expect float64
	}{
		{"below", 99.999, 0},
		{"at floor", 100, 0},
		{"above", 100.001, 100.001},
		{"zero", 0, 0},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.expect, Gate(tc.rpm, DefaultNoiseFloor))
		})
	}
}

func TestAngularVelocity(t *testing.T) {
	// w = 10 rad/s at 0.05m gives 5 m/s^2.
	require.InDelta(t, 10*60/(2*math.Pi), AngularVelocity(5, 0.05), 1e-9)
	require.InDelta(t, 10*60/(2*math.Pi), AngularVelocity(-5, 0.05), 1e-9)
	require.Equal(t, 0.0, AngularVelocity(0, 0.05))
}

func TestConditionerUpdate(t *testing.T) {
	c := NewConditioner(Calibration{0.5, 0, 9.8})
	c.SetAlpha(1)
	est := c.Update(Vector{0.5, 0, 9.8})
	require.Equal(t, 0.0, est.AngularVel)
	require.Equal(t, Vector{0, 0, 0}, c.Data)

	// bias larger than the reading still yields a real number.
	est = c.Update(Vector{-40, 0, 9.8})
	require.False(t, math.IsNaN(est.AngularVel))
	require.InDelta(t, AngularVelocity(40.5, DefaultMountingOffset), est.AngularVel, 1e-9)
	require.Equal(t, 0.0, est.AngularDir)
}

func TestConditionerEndToEnd(t *testing.T) {
	cal, err := Calibrate(constant(Vector{0, 0, 9.8}), DefaultCalibrationSamples)
	require.NoError(t, err)
	require.InDelta(t, 0, cal[X], 1e-9)
	require.InDelta(t, 0, cal[Y], 1e-9)
	require.InDelta(t, 9.8, cal[Z], 1e-9)

	testCases := []struct {
		name   string
		sample Vector
		expect float64
	}{
		// sqrt(5/0.05) rad/s is ~95.5 rpm, under the noise floor.
		{"gated", Vector{5, 0, 9.8}, 0},
		{"passes", Vector{12.56, 0, 9.8}, math.Sqrt(12.56/0.05) * 60 / (2 * math.Pi)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			c := NewConditioner(cal)
			var est Estimate
			for n := 0; n < 2000; n++ {
				est = c.Update(tc.sample)
			}
			require.InDelta(t, tc.expect, est.AngularVel, 1e-3)
			require.InDelta(t, tc.sample[X], c.Raw[X], 1e-9)
		})
	}
	require.InDelta(t, 151.3, math.Sqrt(12.56/0.05)*60/(2*math.Pi), 0.1)
}
