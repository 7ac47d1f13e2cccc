package imu

import "fmt"

// DefaultCalibrationSamples is the number of samples averaged at startup.
const DefaultCalibrationSamples = 5000

// Calibrate averages raw samples per axis. The sensor must be at rest.
// A read failure aborts calibration, there is no retry.
func Calibrate(acc Accelerometer, samples int) (Calibration, error) {
	if samples <= 0 {
		return Calibration{}, ErrNoSamples
	}
	var sum Vector
	for n := 0; n < samples; n++ {
		v, err := acc.Acceleration()
		if err != nil {
			return Calibration{}, fmt.Errorf("calibration sample %d: %w", n, err)
		}
		for i := range sum {
			sum[i] += v[i]
		}
	}
	var cal Calibration
	for i := range cal {
		cal[i] = sum[i] / float64(samples)
	}
	return cal, nil
}
