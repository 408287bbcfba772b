package domain

import "math"

// HeatIndex computes the Rothfusz "feels-like" temperature for a dry-bulb
// temperature in degrees Celsius and a relative humidity percentage.
//
// The regression operates in Fahrenheit, so the input is converted, the
// fixed-coefficient polynomial applied, and the result converted back to
// Celsius. This is the single authoritative formula for alerting, analytics,
// and broadcast; every consumer of a derived danger metric must call it
// rather than carrying its own variant.
//
// Returns NaN if either input is NaN. Consumers render NaN as a sensor-error
// state, they do not treat it as a failure.
func HeatIndex(tempC, humidity float64) float64 {
	if math.IsNaN(tempC) || math.IsNaN(humidity) {
		return math.NaN()
	}
	t := tempC*9.0/5.0 + 32.0
	h := humidity
	hi := -42.379 + 2.04901523*t + 10.14333127*h -
		0.22475541*t*h - 0.00683783*t*t -
		0.05481717*h*h + 0.00122874*t*t*h +
		0.00085282*t*h*h - 0.00000199*t*t*h*h
	return (hi - 32.0) * 5.0 / 9.0
}
