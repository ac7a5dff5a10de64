// Package units converts the imperial values reported by Ambient Weather
// stations into metric and derived units.
package units

import "math"

// BatteryStatus maps the station battery code to a readable state.
func BatteryStatus(code int64) string {
	switch code {
	case 1:
		return "Normal"
	case 0:
		return "Low"
	default:
		return "Unknown"
	}
}

// InchesToMillimeters converts rain and pressure readings in inches.
func InchesToMillimeters(in float64) float64 {
	return in * 25.4
}

// FahrenheitToCelsius converts a temperature in °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// InHgToHPa converts inches of mercury to hectopascals.
func InHgToHPa(inhg float64) float64 {
	return inhg * 33.86389
}

// MPHToKPH converts miles per hour to kilometres per hour.
func MPHToKPH(mph float64) float64 {
	return mph * 1.609344
}

// MPHToMPS converts miles per hour to metres per second.
func MPHToMPS(mph float64) float64 {
	return mph * 0.44704
}

// MPHToFTPS converts miles per hour to feet per second.
func MPHToFTPS(mph float64) float64 {
	return mph * 1.466667
}

// MPHToKnots converts miles per hour to knots.
func MPHToKnots(mph float64) float64 {
	return mph * 0.868976
}

// WM2ToLux uses the Ambient Weather approximation of 126.7 lux per W/m².
func WM2ToLux(wm2 float64) float64 {
	return wm2 * 126.7
}

// Round rounds v to the given number of decimals, halves away from zero.
func Round(v float64, precision int) float64 {
	if precision < 0 {
		precision = 0
	}
	p := math.Pow10(precision)
	r := math.Round(v*p) / p
	if r == 0 {
		return 0 // drop negative zero
	}
	return r
}

// Truncate drops the fractional part of v. v must lie within the int64 range.
func Truncate(v float64) int64 {
	return int64(math.Trunc(v))
}
