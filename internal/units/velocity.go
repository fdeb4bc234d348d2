package units

const (
	kmhPerMps = 3.6
	mphPerMps = 2.2369362920544
)

// KmhToMps converts km/h to m/s.
func KmhToMps(v float64) float64 { return v / kmhPerMps }

// MpsToKmh converts m/s to km/h.
func MpsToKmh(v float64) float64 { return v * kmhPerMps }

// MphToMps converts mph to m/s.
func MphToMps(v float64) float64 { return v / mphPerMps }

// ConvertSpeed converts a speed from m/s to the target units. Unknown units
// leave the value in m/s.
func ConvertSpeed(speedMPS float64, targetUnits string) float64 {
	switch targetUnits {
	case MPH:
		return speedMPS * mphPerMps
	case KMPH, KPH:
		return speedMPS * kmhPerMps
	default:
		return speedMPS
	}
}
