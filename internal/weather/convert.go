package weather

import (
	"fmt"
	"math"
	"strconv"
)

// kelvinOffset matches the value the stored Celsius figures have always used.
const kelvinOffset = 273.16

// ToCelsius converts a Kelvin reading given as decimal text to Celsius,
// rounded and formatted to two decimal places.
func ToCelsius(kelvin string) (string, error) {
	k, err := strconv.ParseFloat(kelvin, 64)
	if err != nil {
		return "", fmt.Errorf("parsing kelvin %q: %w", kelvin, err)
	}
	c := math.Round((k-kelvinOffset)*100) / 100
	if c == 0 {
		c = 0 // drop the sign of -0
	}
	return strconv.FormatFloat(c, 'f', 2, 64), nil
}
