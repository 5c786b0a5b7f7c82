package pipeline

import (
	"math"
)

func cos(rad float64) float64 { return math.Cos(rad) }
func sin(rad float64) float64 { return math.Sin(rad) }
