package rmi

// linearModel is a least-squares fit of position against key.
type linearModel struct {
	Slope     float64
	Intercept float64
}

func fitLinear(keys []uint64, positions []uint64) linearModel {
	n := float64(len(keys))
	if n == 0 {
		return linearModel{}
	}
	if len(keys) == 1 {
		return linearModel{Intercept: float64(positions[0])}
	}

	// Center on the first sample to keep large keys numerically stable.
	x0, y0 := float64(keys[0]), float64(positions[0])
	var sumX, sumY, sumXY, sumXX float64
	for i, k := range keys {
		x := float64(k) - x0
		y := float64(positions[i]) - y0
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denominator := n*sumXX - sumX*sumX
	if denominator == 0 {
		return linearModel{Intercept: y0 + sumY/n}
	}
	slope := (n*sumXY - sumX*sumY) / denominator
	intercept := (sumY - slope*sumX) / n
	return linearModel{
		Slope:     slope,
		Intercept: y0 + intercept - slope*x0,
	}
}

func (lm linearModel) predict(key uint64) int64 {
	return int64(lm.Slope*float64(key) + lm.Intercept)
}
