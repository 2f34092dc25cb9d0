package sweep

// Linspace returns n evenly spaced values from start to stop inclusive.
// The last value is exactly stop.
func Linspace(start, stop float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (stop - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = stop
	return out
}

// CellSeed derives the averaging seed of cell (muIndex, betaIndex) from the
// sweep seed, so a cell's result does not depend on which worker ran it or when.
func CellSeed(seed uint64, muIndex, betaIndex int) uint64 {
	return splitmix64(seed ^ splitmix64(uint64(muIndex)<<32|uint64(uint32(betaIndex))))
}

func splitmix64(x uint64) uint64 {
	x += 0x9e3779b97f4a7c15
	x = (x ^ (x >> 30)) * 0xbf58476d1ce4e5b9
	x = (x ^ (x >> 27)) * 0x94d049bb133111eb
	return x ^ (x >> 31)
}
