package fairness

import "math"

// DiceRoll scales a draw to [0,100) at 4-decimal precision.
func DiceRoll(f float64) float64 {
	return math.Floor(f*100*10000) / 10000
}

// CrashPoint applies the exponential transform used by crash and limbo:
// max(1, -ln(x)) * (1-houseEdge), truncated to 2 decimals.
func CrashPoint(f, houseEdge float64) float64 {
	// A zero draw would blow up the log; clamp to the smallest step the
	// 8-byte draw can produce.
	if f <= 0 {
		f = math.Pow(256, -8)
	}
	v := -math.Log(f)
	if v < 1 {
		v = 1
	}
	v *= 1 - houseEdge
	return math.Floor(v*100) / 100
}

// MinePositions draws count distinct positions on a gridSize board. Draws
// that land on an already-mined tile are skipped and the stream continues,
// so the board always carries exactly count mines.
func MinePositions(seed *GameSeed, gridSize, count int) []int {
	positions := make([]int, 0, count)
	used := make(map[int]bool, count)
	for i := 0; len(positions) < count; i++ {
		pos := int(seed.FloatAt(i) * float64(gridSize))
		if pos >= gridSize {
			pos = gridSize - 1
		}
		if used[pos] {
			continue
		}
		used[pos] = true
		positions = append(positions, pos)
	}
	return positions
}

// PlinkoPath maps each of rows draws to a left (0) or right (1) step.
func PlinkoPath(seed *GameSeed, rows int) []int {
	path := make([]int, rows)
	for i := 0; i < rows; i++ {
		if seed.FloatAt(i) >= 0.5 {
			path[i] = 1
		}
	}
	return path
}
