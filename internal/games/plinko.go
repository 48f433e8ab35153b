package games

import "fmt"

// Plinko bucket payout tables, indexed by the number of right steps. Tables
// are symmetric; edge buckets pay the most, center buckets the least.
var plinkoTables = map[int]map[string][]float64{
	8: {
		"low":    {5.6, 2.1, 1.1, 1.0, 0.5, 1.0, 1.1, 2.1, 5.6},
		"medium": {13, 3, 1.3, 0.7, 0.4, 0.7, 1.3, 3, 13},
		"high":   {29, 4, 1.5, 0.3, 0.2, 0.3, 1.5, 4, 29},
	},
	12: {
		"low":    {10, 3, 1.6, 1.4, 1.1, 1.0, 0.5, 1.0, 1.1, 1.4, 1.6, 3, 10},
		"medium": {33, 11, 4, 2, 1.1, 0.6, 0.3, 0.6, 1.1, 2, 4, 11, 33},
		"high":   {170, 24, 8.1, 2, 0.7, 0.2, 0.2, 0.2, 0.7, 2, 8.1, 24, 170},
	},
	16: {
		"low":    {16, 9, 2, 1.4, 1.4, 1.2, 1.1, 1.0, 0.5, 1.0, 1.1, 1.2, 1.4, 1.4, 2, 9, 16},
		"medium": {110, 41, 10, 5, 3, 1.5, 1, 0.5, 0.3, 0.5, 1, 1.5, 3, 5, 10, 41, 110},
		"high":   {1000, 130, 26, 9, 4, 2, 0.2, 0.2, 0.2, 0.2, 0.2, 2, 4, 9, 26, 130, 1000},
	},
}

func plinkoPayouts(rows int, risk string) ([]float64, error) {
	table, ok := plinkoTables[rows]
	if !ok {
		return nil, invalidParam("rows", fmt.Sprintf("must be one of 8, 12 or 16, got %d", rows))
	}
	payouts, ok := table[risk]
	if !ok {
		return nil, invalidParam("risk", fmt.Sprintf("must be low, medium or high, got %q", risk))
	}
	return payouts, nil
}
