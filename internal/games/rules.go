package games

import (
	"fmt"

	"faircore-backend/internal/apperr"
	"faircore-backend/internal/fairness"
	"faircore-backend/internal/models"
)

// Config bounds bets and parameters for one game type. The table is fixed at
// compile time; operators tune payouts through the house edge only.
type Config struct {
	MinBet    float64
	MaxBet    float64
	HouseEdge float64
}

var Table = map[models.GameType]Config{
	models.GameTypeDice:   {MinBet: 0.1, MaxBet: 1000, HouseEdge: 0.01},
	models.GameTypeCrash:  {MinBet: 0.1, MaxBet: 500, HouseEdge: 0.01},
	models.GameTypeLimbo:  {MinBet: 0.1, MaxBet: 500, HouseEdge: 0.01},
	models.GameTypeMines:  {MinBet: 0.1, MaxBet: 200, HouseEdge: 0.03},
	models.GameTypePlinko: {MinBet: 0.1, MaxBet: 200, HouseEdge: 0.02},
}

// maxMultiplier is the largest multiplier each game can settle at; together
// with MaxBet it bounds the payout a single round can produce.
var maxMultiplier = map[models.GameType]float64{
	models.GameTypeDice:   99,
	models.GameTypeCrash:  100,
	models.GameTypeLimbo:  1000,
	models.GameTypeMines:  500,
	models.GameTypePlinko: 1000,
}

// PayoutCap returns the largest payout a single round of the game type can
// legitimately produce. Unknown game types return 0.
func PayoutCap(gameType models.GameType) float64 {
	cfg, ok := Table[gameType]
	if !ok {
		return 0
	}
	return cfg.MaxBet * maxMultiplier[gameType]
}

const (
	MinesGridSize = 25
	MinMines      = 1
	MaxMines      = 24

	MinDiceTarget = 1
	MaxDiceTarget = 99

	MinCrashCashout = 1.01
	MaxCrashCashout = 100

	MinLimboTarget = 1.01
	MaxLimboTarget = 1000
)

// Params is the union of game-specific parameters; unused fields are ignored
// per game type.
type Params struct {
	Target     float64 `json:"target,omitempty"`      // dice
	Over       bool    `json:"over,omitempty"`        // dice
	CashoutAt  float64 `json:"cashout_at,omitempty"`  // crash
	Multiplier float64 `json:"multiplier,omitempty"`  // limbo
	MinesCount int     `json:"mines_count,omitempty"` // mines
	Picks      []int   `json:"picks,omitempty"`       // mines
	Rows       int     `json:"rows,omitempty"`        // plinko
	Risk       string  `json:"risk,omitempty"`        // plinko
}

func invalidParam(field, reason string) error {
	return apperr.Validation("InvalidParameter",
		fmt.Sprintf("invalid parameter %s: %s", field, reason))
}

// ValidateBet checks the bet range for a game type.
func ValidateBet(gameType models.GameType, betAmount float64) error {
	cfg, ok := Table[gameType]
	if !ok {
		return invalidParam("game_type", fmt.Sprintf("unknown game type %q", gameType))
	}
	if betAmount < cfg.MinBet || betAmount > cfg.MaxBet {
		return invalidParam("bet_amount",
			fmt.Sprintf("must be between %g and %g", cfg.MinBet, cfg.MaxBet))
	}
	return nil
}

// ComputeResult validates parameters, derives randomness from the seed and
// maps it to an outcome. Deterministic: the same seed and parameters always
// produce the same result.
func ComputeResult(gameType models.GameType, betAmount float64, params Params, seed *fairness.GameSeed) (*models.GameResult, error) {
	if err := ValidateBet(gameType, betAmount); err != nil {
		return nil, err
	}
	cfg := Table[gameType]

	result := &models.GameResult{
		GameType: gameType,
		Proof:    seed.Proof(),
	}

	switch gameType {
	case models.GameTypeDice:
		if err := playDice(result, betAmount, params, cfg, seed); err != nil {
			return nil, err
		}
	case models.GameTypeCrash:
		if err := playCrash(result, betAmount, params, cfg, seed); err != nil {
			return nil, err
		}
	case models.GameTypeLimbo:
		if err := playLimbo(result, betAmount, params, cfg, seed); err != nil {
			return nil, err
		}
	case models.GameTypeMines:
		if err := playMines(result, betAmount, params, cfg, seed); err != nil {
			return nil, err
		}
	case models.GameTypePlinko:
		if err := playPlinko(result, betAmount, params, cfg, seed); err != nil {
			return nil, err
		}
	default:
		return nil, invalidParam("game_type", fmt.Sprintf("unknown game type %q", gameType))
	}

	result.WinAmount = models.RoundMoney(result.WinAmount)
	result.Multiplier = models.RoundMoney(result.Multiplier)
	return result, nil
}

func playDice(result *models.GameResult, bet float64, p Params, cfg Config, seed *fairness.GameSeed) error {
	if p.Target < MinDiceTarget || p.Target > MaxDiceTarget {
		return invalidParam("target", fmt.Sprintf("must be between %d and %d", MinDiceTarget, MaxDiceTarget))
	}

	roll := fairness.DiceRoll(seed.Float())

	var winChance float64
	if p.Over {
		winChance = (100 - p.Target) / 100
		result.IsWin = roll > p.Target
	} else {
		winChance = p.Target / 100
		result.IsWin = roll < p.Target
	}

	result.RawOutcome = roll
	result.Multiplier = (1 - cfg.HouseEdge) / winChance
	if result.IsWin {
		result.WinAmount = bet * result.Multiplier
	}
	result.Detail = map[string]interface{}{
		"roll":   roll,
		"target": p.Target,
		"over":   p.Over,
	}
	return nil
}

func playCrash(result *models.GameResult, bet float64, p Params, cfg Config, seed *fairness.GameSeed) error {
	if p.CashoutAt < MinCrashCashout || p.CashoutAt > MaxCrashCashout {
		return invalidParam("cashout_at", fmt.Sprintf("must be between %g and %g", MinCrashCashout, float64(MaxCrashCashout)))
	}

	point := fairness.CrashPoint(seed.Float(), cfg.HouseEdge)
	result.RawOutcome = point
	result.IsWin = point >= p.CashoutAt
	result.Multiplier = p.CashoutAt
	if result.IsWin {
		result.WinAmount = bet * p.CashoutAt
	}
	result.Detail = map[string]interface{}{
		"crash_point": point,
		"cashout_at":  p.CashoutAt,
	}
	return nil
}

func playLimbo(result *models.GameResult, bet float64, p Params, cfg Config, seed *fairness.GameSeed) error {
	if p.Multiplier < MinLimboTarget || p.Multiplier > MaxLimboTarget {
		return invalidParam("multiplier", fmt.Sprintf("must be between %g and %g", MinLimboTarget, float64(MaxLimboTarget)))
	}

	outcome := fairness.CrashPoint(seed.Float(), cfg.HouseEdge)
	result.RawOutcome = outcome
	result.IsWin = outcome >= p.Multiplier
	result.Multiplier = p.Multiplier
	if result.IsWin {
		result.WinAmount = bet * p.Multiplier
	}
	result.Detail = map[string]interface{}{
		"outcome": outcome,
		"target":  p.Multiplier,
	}
	return nil
}

func playMines(result *models.GameResult, bet float64, p Params, cfg Config, seed *fairness.GameSeed) error {
	if p.MinesCount < MinMines || p.MinesCount > MaxMines {
		return invalidParam("mines_count", fmt.Sprintf("must be between %d and %d", MinMines, MaxMines))
	}
	safeTiles := MinesGridSize - p.MinesCount
	if len(p.Picks) < 1 || len(p.Picks) > safeTiles {
		return invalidParam("picks", fmt.Sprintf("must pick between 1 and %d tiles", safeTiles))
	}
	seen := make(map[int]bool, len(p.Picks))
	for _, pick := range p.Picks {
		if pick < 0 || pick >= MinesGridSize {
			return invalidParam("picks", fmt.Sprintf("tile %d outside the %d-tile grid", pick, MinesGridSize))
		}
		if seen[pick] {
			return invalidParam("picks", fmt.Sprintf("tile %d picked twice", pick))
		}
		seen[pick] = true
	}

	mines := fairness.MinePositions(seed, MinesGridSize, p.MinesCount)
	mineSet := make(map[int]bool, len(mines))
	for _, m := range mines {
		mineSet[m] = true
	}

	result.IsWin = true
	for _, pick := range p.Picks {
		if mineSet[pick] {
			result.IsWin = false
			break
		}
	}

	// Fair odds of surviving k picks on a board with m mines, edged down.
	survival := 1.0
	for i := 0; i < len(p.Picks); i++ {
		survival *= float64(safeTiles-i) / float64(MinesGridSize-i)
	}
	result.Multiplier = (1 - cfg.HouseEdge) / survival
	result.RawOutcome = seed.Float()
	if result.IsWin {
		result.WinAmount = bet * result.Multiplier
	}
	result.Detail = map[string]interface{}{
		"mines":     mines,
		"picks":     p.Picks,
		"grid_size": MinesGridSize,
	}
	return nil
}

func playPlinko(result *models.GameResult, bet float64, p Params, cfg Config, seed *fairness.GameSeed) error {
	payouts, err := plinkoPayouts(p.Rows, p.Risk)
	if err != nil {
		return err
	}

	path := fairness.PlinkoPath(seed, p.Rows)
	bucket := 0
	for _, step := range path {
		bucket += step
	}

	multiplier := payouts[bucket] * (1 - cfg.HouseEdge)
	result.RawOutcome = float64(bucket)
	result.Multiplier = multiplier
	// Plinko always settles at the bucket multiplier; a round counts as a
	// win when the bucket returns at least the stake.
	result.IsWin = multiplier >= 1
	result.WinAmount = bet * multiplier
	result.Detail = map[string]interface{}{
		"path":   path,
		"bucket": bucket,
		"rows":   p.Rows,
		"risk":   p.Risk,
	}
	return nil
}
