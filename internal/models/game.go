package models

import "time"

type GameType string

const (
	GameTypeDice   GameType = "dice"
	GameTypeCrash  GameType = "crash"
	GameTypeLimbo  GameType = "limbo"
	GameTypeMines  GameType = "mines"
	GameTypePlinko GameType = "plinko"
)

type SessionState string

const (
	SessionCreated  SessionState = "created"
	SessionExecuted SessionState = "executed"
	SessionExpired  SessionState = "expired"
)

// GameSession is a short-lived, single-use binding of a player, a bet and a
// seed pair. Owned exclusively by the session manager.
type GameSession struct {
	ID            string       `json:"id"`
	PlayerAddress string       `json:"player_address"`
	GameType      GameType     `json:"game_type"`
	BetAmount     float64      `json:"bet_amount"`
	ClientSeed    string       `json:"client_seed"`
	Nonce         int64        `json:"nonce"`
	State         SessionState `json:"state"`
	CreatedAt     time.Time    `json:"created_at"`
	ExpiresAt     time.Time    `json:"expires_at"`
}

// Proof is everything a player needs to re-derive the outcome once the server
// secret has been revealed.
type Proof struct {
	ServerSeedHashCommitment string `json:"server_seed_hash_commitment"`
	ClientSeed               string `json:"client_seed"`
	Nonce                    int64  `json:"nonce"`
	GameHash                 string `json:"game_hash"`
}

func (p *Proof) Complete() bool {
	return p.ServerSeedHashCommitment != "" && p.ClientSeed != "" && p.GameHash != ""
}

// GameResult is immutable once produced.
type GameResult struct {
	GameType   GameType               `json:"game_type"`
	IsWin      bool                   `json:"is_win"`
	WinAmount  float64                `json:"win_amount"`
	Multiplier float64                `json:"multiplier"`
	RawOutcome float64                `json:"raw_outcome"`
	Detail     map[string]interface{} `json:"detail,omitempty"`
	Proof      Proof                  `json:"proof"`
}
