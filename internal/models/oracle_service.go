package models

import (
	"context"
	"encoding/json"
)

// GrantedTokens is the Community Oracle's answer to how many community
// tokens a subscribed user may mint.
type GrantedTokens struct {
	Token  string `json:"token"`
	Amount int64  `json:"amount"`
}

// OracleService is the Community Oracle consumed as a network dependency:
// it returns token grants and signs minting transactions.
type OracleService interface {
	GrantedTokens(ctx context.Context, user Address, communityName string) (*GrantedTokens, error)
	MintingSignature(ctx context.Context, user Address, communityName string, mintingTx json.RawMessage) (json.RawMessage, error)
}
