package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PairState is the on-chain state of an LP pair used as a staking token.
type PairState struct {
	Address     common.Address
	Reserve0    *big.Int
	Reserve1    *big.Int
	TotalSupply *big.Int
	Decimals    uint8
	Token0      TokenMeta
	Token1      TokenMeta
}

// PlaceholderPairState is substituted when a pair cannot be read so that the
// arithmetic downstream stays defined.
func PlaceholderPairState(pair common.Address) PairState {
	return PairState{
		Address:     pair,
		Reserve0:    big.NewInt(1),
		Reserve1:    big.NewInt(1),
		TotalSupply: big.NewInt(0),
		Decimals:    1,
		Token0:      TokenMeta{Decimals: 1},
		Token1:      TokenMeta{Decimals: 1},
	}
}

// RewardData is the per reward token state of a multi-reward pool.
type RewardData struct {
	Token        common.Address
	RewardRate   *big.Int
	// PeriodFinish is the unix timestamp the emissions end at.
	PeriodFinish *big.Int
}

// LpPairInfo is the USD valuation of an LP pair.
type LpPairInfo struct {
	Token0Symbol string
	Token1Symbol string
	Price        *big.Int
	TVL          *big.Int
}
