package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// PairStat is the computed yield summary for one configured pool.
type PairStat struct {
	Network       string         `json:"network"`
	Pool          common.Address `json:"pool"`
	StakingToken  common.Address `json:"staking_token"`
	StakingToken0 string         `json:"staking_token0"`
	StakingToken1 string         `json:"staking_token1"`
	PairTVL       *big.Int       `json:"pair_tvl"`
	StakedValue   *big.Int       `json:"staked_value"`
	// PoolAPR has 2 implied decimals: 1234 means 12.34%.
	PoolAPR *big.Int `json:"pool_apr"`
	Err     error    `json:"-"`
}

// Degraded reports whether the stat is a placeholder for a failed pool.
func (s PairStat) Degraded() bool {
	return s.Err != nil
}
