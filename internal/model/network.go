package model

import "github.com/ethereum/go-ethereum/common"

// NetworkConfig lists the pools to report on for one chain.
type NetworkConfig struct {
	Network string
	RPCURL  string
	// PricePlatform is the price feed's asset platform id, e.g. "polygon-pos".
	PricePlatform string
	Pools         []common.Address
}
