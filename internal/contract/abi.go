package contract

import (
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

const multiRewardPoolABIJSON = `[
  {"inputs": [], "name": "stakingToken", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "getAllRewardTokens", "outputs": [{"internalType": "address[]", "name": "", "type": "address[]"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "totalSupply", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {
    "inputs": [{"internalType": "address", "name": "", "type": "address"}],
    "name": "rewardData",
    "outputs": [
      {"internalType": "address", "name": "rewardsDistributor", "type": "address"},
      {"internalType": "uint256", "name": "rewardsDuration", "type": "uint256"},
      {"internalType": "uint256", "name": "periodFinish", "type": "uint256"},
      {"internalType": "uint256", "name": "rewardRate", "type": "uint256"},
      {"internalType": "uint256", "name": "lastUpdateTime", "type": "uint256"},
      {"internalType": "uint256", "name": "rewardPerTokenStored", "type": "uint256"}
    ],
    "stateMutability": "view",
    "type": "function"
  }
]`

const pairABIJSON = `[
  {
    "inputs": [],
    "name": "getReserves",
    "outputs": [
      {"internalType": "uint112", "name": "_reserve0", "type": "uint112"},
      {"internalType": "uint112", "name": "_reserve1", "type": "uint112"},
      {"internalType": "uint32", "name": "_blockTimestampLast", "type": "uint32"}
    ],
    "stateMutability": "view",
    "type": "function"
  },
  {"inputs": [], "name": "totalSupply", "outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "decimals", "outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token0", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "token1", "outputs": [{"internalType": "address", "name": "", "type": "address"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIStringJSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "string"}], "stateMutability": "view", "type": "function"}
]`

const erc20ABIBytes32JSON = `[
  {"inputs": [], "name": "decimals", "outputs": [{"type": "uint8"}], "stateMutability": "view", "type": "function"},
  {"inputs": [], "name": "symbol", "outputs": [{"type": "bytes32"}], "stateMutability": "view", "type": "function"}
]`

type lazyABI struct {
	json   string
	once   sync.Once
	parsed abi.ABI
	err    error
}

func (l *lazyABI) get() (abi.ABI, error) {
	l.once.Do(func() {
		l.parsed, l.err = abi.JSON(strings.NewReader(l.json))
	})
	return l.parsed, l.err
}

var (
	multiRewardPoolABI = &lazyABI{json: multiRewardPoolABIJSON}
	pairABI            = &lazyABI{json: pairABIJSON}
	erc20StringABI     = &lazyABI{json: erc20ABIStringJSON}
	erc20Bytes32ABI    = &lazyABI{json: erc20ABIBytes32JSON}
)

// MultiRewardPoolABI returns the parsed staking pool ABI.
func MultiRewardPoolABI() (abi.ABI, error) { return multiRewardPoolABI.get() }

// PairABI returns the parsed LP pair ABI.
func PairABI() (abi.ABI, error) { return pairABI.get() }

// ERC20ABI returns the parsed ERC20 ABI with a string symbol.
func ERC20ABI() (abi.ABI, error) { return erc20StringABI.get() }

// ERC20Bytes32ABI returns the ERC20 ABI variant whose symbol is bytes32.
func ERC20Bytes32ABI() (abi.ABI, error) { return erc20Bytes32ABI.get() }
