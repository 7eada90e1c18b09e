package contract

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"farmScope/internal/metrics"
	"farmScope/internal/model"
)

// Caller performs a read-only contract call at the latest block.
type Caller interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg) ([]byte, error)
}

// TokenMetaCache caches token metadata by address. ERC20 decimals and
// symbols do not change, so entries never expire.
type TokenMetaCache struct {
	mu   sync.RWMutex
	data map[common.Address]model.TokenMeta
}

func NewTokenMetaCache() *TokenMetaCache {
	return &TokenMetaCache{data: make(map[common.Address]model.TokenMeta)}
}

func (c *TokenMetaCache) Get(address common.Address) (model.TokenMeta, bool) {
	c.mu.RLock()
	meta, ok := c.data[address]
	c.mu.RUnlock()
	return meta, ok
}

func (c *TokenMetaCache) Set(address common.Address, meta model.TokenMeta) {
	c.mu.Lock()
	c.data[address] = meta
	c.mu.Unlock()
}

// Reader reads multi-reward pool, LP pair and ERC20 state for one network.
type Reader struct {
	caller Caller
	tokens *TokenMetaCache
	logger *zap.Logger
}

// NewReader builds a Reader on top of a contract caller.
func NewReader(caller Caller, logger *zap.Logger) *Reader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reader{
		caller: caller,
		tokens: NewTokenMetaCache(),
		logger: logger,
	}
}

// StakingToken returns the LP token staked in the pool.
func (r *Reader) StakingToken(ctx context.Context, pool common.Address) (common.Address, error) {
	parsed, err := MultiRewardPoolABI()
	if err != nil {
		return common.Address{}, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := r.call(ctx, pool, parsed, "stakingToken")
	if err != nil {
		return common.Address{}, err
	}
	return asAddress(values[0])
}

// RewardTokens returns every reward token registered on the pool.
func (r *Reader) RewardTokens(ctx context.Context, pool common.Address) ([]common.Address, error) {
	parsed, err := MultiRewardPoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := r.call(ctx, pool, parsed, "getAllRewardTokens")
	if err != nil {
		return nil, err
	}
	return asAddresses(values[0])
}

// RewardData returns the reward rate and period end for one reward token.
func (r *Reader) RewardData(ctx context.Context, pool, token common.Address) (model.RewardData, error) {
	parsed, err := MultiRewardPoolABI()
	if err != nil {
		return model.RewardData{}, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := r.call(ctx, pool, parsed, "rewardData", token)
	if err != nil {
		return model.RewardData{}, err
	}
	if len(values) < 4 {
		return model.RewardData{}, fmt.Errorf("rewardData return size %d", len(values))
	}
	periodFinish, err := asBigInt(values[2])
	if err != nil {
		return model.RewardData{}, fmt.Errorf("periodFinish: %w", err)
	}
	rate, err := asBigInt(values[3])
	if err != nil {
		return model.RewardData{}, fmt.Errorf("rewardRate: %w", err)
	}
	return model.RewardData{
		Token:        token,
		RewardRate:   rate,
		PeriodFinish: periodFinish,
	}, nil
}

// TotalStaked returns the pool's total staked LP supply.
func (r *Reader) TotalStaked(ctx context.Context, pool common.Address) (*big.Int, error) {
	parsed, err := MultiRewardPoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	values, err := r.call(ctx, pool, parsed, "totalSupply")
	if err != nil {
		return nil, err
	}
	return asBigInt(values[0])
}

// PairTokens returns the two underlying tokens of an LP pair.
func (r *Reader) PairTokens(ctx context.Context, pair common.Address) (common.Address, common.Address, error) {
	parsed, err := PairABI()
	if err != nil {
		return common.Address{}, common.Address{}, fmt.Errorf("parse pair abi: %w", err)
	}

	var token0, token1 common.Address
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := r.call(gctx, pair, parsed, "token0")
		if err != nil {
			return err
		}
		token0, err = asAddress(values[0])
		return err
	})
	g.Go(func() error {
		values, err := r.call(gctx, pair, parsed, "token1")
		if err != nil {
			return err
		}
		token1, err = asAddress(values[0])
		return err
	})
	if err := g.Wait(); err != nil {
		return common.Address{}, common.Address{}, err
	}
	return token0, token1, nil
}

// PairState loads reserves, supply, decimals and both token metadata of a pair.
func (r *Reader) PairState(ctx context.Context, pair common.Address) (model.PairState, error) {
	parsed, err := PairABI()
	if err != nil {
		return model.PairState{}, fmt.Errorf("parse pair abi: %w", err)
	}

	state := model.PairState{Address: pair}
	var token0, token1 common.Address

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		values, err := r.call(gctx, pair, parsed, "getReserves")
		if err != nil {
			return err
		}
		if len(values) < 2 {
			return fmt.Errorf("getReserves return size %d", len(values))
		}
		if state.Reserve0, err = asBigInt(values[0]); err != nil {
			return fmt.Errorf("reserve0: %w", err)
		}
		if state.Reserve1, err = asBigInt(values[1]); err != nil {
			return fmt.Errorf("reserve1: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		values, err := r.call(gctx, pair, parsed, "totalSupply")
		if err != nil {
			return err
		}
		state.TotalSupply, err = asBigInt(values[0])
		return err
	})
	g.Go(func() error {
		values, err := r.call(gctx, pair, parsed, "decimals")
		if err != nil {
			return err
		}
		state.Decimals, err = asUint8(values[0])
		return err
	})
	g.Go(func() error {
		var err error
		token0, token1, err = r.PairTokens(gctx, pair)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.PairState{}, err
	}

	g, gctx = errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		state.Token0, err = r.TokenMeta(gctx, token0)
		return err
	})
	g.Go(func() error {
		var err error
		state.Token1, err = r.TokenMeta(gctx, token1)
		return err
	})
	if err := g.Wait(); err != nil {
		return model.PairState{}, err
	}

	return state, nil
}

// TokenMeta loads ERC20 decimals and symbol, using the in-memory cache.
func (r *Reader) TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error) {
	if meta, ok := r.tokens.Get(token); ok {
		return meta, nil
	}

	stringABI, err := ERC20ABI()
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("parse erc20 string abi: %w", err)
	}
	bytes32ABI, err := ERC20Bytes32ABI()
	if err != nil {
		return model.TokenMeta{}, fmt.Errorf("parse erc20 bytes32 abi: %w", err)
	}

	meta := model.TokenMeta{Address: token}
	values, err := r.call(ctx, token, stringABI, "decimals")
	if err != nil {
		return meta, err
	}
	if meta.Decimals, err = asUint8(values[0]); err != nil {
		return meta, err
	}

	resolved := false
	if values, err := r.call(ctx, token, stringABI, "symbol"); err == nil {
		meta.Symbol, resolved = values[0].(string)
	} else if values, err := r.call(ctx, token, bytes32ABI, "symbol"); err == nil {
		meta.Symbol, resolved = bytes32ToString(values[0])
	} else {
		r.logger.Debug("symbol call failed", zap.String("token", token.Hex()), zap.Error(err))
	}

	// An unresolved symbol is retried on the next lookup.
	if resolved {
		r.tokens.Set(token, meta)
	}
	return meta, nil
}

func (r *Reader) call(ctx context.Context, target common.Address, parsed abi.ABI, method string, args ...interface{}) ([]interface{}, error) {
	if r.caller == nil {
		return nil, fmt.Errorf("chain caller is nil")
	}
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	msg := ethereum.CallMsg{To: &target, Data: data}
	resp, err := r.caller.CallContract(ctx, msg)
	if err != nil {
		metrics.ChainCallFailuresTotal.WithLabelValues(method).Inc()
		return nil, fmt.Errorf("call %s on %s: %w", method, target.Hex(), err)
	}
	values, err := parsed.Unpack(method, resp)
	if err != nil {
		metrics.ChainCallFailuresTotal.WithLabelValues(method).Inc()
		return nil, fmt.Errorf("unpack %s on %s: %w", method, target.Hex(), err)
	}
	if len(values) == 0 {
		return nil, fmt.Errorf("%s returned no values", method)
	}
	return values, nil
}
