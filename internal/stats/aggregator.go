package stats

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"farmScope/internal/metrics"
	"farmScope/internal/model"
	"farmScope/internal/price"
)

// ErrAllPoolsFailed is returned when not a single configured pool could be computed.
var ErrAllPoolsFailed = errors.New("stats unavailable for every configured pool")

// ChainReader reads pool, pair and token state for a single network.
type ChainReader interface {
	StakingToken(ctx context.Context, pool common.Address) (common.Address, error)
	RewardTokens(ctx context.Context, pool common.Address) ([]common.Address, error)
	RewardData(ctx context.Context, pool, token common.Address) (model.RewardData, error)
	TotalStaked(ctx context.Context, pool common.Address) (*big.Int, error)
	PairTokens(ctx context.Context, pair common.Address) (common.Address, common.Address, error)
	PairState(ctx context.Context, pair common.Address) (model.PairState, error)
	TokenMeta(ctx context.Context, token common.Address) (model.TokenMeta, error)
}

// PriceSource returns USD prices for tokens on a network. It never fails;
// missing prices fall back through price.Map.
type PriceSource interface {
	Prices(ctx context.Context, network string, tokens []common.Address) price.Map
}

// Network binds a network's configuration to its chain reader.
type Network struct {
	model.NetworkConfig
	Reader ChainReader
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the time source used for reward period checks.
func WithClock(now func() time.Time) Option {
	return func(a *Aggregator) {
		if now != nil {
			a.now = now
		}
	}
}

// Aggregator computes PairStats for every configured pool.
type Aggregator struct {
	networks []Network
	prices   PriceSource
	logger   *zap.Logger
	now      func() time.Time
}

func NewAggregator(networks []Network, prices PriceSource, logger *zap.Logger, opts ...Option) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &Aggregator{
		networks: networks,
		prices:   prices,
		logger:   logger,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Stats computes stats for every pool in network order, then pool order.
// A pool that fails yields a degraded PairStat and does not stop the others.
func (a *Aggregator) Stats(ctx context.Context) ([]model.PairStat, error) {
	if a.prices == nil {
		return nil, fmt.Errorf("price source is nil")
	}

	start := time.Now()
	result := make([]model.PairStat, 0)
	var failed int

	for _, network := range a.networks {
		a.logger.Info("checking pools", zap.String("network", network.Network), zap.Int("pools", len(network.Pools)))

		for _, pool := range network.Pools {
			if err := ctx.Err(); err != nil {
				return nil, err
			}

			stat, err := a.poolStat(ctx, network, pool)
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					return nil, ctxErr
				}
				failed++
				metrics.PoolFailuresTotal.WithLabelValues(network.Network).Inc()
				a.logger.Warn("pool stats failed",
					zap.String("network", network.Network),
					zap.String("pool", pool.Hex()),
					zap.Error(err),
				)
				stat = degradedStat(network.Network, pool, err)
			}
			result = append(result, stat)
		}
	}

	if len(result) > 0 && failed == len(result) {
		return result, ErrAllPoolsFailed
	}

	a.logger.Info("stats computed",
		zap.Int("pools", len(result)),
		zap.Int("failed", failed),
		zap.Duration("elapsed", time.Since(start)),
	)
	return result, nil
}

func (a *Aggregator) poolStat(ctx context.Context, network Network, pool common.Address) (model.PairStat, error) {
	reader := network.Reader
	if reader == nil {
		return model.PairStat{}, fmt.Errorf("no chain reader for network %s", network.Network)
	}

	var (
		stakingToken common.Address
		rewardTokens []common.Address
		stakedSupply *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		stakingToken, err = reader.StakingToken(gctx, pool)
		if err != nil {
			return fmt.Errorf("staking token: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		rewardTokens, err = reader.RewardTokens(gctx, pool)
		if err != nil {
			return fmt.Errorf("reward tokens: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		stakedSupply, err = reader.TotalStaked(gctx, pool)
		if err != nil {
			return fmt.Errorf("total staked: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return model.PairStat{}, err
	}

	token0, token1, err := reader.PairTokens(ctx, stakingToken)
	if err != nil {
		return model.PairStat{}, fmt.Errorf("pair tokens: %w", err)
	}

	prices := a.prices.Prices(ctx, network.Network, interestedTokens(rewardTokens, token0, token1))

	pairState, err := reader.PairState(ctx, stakingToken)
	if err != nil {
		a.logger.Warn("pair state unavailable, using placeholder",
			zap.String("network", network.Network),
			zap.String("pair", stakingToken.Hex()),
			zap.Error(err),
		)
		pairState = model.PlaceholderPairState(stakingToken)
		pairState.Token0.Address = token0
		pairState.Token1.Address = token1
	}

	lpInfo := ComputeLpInfo(pairState, prices)
	stakedValue := StakedValue(lpInfo.Price, stakedSupply, pairState.Decimals)

	annualReward, err := a.annualRewardValue(ctx, reader, pool, rewardTokens, prices)
	if err != nil {
		return model.PairStat{}, err
	}

	return model.PairStat{
		Network:       network.Network,
		Pool:          pool,
		StakingToken:  stakingToken,
		StakingToken0: lpInfo.Token0Symbol,
		StakingToken1: lpInfo.Token1Symbol,
		PairTVL:       lpInfo.TVL,
		StakedValue:   stakedValue,
		PoolAPR:       APR(annualReward, stakedValue),
	}, nil
}

func (a *Aggregator) annualRewardValue(ctx context.Context, reader ChainReader, pool common.Address, rewardTokens []common.Address, prices price.Map) (*big.Int, error) {
	now := a.now()
	values := make([]*big.Int, len(rewardTokens))

	g, gctx := errgroup.WithContext(ctx)
	for i, token := range rewardTokens {
		g.Go(func() error {
			data, err := reader.RewardData(gctx, pool, token)
			if err != nil {
				return fmt.Errorf("reward data %s: %w", token.Hex(), err)
			}
			if !RewardActive(data, now) {
				values[i] = big.NewInt(0)
				return nil
			}
			meta, err := reader.TokenMeta(gctx, token)
			if err != nil {
				return fmt.Errorf("reward token %s: %w", token.Hex(), err)
			}
			values[i] = RewardValue(data, prices.Price(token), meta.Decimals, now)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	total := big.NewInt(0)
	for _, v := range values {
		total.Add(total, v)
	}
	return total, nil
}

func interestedTokens(rewardTokens []common.Address, pairTokens ...common.Address) []common.Address {
	seen := make(map[common.Address]struct{}, len(rewardTokens)+len(pairTokens))
	out := make([]common.Address, 0, len(rewardTokens)+len(pairTokens))
	for _, list := range [][]common.Address{rewardTokens, pairTokens} {
		for _, token := range list {
			if _, ok := seen[token]; ok {
				continue
			}
			seen[token] = struct{}{}
			out = append(out, token)
		}
	}
	return out
}

func degradedStat(network string, pool common.Address, err error) model.PairStat {
	return model.PairStat{
		Network:     network,
		Pool:        pool,
		PairTVL:     big.NewInt(0),
		StakedValue: big.NewInt(0),
		PoolAPR:     big.NewInt(0),
		Err:         err,
	}
}
