package stats

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"farmScope/internal/fixedpoint"
	"farmScope/internal/model"
	"farmScope/internal/price"
)

func e18(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), fixedpoint.Pow10(18))
}

func TestComputeLpInfo(t *testing.T) {
	usdc := common.HexToAddress("0x00000000000000000000000000000000000000a1")
	weth := common.HexToAddress("0x00000000000000000000000000000000000000a2")

	state := model.PairState{
		Reserve0:    big.NewInt(2_000_000 * 1_000_000), // 2,000,000 USDC at 6 decimals
		Reserve1:    e18(1000),                         // 1,000 WETH
		TotalSupply: e18(50),
		Decimals:    18,
		Token0:      model.TokenMeta{Address: usdc, Decimals: 6, Symbol: "USDC"},
		Token1:      model.TokenMeta{Address: weth, Decimals: 18, Symbol: "WETH"},
	}
	prices := price.Map{
		price.Key(usdc): fixedpoint.FromFloat(1),
		price.Key(weth): fixedpoint.FromFloat(2000),
	}

	info := ComputeLpInfo(state, prices)
	assert.Equal(t, "USDC", info.Token0Symbol)
	assert.Equal(t, "WETH", info.Token1Symbol)
	assert.Equal(t, int64(4_000_000), info.TVL.Int64())
	// 4,000,000 USD / 50 LP = 80,000 USD per LP, scaled by R_PRICE.
	assert.Equal(t, 0, info.Price.Cmp(fixedpoint.FromFloat(80_000)))
}

func TestComputeLpInfoMissingPricesFallBackToOne(t *testing.T) {
	state := model.PairState{
		Reserve0:    e18(10),
		Reserve1:    e18(5),
		TotalSupply: e18(1),
		Decimals:    18,
		Token0:      model.TokenMeta{Address: common.HexToAddress("0x01"), Decimals: 18},
		Token1:      model.TokenMeta{Address: common.HexToAddress("0x02"), Decimals: 18},
	}
	info := ComputeLpInfo(state, price.Map{})
	assert.Equal(t, int64(15), info.TVL.Int64())
}

func TestComputeLpInfoZeroSupply(t *testing.T) {
	state := model.PlaceholderPairState(common.HexToAddress("0x03"))
	info := ComputeLpInfo(state, price.Map{})

	require.NotNil(t, info.Price)
	assert.Equal(t, 0, info.Price.Sign())
	assert.Equal(t, 0, info.TVL.Sign())
	assert.Equal(t, 0, StakedValue(info.Price, e18(10), state.Decimals).Sign())
}

func TestStakedValue(t *testing.T) {
	lpPrice := fixedpoint.FromFloat(80_000)
	got := StakedValue(lpPrice, e18(3), 18)
	assert.Equal(t, int64(240_000), got.Int64())
}

func TestRewardValueAndAPR(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	data := model.RewardData{
		RewardRate:   big.NewInt(1000),
		PeriodFinish: big.NewInt(now.Add(365 * 24 * time.Hour).Unix()),
	}
	reward := RewardValue(data, fixedpoint.FromFloat(2.0), 18, now)
	apr := APR(reward, big.NewInt(100))

	// (1000 * secondsPerYear * 2.0) / 1e18 / 100 * 10000 is far below one
	// basis point, so the integer result is zero within one unit.
	expected := 1000 * float64(fixedpoint.SecondsPerYear.Int64()) * 2.0 / 1e18 / 100 * 10000
	assert.InDelta(t, expected, float64(apr.Int64()), 1)
}

func TestRewardValueRealisticRate(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	data := model.RewardData{
		RewardRate:   new(big.Int).Mul(big.NewInt(1000), fixedpoint.Pow10(12)), // 1e15 wei/s
		PeriodFinish: big.NewInt(now.Unix() + 1),
	}
	reward := RewardValue(data, fixedpoint.FromFloat(2.0), 18, now)
	// 1e15 * 31,557,600 * 2 / 1e18 = 63,115.2
	assert.Equal(t, int64(63_115), reward.Int64())

	apr := APR(reward, big.NewInt(100))
	assert.Equal(t, int64(6_311_500), apr.Int64())
}

func TestRewardValueExpiredPeriodIsZero(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	for _, finish := range []*big.Int{nil, big.NewInt(0), big.NewInt(now.Unix() - 1), big.NewInt(now.Unix())} {
		data := model.RewardData{RewardRate: e18(1), PeriodFinish: finish}
		assert.Equal(t, 0, RewardValue(data, fixedpoint.FromFloat(10), 18, now).Sign(), "finish=%v", finish)
	}
}

func TestRewardActiveFarFuturePeriod(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	// uint256 max-like timestamps must not wrap into the past.
	beyondInt64 := new(big.Int).Lsh(big.NewInt(1), 63)
	beyondUint64 := new(big.Int).Lsh(big.NewInt(1), 200)
	for _, finish := range []*big.Int{beyondInt64, beyondUint64} {
		assert.True(t, RewardActive(model.RewardData{PeriodFinish: finish}, now), "finish=%s", finish)
	}
}

func TestAPRZeroStaked(t *testing.T) {
	assert.Equal(t, 0, APR(big.NewInt(1000), big.NewInt(0)).Sign())
}
