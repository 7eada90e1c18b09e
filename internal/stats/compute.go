package stats

import (
	"math/big"
	"time"

	"farmScope/internal/fixedpoint"
	"farmScope/internal/model"
	"farmScope/internal/price"
)

// ComputeLpInfo values both sides of the pair in USD and derives the LP unit
// price. A pair with zero LP supply has a zero unit price.
func ComputeLpInfo(state model.PairState, prices price.Map) model.LpPairInfo {
	value0 := tokenValue(state.Reserve0, prices.Price(state.Token0.Address), state.Token0.Decimals)
	value1 := tokenValue(state.Reserve1, prices.Price(state.Token1.Address), state.Token1.Decimals)
	tvl := new(big.Int).Add(value0, value1)

	scaled := new(big.Int).Mul(tvl, fixedpoint.Pow10(state.Decimals))
	scaled.Mul(scaled, fixedpoint.Resolution)
	lpPrice := fixedpoint.Div(scaled, state.TotalSupply)

	return model.LpPairInfo{
		Token0Symbol: state.Token0.Symbol,
		Token1Symbol: state.Token1.Symbol,
		Price:        lpPrice,
		TVL:          tvl,
	}
}

// StakedValue is the USD value of stakedSupply LP tokens at lpPrice.
func StakedValue(lpPrice, stakedSupply *big.Int, lpDecimals uint8) *big.Int {
	if lpPrice == nil || stakedSupply == nil {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(lpPrice, stakedSupply)
	value = fixedpoint.Div(value, fixedpoint.Pow10(lpDecimals))
	return fixedpoint.Div(value, fixedpoint.Resolution)
}

// RewardValue is the USD value of one year of emissions for a reward token,
// or zero once its reward period has finished.
func RewardValue(data model.RewardData, tokenPrice *big.Int, decimals uint8, now time.Time) *big.Int {
	if !RewardActive(data, now) || data.RewardRate == nil || tokenPrice == nil {
		return big.NewInt(0)
	}
	qty := new(big.Int).Mul(data.RewardRate, fixedpoint.SecondsPerYear)
	value := qty.Mul(qty, tokenPrice)
	value = fixedpoint.Div(value, fixedpoint.Resolution)
	return fixedpoint.Div(value, fixedpoint.Pow10(decimals))
}

// RewardActive reports whether the reward period is still running at now.
func RewardActive(data model.RewardData, now time.Time) bool {
	if data.PeriodFinish == nil {
		return false
	}
	return big.NewInt(now.Unix()).Cmp(data.PeriodFinish) < 0
}

// APR returns annualReward/stakedValue with 2 implied decimals, or zero when
// nothing is staked.
func APR(annualReward, stakedValue *big.Int) *big.Int {
	return fixedpoint.MulDiv(annualReward, fixedpoint.PercentResolution, stakedValue)
}

func tokenValue(reserve, tokenPrice *big.Int, decimals uint8) *big.Int {
	if reserve == nil || tokenPrice == nil {
		return big.NewInt(0)
	}
	value := new(big.Int).Mul(reserve, tokenPrice)
	value = fixedpoint.Div(value, fixedpoint.Resolution)
	return fixedpoint.Div(value, fixedpoint.Pow10(decimals))
}
