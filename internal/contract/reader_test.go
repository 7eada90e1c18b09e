package contract

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

var (
	poolAddr   = common.HexToAddress("0x1111111111111111111111111111111111111111")
	pairAddr   = common.HexToAddress("0x2222222222222222222222222222222222222222")
	token0Addr = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
	token1Addr = common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	rewardAddr = common.HexToAddress("0xcccccccccccccccccccccccccccccccccccccccc")
)

type fakeCaller struct {
	mu        sync.Mutex
	responses map[string][]byte
	calls     map[string]int
}

func newFakeCaller() *fakeCaller {
	return &fakeCaller{responses: make(map[string][]byte), calls: make(map[string]int)}
}

func callKey(to common.Address, data []byte) string {
	return to.Hex() + ":" + hex.EncodeToString(data)
}

func (f *fakeCaller) expect(t *testing.T, to common.Address, parsed abi.ABI, method string, args []interface{}, outputs ...interface{}) {
	t.Helper()
	data, err := parsed.Pack(method, args...)
	if err != nil {
		t.Fatalf("pack %s: %v", method, err)
	}
	resp, err := parsed.Methods[method].Outputs.Pack(outputs...)
	if err != nil {
		t.Fatalf("pack outputs %s: %v", method, err)
	}
	f.responses[callKey(to, data)] = resp
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := callKey(*msg.To, msg.Data)
	f.calls[key]++
	resp, ok := f.responses[key]
	if !ok {
		return nil, errors.New("execution reverted")
	}
	return resp, nil
}

func mustABI(t *testing.T, fn func() (abi.ABI, error)) abi.ABI {
	t.Helper()
	parsed, err := fn()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	return parsed
}

func TestReaderPoolCalls(t *testing.T) {
	poolABI := mustABI(t, MultiRewardPoolABI)
	caller := newFakeCaller()
	caller.expect(t, poolAddr, poolABI, "stakingToken", nil, pairAddr)
	caller.expect(t, poolAddr, poolABI, "getAllRewardTokens", nil, []common.Address{rewardAddr, token0Addr})
	caller.expect(t, poolAddr, poolABI, "totalSupply", nil, big.NewInt(5000))
	caller.expect(t, poolAddr, poolABI, "rewardData", []interface{}{rewardAddr},
		common.HexToAddress("0x9999999999999999999999999999999999999999"),
		big.NewInt(604800),
		big.NewInt(1_800_000_000),
		big.NewInt(1000),
		big.NewInt(1_700_000_000),
		big.NewInt(0),
	)

	reader := NewReader(caller, zap.NewNop())
	ctx := context.Background()

	staking, err := reader.StakingToken(ctx, poolAddr)
	if err != nil || staking != pairAddr {
		t.Fatalf("staking token = %s, %v", staking.Hex(), err)
	}

	rewards, err := reader.RewardTokens(ctx, poolAddr)
	if err != nil {
		t.Fatalf("reward tokens: %v", err)
	}
	if len(rewards) != 2 || rewards[0] != rewardAddr || rewards[1] != token0Addr {
		t.Fatalf("reward tokens mismatch: %v", rewards)
	}

	staked, err := reader.TotalStaked(ctx, poolAddr)
	if err != nil || staked.Int64() != 5000 {
		t.Fatalf("total staked = %v, %v", staked, err)
	}

	data, err := reader.RewardData(ctx, poolAddr, rewardAddr)
	if err != nil {
		t.Fatalf("reward data: %v", err)
	}
	if data.RewardRate.Int64() != 1000 || data.PeriodFinish.Int64() != 1_800_000_000 || data.Token != rewardAddr {
		t.Fatalf("reward data mismatch: %+v", data)
	}
}

func TestReaderPairState(t *testing.T) {
	pairABI := mustABI(t, PairABI)
	erc20 := mustABI(t, ERC20ABI)
	erc20b := mustABI(t, ERC20Bytes32ABI)

	caller := newFakeCaller()
	caller.expect(t, pairAddr, pairABI, "getReserves", nil, big.NewInt(100), big.NewInt(200), uint32(1))
	caller.expect(t, pairAddr, pairABI, "totalSupply", nil, big.NewInt(300))
	caller.expect(t, pairAddr, pairABI, "decimals", nil, uint8(18))
	caller.expect(t, pairAddr, pairABI, "token0", nil, token0Addr)
	caller.expect(t, pairAddr, pairABI, "token1", nil, token1Addr)
	caller.expect(t, token0Addr, erc20, "decimals", nil, uint8(6))
	caller.expect(t, token0Addr, erc20, "symbol", nil, "USDC")
	caller.expect(t, token1Addr, erc20, "decimals", nil, uint8(18))
	var mkr [32]byte
	copy(mkr[:], "MKR")
	caller.expect(t, token1Addr, erc20b, "symbol", nil, mkr)

	reader := NewReader(caller, zap.NewNop())
	state, err := reader.PairState(context.Background(), pairAddr)
	if err != nil {
		t.Fatalf("pair state: %v", err)
	}

	if state.Reserve0.Int64() != 100 || state.Reserve1.Int64() != 200 {
		t.Fatalf("reserves mismatch: %s %s", state.Reserve0, state.Reserve1)
	}
	if state.TotalSupply.Int64() != 300 || state.Decimals != 18 {
		t.Fatalf("supply/decimals mismatch: %s %d", state.TotalSupply, state.Decimals)
	}
	if state.Token0.Symbol != "USDC" || state.Token0.Decimals != 6 {
		t.Fatalf("token0 mismatch: %+v", state.Token0)
	}
	if state.Token1.Symbol != "MKR" || state.Token1.Decimals != 18 {
		t.Fatalf("token1 mismatch: %+v", state.Token1)
	}
}

func TestReaderTokenMetaCached(t *testing.T) {
	erc20 := mustABI(t, ERC20ABI)
	caller := newFakeCaller()
	caller.expect(t, token0Addr, erc20, "decimals", nil, uint8(6))
	caller.expect(t, token0Addr, erc20, "symbol", nil, "USDC")

	reader := NewReader(caller, nil)
	for i := 0; i < 3; i++ {
		if _, err := reader.TokenMeta(context.Background(), token0Addr); err != nil {
			t.Fatalf("token meta: %v", err)
		}
	}

	data, _ := erc20.Pack("decimals")
	if got := caller.calls[callKey(token0Addr, data)]; got != 1 {
		t.Fatalf("decimals calls = %d, want 1", got)
	}
}

func TestReaderTokenMetaRetriesMissingSymbol(t *testing.T) {
	erc20 := mustABI(t, ERC20ABI)
	caller := newFakeCaller()
	caller.expect(t, token0Addr, erc20, "decimals", nil, uint8(6))

	reader := NewReader(caller, nil)
	meta, err := reader.TokenMeta(context.Background(), token0Addr)
	if err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if meta.Symbol != "" || meta.Decimals != 6 {
		t.Fatalf("first meta = %+v", meta)
	}

	caller.mu.Lock()
	caller.expect(t, token0Addr, erc20, "symbol", nil, "USDC")
	caller.mu.Unlock()

	meta, err = reader.TokenMeta(context.Background(), token0Addr)
	if err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if meta.Symbol != "USDC" {
		t.Fatalf("symbol = %q after the symbol call recovered, want USDC", meta.Symbol)
	}

	data, _ := erc20.Pack("decimals")
	if got := caller.calls[callKey(token0Addr, data)]; got != 2 {
		t.Fatalf("decimals calls = %d, want 2", got)
	}
	if _, err := reader.TokenMeta(context.Background(), token0Addr); err != nil {
		t.Fatalf("token meta: %v", err)
	}
	if got := caller.calls[callKey(token0Addr, data)]; got != 2 {
		t.Fatalf("decimals calls after caching = %d, want 2", got)
	}
}

func TestReaderPairStateFailure(t *testing.T) {
	reader := NewReader(newFakeCaller(), zap.NewNop())
	if _, err := reader.PairState(context.Background(), pairAddr); err == nil {
		t.Fatalf("expected error for missing pair")
	}
}
