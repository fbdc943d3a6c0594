package chain

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/agentfight/arena/internal/domain"
)

// testKey is a throwaway secp256k1 key used only in tests.
const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

// fakeBackend scripts SendTransaction errors per attempt and confirms every
// sent transaction immediately.
type fakeBackend struct {
	chainID    int64
	sendErrs   []error // consumed one per SendTransaction call
	sendCalls  int
	noBaseFee  bool
	callResult []byte // returned by CallContract when set
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return big.NewInt(f.chainID), nil
}

func (f *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return uint64(f.sendCalls), nil
}

func (f *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if f.noBaseFee {
		return nil, errors.New("method not found")
	}
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(2_000_000_000), nil
}

func (f *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	if f.noBaseFee {
		return &types.Header{}, nil
	}
	return &types.Header{BaseFee: big.NewInt(100)}, nil
}

func (f *fakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	idx := f.sendCalls
	f.sendCalls++
	if idx < len(f.sendErrs) && f.sendErrs[idx] != nil {
		return f.sendErrs[idx]
	}
	return nil
}

func (f *fakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	return &types.Receipt{Status: types.ReceiptStatusSuccessful}, nil
}

func (f *fakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.callResult != nil {
		return f.callResult, nil
	}
	return nil, errors.New("not implemented")
}

func newTestRegistrar(t *testing.T, eth backend) *Registrar {
	t.Helper()
	r, err := newWithBackend(Config{
		ContractAddress: "0x000000000000000000000000000000000000dEaD",
		ChainID:         84532,
		PrivateKeyHex:   testKey,
		MaxAttempts:     3,
		RetryBackoff:    time.Millisecond,
		SendTimeout:     time.Second,
		ConfirmTimeout:  time.Second,
	}, eth, slog.Default())
	if err != nil {
		t.Fatalf("newWithBackend: %v", err)
	}
	return r
}

func TestCreateMatchRetriesOnTimeout(t *testing.T) {
	eth := &fakeBackend{
		chainID: 84532,
		sendErrs: []error{
			errors.New("i/o timeout"),
			errors.New("i/o timeout"),
			nil,
		},
	}
	r := newTestRegistrar(t, eth)

	out := r.CreateMatch(context.Background(), "m-1", "Alpha", "Beta")
	if !out.OK {
		t.Fatalf("expected success, got %+v", out.Err)
	}
	if out.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", out.Attempts)
	}
	if eth.sendCalls != 3 {
		t.Errorf("sendCalls = %d, want 3", eth.sendCalls)
	}
	if out.TxHash == "" {
		t.Error("expected a tx hash on success")
	}
}

func TestCreateMatchTerminalErrorDoesNotRetry(t *testing.T) {
	eth := &fakeBackend{
		chainID:  84532,
		sendErrs: []error{errors.New("insufficient funds for gas * price + value")},
	}
	r := newTestRegistrar(t, eth)

	out := r.CreateMatch(context.Background(), "m-2", "Alpha", "Beta")
	if out.OK {
		t.Fatal("expected failure")
	}
	if out.Err.Code != domain.ChainInsufficientFunds {
		t.Errorf("code = %s, want %s", out.Err.Code, domain.ChainInsufficientFunds)
	}
	if out.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", out.Attempts)
	}
	if eth.sendCalls != 1 {
		t.Errorf("sendCalls = %d, want 1", eth.sendCalls)
	}
}

func TestCreateMatchExhaustsAttempts(t *testing.T) {
	eth := &fakeBackend{
		chainID: 84532,
		sendErrs: []error{
			errors.New("connection refused"),
			errors.New("connection refused"),
			errors.New("connection refused"),
		},
	}
	r := newTestRegistrar(t, eth)

	out := r.CreateMatch(context.Background(), "m-3", "Alpha", "Beta")
	if out.OK {
		t.Fatal("expected failure")
	}
	if out.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", out.Attempts)
	}
	if out.Err.Code != domain.ChainUnavailable {
		t.Errorf("code = %s, want %s", out.Err.Code, domain.ChainUnavailable)
	}
}

func TestChainIDMismatchRefusesToSend(t *testing.T) {
	eth := &fakeBackend{chainID: 1} // mainnet, not the configured testnet
	r := newTestRegistrar(t, eth)

	out := r.LockMatch(context.Background(), "m-4")
	if out.OK {
		t.Fatal("expected failure")
	}
	if out.Err.Code != domain.ChainIDMismatch {
		t.Errorf("code = %s, want %s", out.Err.Code, domain.ChainIDMismatch)
	}
	if eth.sendCalls != 0 {
		t.Errorf("sendCalls = %d, want 0", eth.sendCalls)
	}
}

func TestLegacyFeeFallback(t *testing.T) {
	eth := &fakeBackend{chainID: 84532, noBaseFee: true}
	r := newTestRegistrar(t, eth)

	out := r.LockMatch(context.Background(), "m-5")
	if !out.OK {
		t.Fatalf("expected success, got %+v", out.Err)
	}
}

func TestDisabledRegistrar(t *testing.T) {
	r := NewDisabled(slog.Default())

	out := r.CreateMatch(context.Background(), "m-6", "Alpha", "Beta")
	if out.OK {
		t.Fatal("expected failure")
	}
	if out.Err.Code != domain.ChainDisabled {
		t.Errorf("code = %s, want %s", out.Err.Code, domain.ChainDisabled)
	}
	if r.Status().Enabled {
		t.Error("Status().Enabled = true, want false")
	}
}

func TestMatchKeyTruncates(t *testing.T) {
	long := "0123456789abcdef0123456789abcdef-overflow"
	key := MatchKey(long)
	if string(key[:]) != long[:32] {
		t.Errorf("key = %q, want %q", key, long[:32])
	}

	short := MatchKey("m-1")
	if string(short[:3]) != "m-1" {
		t.Errorf("short key prefix = %q, want %q", short[:3], "m-1")
	}
	for _, b := range short[3:] {
		if b != 0 {
			t.Fatal("expected zero padding after short id")
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want domain.ChainErrorCode
	}{
		{"nil-safe deadline", context.DeadlineExceeded, domain.ChainNetworkTimeout},
		{"insufficient funds", errors.New("insufficient funds for transfer"), domain.ChainInsufficientFunds},
		{"nonce too low", errors.New("nonce too low: next nonce 5"), domain.ChainNonceConflict},
		{"replacement underpriced", errors.New("replacement transaction underpriced"), domain.ChainNonceConflict},
		{"match exists", errors.New("execution reverted: match already exists"), domain.ChainMatchExists},
		{"unauthorized", errors.New("execution reverted: caller is not the operator"), domain.ChainUnauthorized},
		{"plain revert", errors.New("execution reverted"), domain.ChainRevert},
		{"rate limited", errors.New("429 too many requests"), domain.ChainRateLimited},
		{"unavailable", errors.New("dial tcp: connection refused"), domain.ChainUnavailable},
		{"timeout text", errors.New("read tcp: i/o timeout"), domain.ChainNetworkTimeout},
		{"unknown", errors.New("something odd happened"), domain.ChainUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryableSet(t *testing.T) {
	retryable := []domain.ChainErrorCode{
		domain.ChainNetworkTimeout,
		domain.ChainRateLimited,
		domain.ChainUnavailable,
		domain.ChainNonceConflict,
		domain.ChainUnknown,
	}
	terminal := []domain.ChainErrorCode{
		domain.ChainDisabled,
		domain.ChainInsufficientFunds,
		domain.ChainUnauthorized,
		domain.ChainMatchExists,
		domain.ChainRevert,
		domain.ChainIDMismatch,
	}

	for _, c := range retryable {
		if !c.Retryable() {
			t.Errorf("%s should be retryable", c)
		}
	}
	for _, c := range terminal {
		if c.Retryable() {
			t.Errorf("%s should be terminal", c)
		}
	}
}

func TestMatchExists(t *testing.T) {
	eth := &fakeBackend{chainID: 84532}
	r := newTestRegistrar(t, eth)

	packed, err := r.abi.Methods["getMatch"].Outputs.Pack("Alpha", "Beta", uint8(0), true)
	if err != nil {
		t.Fatal(err)
	}
	eth.callResult = packed

	exists, err := r.MatchExists(context.Background(), "m-1")
	if err != nil {
		t.Fatalf("MatchExists: %v", err)
	}
	if !exists {
		t.Error("exists = false, want true")
	}

	packed, err = r.abi.Methods["getMatch"].Outputs.Pack("", "", uint8(0), false)
	if err != nil {
		t.Fatal(err)
	}
	eth.callResult = packed

	exists, err = r.MatchExists(context.Background(), "m-unknown")
	if err != nil {
		t.Fatalf("MatchExists: %v", err)
	}
	if exists {
		t.Error("exists = true, want false")
	}
}

func TestMatchExistsDisabled(t *testing.T) {
	r := NewDisabled(slog.Default())
	if _, err := r.MatchExists(context.Background(), "m-1"); err == nil {
		t.Error("expected error from disabled registrar")
	}
}
