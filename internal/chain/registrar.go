// Package chain wraps the arena ledger contract: match creation, locking,
// resolution, cancellation and reward payout. Every write returns a typed
// domain.TxOutcome, so errors never cross this boundary unclassified and the
// orchestrator can decide between retrying the cycle and entering the waiting
// state from the error code alone.
package chain

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/agentfight/arena/internal/domain"
)

// arenaABI is the subset of the ledger contract consumed by the registrar.
const arenaABI = `[
	{"type":"function","name":"createMatch","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes32"},{"name":"fighterA","type":"string"},{"name":"fighterB","type":"string"}],"outputs":[]},
	{"type":"function","name":"lockMatch","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"resolveMatch","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes32"},{"name":"winner","type":"uint8"}],"outputs":[]},
	{"type":"function","name":"cancelMatch","stateMutability":"nonpayable","inputs":[{"name":"id","type":"bytes32"}],"outputs":[]},
	{"type":"function","name":"getMatch","stateMutability":"view","inputs":[{"name":"id","type":"bytes32"}],"outputs":[{"name":"fighterA","type":"string"},{"name":"fighterB","type":"string"},{"name":"winner","type":"uint8"},{"name":"exists","type":"bool"}]},
	{"type":"function","name":"owner","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]},
	{"type":"function","name":"operator","stateMutability":"view","inputs":[],"outputs":[{"name":"","type":"address"}]}
]`

const (
	// contractGasLimit is the fixed gas limit for contract writes.
	contractGasLimit = 300_000
	// transferGasLimit is the gas limit for plain value transfers.
	transferGasLimit = 21_000
	// receiptPollInterval is how often the confirmation wait polls for a
	// receipt.
	receiptPollInterval = 2 * time.Second
)

// backend is the slice of the ethclient API the registrar uses. It exists so
// tests can substitute a fake node.
type backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Config holds the registrar's connection, signer and retry parameters.
type Config struct {
	RPCURL          string
	ContractAddress string
	ChainID         int64
	PrivateKeyHex   string
	MaxAttempts     int
	RetryBackoff    time.Duration
	SendTimeout     time.Duration
	ConfirmTimeout  time.Duration
}

// Registrar submits arena match transactions to the ledger contract. All
// submissions are serialized on a mutex so the single operator signer never
// races itself into nonce conflicts.
type Registrar struct {
	enabled  bool
	cfg      Config
	eth      backend
	abi      abi.ABI
	key      *ecdsa.PrivateKey
	address  common.Address
	contract common.Address
	logger   *slog.Logger

	mu sync.Mutex // serializes nonce fetch + send per signer
}

// OnChainMatch is the decoded getMatch view result.
type OnChainMatch struct {
	FighterA string
	FighterB string
	Winner   uint8
	Exists   bool
}

// New dials the RPC endpoint and returns a ready Registrar. The private key
// must already be decrypted (see the crypto package for key custody).
func New(ctx context.Context, cfg Config, logger *slog.Logger) (*Registrar, error) {
	client, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", cfg.RPCURL, err)
	}
	return newWithBackend(cfg, client, logger)
}

// NewDisabled returns a Registrar whose every operation fails fast with the
// DISABLED code. Used when no chain is configured so the orchestrator still
// gets structured outcomes.
func NewDisabled(logger *slog.Logger) *Registrar {
	return &Registrar{
		enabled: false,
		logger:  logger.With(slog.String("component", "chain")),
	}
}

func newWithBackend(cfg Config, eth backend, logger *slog.Logger) (*Registrar, error) {
	parsed, err := abi.JSON(strings.NewReader(arenaABI))
	if err != nil {
		return nil, fmt.Errorf("chain: parse abi: %w", err)
	}

	keyHex := strings.TrimPrefix(cfg.PrivateKeyHex, "0x")
	key, err := ethcrypto.HexToECDSA(keyHex)
	if err != nil {
		return nil, fmt.Errorf("chain: invalid private key: %w", err)
	}

	if !common.IsHexAddress(cfg.ContractAddress) {
		return nil, fmt.Errorf("chain: invalid contract address %q", cfg.ContractAddress)
	}

	return &Registrar{
		enabled:  true,
		cfg:      cfg,
		eth:      eth,
		abi:      parsed,
		key:      key,
		address:  ethcrypto.PubkeyToAddress(key.PublicKey),
		contract: common.HexToAddress(cfg.ContractAddress),
		logger:   logger.With(slog.String("component", "chain")),
	}, nil
}

// Enabled reports whether the registrar is configured against a live chain.
func (r *Registrar) Enabled() bool { return r.enabled }

// Status returns the registrar's runtime status snapshot.
func (r *Registrar) Status() domain.ChainStatus {
	s := domain.ChainStatus{Enabled: r.enabled}
	if r.enabled {
		s.ChainID = r.cfg.ChainID
		s.Contract = r.contract.Hex()
		s.Operator = r.address.Hex()
	}
	return s
}

// MatchKey encodes a match identifier into the fixed-size bytes32 used on
// chain. Identifiers longer than 32 bytes are truncated.
func MatchKey(matchID string) [32]byte {
	var key [32]byte
	copy(key[:], matchID)
	return key
}

// CreateMatch registers a new match on chain. It retries up to MaxAttempts
// with linear backoff, but only for retryable error codes; terminal codes
// (insufficient funds, unauthorized signer, revert, match exists) fail the
// operation immediately.
func (r *Registrar) CreateMatch(ctx context.Context, matchID, nameA, nameB string) domain.TxOutcome {
	if !r.enabled {
		return disabledOutcome()
	}

	start := time.Now()
	var last *domain.ChainError
	for attempt := 1; attempt <= r.cfg.MaxAttempts; attempt++ {
		out := r.write(ctx, "createMatch", nil, MatchKey(matchID), nameA, nameB)
		out.Attempts = attempt
		out.Elapsed = time.Since(start)
		if out.OK {
			return out
		}
		last = out.Err

		if !out.Err.Code.Retryable() {
			r.logger.Warn("createMatch failed with terminal error",
				slog.String("match_id", matchID),
				slog.String("code", string(out.Err.Code)),
			)
			return out
		}

		r.logger.Warn("createMatch attempt failed, retrying",
			slog.String("match_id", matchID),
			slog.Int("attempt", attempt),
			slog.String("code", string(out.Err.Code)),
		)

		if attempt < r.cfg.MaxAttempts {
			select {
			case <-ctx.Done():
				return domain.TxOutcome{
					Attempts: attempt,
					Elapsed:  time.Since(start),
					Err:      classified(ctx.Err()),
				}
			case <-time.After(r.cfg.RetryBackoff * time.Duration(attempt)):
			}
		}
	}

	return domain.TxOutcome{
		Attempts: r.cfg.MaxAttempts,
		Elapsed:  time.Since(start),
		Err:      last,
	}
}

// LockMatch locks betting for a match on chain. Single attempt; the
// orchestrator treats lock failures as advisory.
func (r *Registrar) LockMatch(ctx context.Context, matchID string) domain.TxOutcome {
	if !r.enabled {
		return disabledOutcome()
	}
	out := r.write(ctx, "lockMatch", nil, MatchKey(matchID))
	out.Attempts = 1
	return out
}

// ResolveMatch records the winning side on chain.
func (r *Registrar) ResolveMatch(ctx context.Context, matchID string, winner domain.Side) domain.TxOutcome {
	if !r.enabled {
		return disabledOutcome()
	}
	side := uint8(1)
	if winner == domain.SideB {
		side = 2
	}
	out := r.write(ctx, "resolveMatch", nil, MatchKey(matchID), side)
	out.Attempts = 1
	return out
}

// CancelMatch voids a match on chain, refunding escrowed wagers.
func (r *Registrar) CancelMatch(ctx context.Context, matchID string) domain.TxOutcome {
	if !r.enabled {
		return disabledOutcome()
	}
	out := r.write(ctx, "cancelMatch", nil, MatchKey(matchID))
	out.Attempts = 1
	return out
}

// SendReward transfers the winner's reward as a plain value transfer.
func (r *Registrar) SendReward(ctx context.Context, to string, amountWei *big.Int) domain.TxOutcome {
	if !r.enabled {
		return disabledOutcome()
	}
	if !common.IsHexAddress(to) {
		return domain.TxOutcome{Err: &domain.ChainError{
			Code:   domain.ChainUnknown,
			Detail: fmt.Sprintf("invalid reward address %q", to),
		}}
	}
	dest := common.HexToAddress(to)
	out := r.transfer(ctx, dest, amountWei)
	out.Attempts = 1
	return out
}

// GetMatch reads the on-chain record for a match id.
func (r *Registrar) GetMatch(ctx context.Context, matchID string) (OnChainMatch, error) {
	if !r.enabled {
		return OnChainMatch{}, &domain.ChainError{Code: domain.ChainDisabled}
	}

	data, err := r.abi.Pack("getMatch", MatchKey(matchID))
	if err != nil {
		return OnChainMatch{}, fmt.Errorf("chain: pack getMatch: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
	defer cancel()

	raw, err := r.eth.CallContract(callCtx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return OnChainMatch{}, classified(err)
	}

	var out OnChainMatch
	res, err := r.abi.Unpack("getMatch", raw)
	if err != nil || len(res) != 4 {
		return OnChainMatch{}, fmt.Errorf("chain: unpack getMatch: %w", err)
	}
	out.FighterA, _ = res[0].(string)
	out.FighterB, _ = res[1].(string)
	out.Winner, _ = res[2].(uint8)
	out.Exists, _ = res[3].(bool)
	return out, nil
}

// MatchExists reports whether the contract holds a record for the match id.
// The orchestrator uses it to validate restore candidates.
func (r *Registrar) MatchExists(ctx context.Context, matchID string) (bool, error) {
	m, err := r.GetMatch(ctx, matchID)
	if err != nil {
		return false, err
	}
	return m.Exists, nil
}

// Operator reads the contract's configured operator address.
func (r *Registrar) Operator(ctx context.Context) (common.Address, error) {
	return r.viewAddress(ctx, "operator")
}

// Owner reads the contract's owner address.
func (r *Registrar) Owner(ctx context.Context) (common.Address, error) {
	return r.viewAddress(ctx, "owner")
}

func (r *Registrar) viewAddress(ctx context.Context, method string) (common.Address, error) {
	if !r.enabled {
		return common.Address{}, &domain.ChainError{Code: domain.ChainDisabled}
	}
	data, err := r.abi.Pack(method)
	if err != nil {
		return common.Address{}, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	callCtx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
	defer cancel()
	raw, err := r.eth.CallContract(callCtx, ethereum.CallMsg{To: &r.contract, Data: data}, nil)
	if err != nil {
		return common.Address{}, classified(err)
	}
	res, err := r.abi.Unpack(method, raw)
	if err != nil || len(res) != 1 {
		return common.Address{}, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	addr, _ := res[0].(common.Address)
	return addr, nil
}

// ---------------------------------------------------------------------------
// Transaction plumbing
// ---------------------------------------------------------------------------

// write packs a contract call, signs it, sends it and waits for confirmation.
// value may be nil for non-payable methods.
func (r *Registrar) write(ctx context.Context, method string, value *big.Int, args ...any) domain.TxOutcome {
	start := time.Now()

	data, err := r.abi.Pack(method, args...)
	if err != nil {
		return domain.TxOutcome{Elapsed: time.Since(start), Err: classified(err)}
	}

	hash, cerr := r.submit(ctx, &r.contract, value, data, contractGasLimit)
	if cerr != nil {
		return domain.TxOutcome{Elapsed: time.Since(start), Err: cerr}
	}

	if cerr := r.awaitReceipt(ctx, hash); cerr != nil {
		return domain.TxOutcome{TxHash: hash.Hex(), Elapsed: time.Since(start), Err: cerr}
	}

	r.logger.Info("chain write confirmed",
		slog.String("method", method),
		slog.String("tx", hash.Hex()),
		slog.Duration("elapsed", time.Since(start)),
	)
	return domain.TxOutcome{OK: true, TxHash: hash.Hex(), Elapsed: time.Since(start)}
}

// transfer sends a plain value transfer and waits for confirmation.
func (r *Registrar) transfer(ctx context.Context, to common.Address, amountWei *big.Int) domain.TxOutcome {
	start := time.Now()

	hash, cerr := r.submit(ctx, &to, amountWei, nil, transferGasLimit)
	if cerr != nil {
		return domain.TxOutcome{Elapsed: time.Since(start), Err: cerr}
	}
	if cerr := r.awaitReceipt(ctx, hash); cerr != nil {
		return domain.TxOutcome{TxHash: hash.Hex(), Elapsed: time.Since(start), Err: cerr}
	}
	return domain.TxOutcome{OK: true, TxHash: hash.Hex(), Elapsed: time.Since(start)}
}

// submit verifies the connected chain id, builds fee overrides, signs and
// sends a transaction. The whole step is bounded by SendTimeout.
func (r *Registrar) submit(ctx context.Context, to *common.Address, value *big.Int, data []byte, gasLimit uint64) (common.Hash, *domain.ChainError) {
	r.mu.Lock()
	defer r.mu.Unlock()

	sendCtx, cancel := context.WithTimeout(ctx, r.cfg.SendTimeout)
	defer cancel()

	// Refuse to sign for the wrong network.
	cid, err := r.eth.ChainID(sendCtx)
	if err != nil {
		return common.Hash{}, classified(err)
	}
	if cid.Int64() != r.cfg.ChainID {
		return common.Hash{}, &domain.ChainError{
			Code:   domain.ChainIDMismatch,
			Detail: fmt.Sprintf("connected chain id %d, expected %d", cid.Int64(), r.cfg.ChainID),
		}
	}

	nonce, err := r.eth.PendingNonceAt(sendCtx, r.address)
	if err != nil {
		return common.Hash{}, classified(err)
	}

	if value == nil {
		value = new(big.Int)
	}

	tx, err := r.buildTx(sendCtx, cid, nonce, to, value, data, gasLimit)
	if err != nil {
		return common.Hash{}, classified(err)
	}

	signed, err := types.SignTx(tx, types.LatestSignerForChainID(cid), r.key)
	if err != nil {
		return common.Hash{}, classified(err)
	}

	if err := r.eth.SendTransaction(sendCtx, signed); err != nil {
		return common.Hash{}, classified(err)
	}
	return signed.Hash(), nil
}

// buildTx prefers EIP-1559 dynamic-fee pricing and falls back to a legacy
// gas-price transaction when the network does not expose a tip or base fee.
func (r *Registrar) buildTx(ctx context.Context, chainID *big.Int, nonce uint64, to *common.Address, value *big.Int, data []byte, gasLimit uint64) (*types.Transaction, error) {
	tip, tipErr := r.eth.SuggestGasTipCap(ctx)
	head, headErr := r.eth.HeaderByNumber(ctx, nil)

	if tipErr == nil && headErr == nil && head.BaseFee != nil {
		feeCap := new(big.Int).Add(
			tip,
			new(big.Int).Mul(head.BaseFee, big.NewInt(2)),
		)
		return types.NewTx(&types.DynamicFeeTx{
			ChainID:   chainID,
			Nonce:     nonce,
			GasTipCap: tip,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        to,
			Value:     value,
			Data:      data,
		}), nil
	}

	gasPrice, err := r.eth.SuggestGasPrice(ctx)
	if err != nil {
		return nil, err
	}
	return types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      gasLimit,
		To:       to,
		Value:    value,
		Data:     data,
	}), nil
}

// awaitReceipt polls for the transaction receipt until ConfirmTimeout. A
// receipt with a failed status is classified as an EVM revert.
func (r *Registrar) awaitReceipt(ctx context.Context, hash common.Hash) *domain.ChainError {
	waitCtx, cancel := context.WithTimeout(ctx, r.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()

	for {
		receipt, err := r.eth.TransactionReceipt(waitCtx, hash)
		if err == nil {
			if receipt.Status == types.ReceiptStatusFailed {
				return &domain.ChainError{
					Code:   domain.ChainRevert,
					Detail: fmt.Sprintf("tx %s reverted", hash.Hex()),
				}
			}
			return nil
		}
		if !errors.Is(err, ethereum.NotFound) {
			return classified(err)
		}

		select {
		case <-waitCtx.Done():
			return &domain.ChainError{
				Code:   domain.ChainNetworkTimeout,
				Detail: fmt.Sprintf("tx %s not confirmed within %s", hash.Hex(), r.cfg.ConfirmTimeout),
			}
		case <-ticker.C:
		}
	}
}

func disabledOutcome() domain.TxOutcome {
	return domain.TxOutcome{Err: &domain.ChainError{
		Code:   domain.ChainDisabled,
		Detail: "chain registrar not configured",
	}}
}
