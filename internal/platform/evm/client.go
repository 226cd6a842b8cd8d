// Package evm is the chain RPC surface for spot trading: ERC-20 reads,
// AMM router quotes, legacy transaction submission and receipt polling,
// built on go-ethereum.
package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
	"golang.org/x/time/rate"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

// Backend is the subset of *ethclient.Client the client depends on.
type Backend interface {
	CallContract(ctx context.Context, msg ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

// TxSigner signs transactions for a single wallet.
type TxSigner interface {
	Address() common.Address
	SignTx(tx *types.Transaction, chainID *big.Int) (*types.Transaction, error)
}

// ClientConfig holds connection parameters for one network.
type ClientConfig struct {
	RPCURL         string
	ChainID        int64
	PublicRPC      bool // throttle calls to RatePerSec
	RatePerSec     float64
	ReceiptPoll    time.Duration
	ReceiptTimeout time.Duration
}

// TxRequest describes a legacy (gasPrice) transaction with zero value.
type TxRequest struct {
	To       common.Address
	Data     []byte
	Nonce    uint64
	GasLimit uint64
	GasPrice *big.Int
}

// Client talks to one EVM network on behalf of one wallet.
type Client struct {
	backend Backend
	signer  TxSigner
	chainID *big.Int
	limiter *rate.Limiter
	poll    time.Duration
	timeout time.Duration
	closeFn func()
	logger  *slog.Logger

	tokens *tokenCache
}

// Dial connects to cfg.RPCURL and verifies the remote chain id.
func Dial(ctx context.Context, cfg ClientConfig, signer TxSigner, logger *slog.Logger) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, cfg.RPCURL)
	if err != nil {
		return nil, domain.E(domain.KindTransient, "evm: dial", err)
	}
	remote, err := ec.ChainID(ctx)
	if err != nil {
		ec.Close()
		return nil, domain.E(domain.KindTransient, "evm: chain id", err)
	}
	if remote.Int64() != cfg.ChainID {
		ec.Close()
		return nil, domain.E(domain.KindInvariant, "evm: dial",
			fmt.Errorf("rpc %s serves chain %d, configured %d", cfg.RPCURL, remote.Int64(), cfg.ChainID))
	}

	c := NewClient(ec, cfg, signer, logger)
	c.closeFn = ec.Close
	return c, nil
}

// NewClient wraps an existing backend.
func NewClient(backend Backend, cfg ClientConfig, signer TxSigner, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	c := &Client{
		backend: backend,
		signer:  signer,
		chainID: big.NewInt(cfg.ChainID),
		poll:    cfg.ReceiptPoll,
		timeout: cfg.ReceiptTimeout,
		logger:  logger.With(slog.String("component", "evm"), slog.Int64("chain_id", cfg.ChainID)),
		tokens:  newTokenCache(),
	}
	if c.poll <= 0 {
		c.poll = 2 * time.Second
	}
	if c.timeout <= 0 {
		c.timeout = 2 * time.Minute
	}
	if cfg.PublicRPC && cfg.RatePerSec > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1)
	}
	return c
}

// Close releases the RPC connection.
func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

// Address returns the wallet the client signs for.
func (c *Client) Address() common.Address {
	return c.signer.Address()
}

// ChainID returns the configured chain id.
func (c *Client) ChainID() *big.Int {
	return new(big.Int).Set(c.chainID)
}

func (c *Client) wait(ctx context.Context) error {
	if c.limiter == nil {
		return nil
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return domain.E(domain.KindTransient, "evm: rate limit", err)
	}
	return nil
}

// CallContract executes a read-only call against the latest block.
func (c *Client) CallContract(ctx context.Context, to common.Address, data []byte) ([]byte, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, classify("evm: eth_call "+to.Hex(), err)
	}
	return out, nil
}

// PendingNonce returns the next nonce including pending transactions.
func (c *Client) PendingNonce(ctx context.Context, addr common.Address) (uint64, error) {
	if err := c.wait(ctx); err != nil {
		return 0, err
	}
	n, err := c.backend.PendingNonceAt(ctx, addr)
	if err != nil {
		return 0, classify("evm: pending nonce", err)
	}
	return n, nil
}

// GasPrice returns the node's suggested legacy gas price.
func (c *Client) GasPrice(ctx context.Context) (*big.Int, error) {
	if err := c.wait(ctx); err != nil {
		return nil, err
	}
	p, err := c.backend.SuggestGasPrice(ctx)
	if err != nil {
		return nil, classify("evm: gas price", err)
	}
	return p, nil
}

// SendTransaction signs req as a legacy transaction and broadcasts it.
func (c *Client) SendTransaction(ctx context.Context, req TxRequest) (common.Hash, error) {
	if req.GasPrice == nil {
		return common.Hash{}, domain.E(domain.KindInvariant, "evm: send", errors.New("gas price is required"))
	}
	to := req.To
	tx := types.NewTx(&types.LegacyTx{
		Nonce:    req.Nonce,
		To:       &to,
		Value:    new(big.Int),
		Gas:      req.GasLimit,
		GasPrice: req.GasPrice,
		Data:     req.Data,
	})
	signed, err := c.signer.SignTx(tx, c.chainID)
	if err != nil {
		return common.Hash{}, domain.E(domain.KindInvariant, "evm: sign", err)
	}
	if err := c.wait(ctx); err != nil {
		return common.Hash{}, err
	}
	if err := c.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, classify("evm: send", err)
	}
	c.logger.Debug("transaction sent",
		slog.String("hash", signed.Hash().Hex()),
		slog.Uint64("nonce", req.Nonce),
		slog.String("to", req.To.Hex()),
	)
	return signed.Hash(), nil
}

// WaitReceipt polls for the receipt of hash until it is mined or the
// configured timeout elapses. A mined receipt is returned regardless of its
// status; callers check Status.
func (c *Client) WaitReceipt(ctx context.Context, hash common.Hash) (*types.Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	ticker := time.NewTicker(c.poll)
	defer ticker.Stop()

	var lastErr error
	for {
		if err := c.wait(ctx); err != nil {
			return nil, err
		}
		receipt, err := c.backend.TransactionReceipt(ctx, hash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			lastErr = err
		}

		select {
		case <-ctx.Done():
			if lastErr != nil {
				return nil, domain.E(domain.KindTransient, "evm: wait receipt "+hash.Hex(),
					fmt.Errorf("%w (last error: %v)", ctx.Err(), lastErr))
			}
			return nil, domain.E(domain.KindTransient, "evm: wait receipt "+hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Checksum validates a hex address and returns it in EIP-55 form.
func Checksum(addr string) (common.Address, error) {
	if !common.IsHexAddress(addr) {
		return common.Address{}, domain.E(domain.KindMalformed, "evm: checksum", fmt.Errorf("invalid address %q", addr))
	}
	return common.HexToAddress(addr), nil
}

// classify maps an RPC error to an error kind. Reverts are on-chain
// failures; everything else is treated as transient.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	if strings.Contains(strings.ToLower(err.Error()), "execution reverted") {
		return domain.E(domain.KindOnChain, op, err)
	}
	return domain.E(domain.KindTransient, op, err)
}
