package evm

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

const erc20ABIJSON = `[
  {"constant":true,"inputs":[{"name":"owner","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[{"name":"owner","type":"address"},{"name":"spender","type":"address"}],"name":"allowance","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"},
  {"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"amount","type":"uint256"}],"name":"approve","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},
  {"constant":true,"inputs":[],"name":"decimals","outputs":[{"name":"","type":"uint8"}],"stateMutability":"view","type":"function"},
  {"constant":true,"inputs":[],"name":"symbol","outputs":[{"name":"","type":"string"}],"stateMutability":"view","type":"function"}
]`

var erc20ABI = mustABI(erc20ABIJSON)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(fmt.Sprintf("evm: parse abi: %v", err))
	}
	return parsed
}

// TokenBalance is a balance in both integer and human units.
type TokenBalance struct {
	Token    common.Address
	Symbol   string
	Decimals int
	Raw      *big.Int
	Human    float64
}

type tokenMeta struct {
	decimals int
	symbol   string
}

type tokenCache struct {
	mu   sync.Mutex
	meta map[common.Address]tokenMeta
}

func newTokenCache() *tokenCache {
	return &tokenCache{meta: make(map[common.Address]tokenMeta)}
}

// callABI packs method, calls token and unpacks the outputs.
func (c *Client) callABI(ctx context.Context, parsed abi.ABI, to common.Address, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, domain.E(domain.KindInvariant, "evm: pack "+method, err)
	}
	out, err := c.CallContract(ctx, to, data)
	if err != nil {
		return nil, err
	}
	vals, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, domain.E(domain.KindMalformed, "evm: unpack "+method, err)
	}
	if len(vals) == 0 {
		return nil, domain.E(domain.KindMalformed, "evm: unpack "+method, fmt.Errorf("empty result from %s", to.Hex()))
	}
	return vals, nil
}

func (c *Client) callBig(ctx context.Context, to common.Address, method string, args ...any) (*big.Int, error) {
	vals, err := c.callABI(ctx, erc20ABI, to, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := vals[0].(*big.Int)
	if !ok {
		return nil, domain.E(domain.KindMalformed, "evm: "+method, fmt.Errorf("unexpected type %T", vals[0]))
	}
	return n, nil
}

// Decimals returns the token's decimals, cached per token.
func (c *Client) Decimals(ctx context.Context, token common.Address) (int, error) {
	m, err := c.meta(ctx, token)
	return m.decimals, err
}

// Symbol returns the token's symbol, cached per token.
func (c *Client) Symbol(ctx context.Context, token common.Address) (string, error) {
	m, err := c.meta(ctx, token)
	return m.symbol, err
}

func (c *Client) meta(ctx context.Context, token common.Address) (tokenMeta, error) {
	c.tokens.mu.Lock()
	m, ok := c.tokens.meta[token]
	c.tokens.mu.Unlock()
	if ok {
		return m, nil
	}

	vals, err := c.callABI(ctx, erc20ABI, token, "decimals")
	if err != nil {
		return tokenMeta{}, err
	}
	dec, ok := vals[0].(uint8)
	if !ok {
		return tokenMeta{}, domain.E(domain.KindMalformed, "evm: decimals", fmt.Errorf("unexpected type %T", vals[0]))
	}
	vals, err = c.callABI(ctx, erc20ABI, token, "symbol")
	if err != nil {
		return tokenMeta{}, err
	}
	sym, _ := vals[0].(string)

	m = tokenMeta{decimals: int(dec), symbol: sym}
	c.tokens.mu.Lock()
	c.tokens.meta[token] = m
	c.tokens.mu.Unlock()
	return m, nil
}

// TokenBalance reads owner's balance of token.
func (c *Client) TokenBalance(ctx context.Context, token, owner common.Address) (TokenBalance, error) {
	m, err := c.meta(ctx, token)
	if err != nil {
		return TokenBalance{}, err
	}
	raw, err := c.callBig(ctx, token, "balanceOf", owner)
	if err != nil {
		return TokenBalance{}, err
	}
	return TokenBalance{
		Token:    token,
		Symbol:   m.symbol,
		Decimals: m.decimals,
		Raw:      raw,
		Human:    domain.FromRaw(raw, m.decimals),
	}, nil
}

// Allowance reads token.allowance(owner, spender).
func (c *Client) Allowance(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	return c.callBig(ctx, token, "allowance", owner, spender)
}

// PackApprove encodes approve(spender, amount).
func PackApprove(spender common.Address, amount *big.Int) ([]byte, error) {
	data, err := erc20ABI.Pack("approve", spender, amount)
	if err != nil {
		return nil, domain.E(domain.KindInvariant, "evm: pack approve", err)
	}
	return data, nil
}
