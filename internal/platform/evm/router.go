package evm

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/sentitrader/internal/domain"
)

const routerABIJSON = `[
  {"inputs":[
     {"internalType":"uint256","name":"amountIn","type":"uint256"},
     {"components":[
        {"internalType":"address","name":"from","type":"address"},
        {"internalType":"address","name":"to","type":"address"},
        {"internalType":"bool","name":"stable","type":"bool"},
        {"internalType":"address","name":"factory","type":"address"}],
      "internalType":"struct IRouter.Route[]","name":"routes","type":"tuple[]"}],
   "name":"getAmountsOut",
   "outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],
   "stateMutability":"view","type":"function"},
  {"inputs":[
     {"internalType":"uint256","name":"amountIn","type":"uint256"},
     {"internalType":"uint256","name":"amountOutMin","type":"uint256"},
     {"components":[
        {"internalType":"address","name":"from","type":"address"},
        {"internalType":"address","name":"to","type":"address"},
        {"internalType":"bool","name":"stable","type":"bool"},
        {"internalType":"address","name":"factory","type":"address"}],
      "internalType":"struct IRouter.Route[]","name":"routes","type":"tuple[]"},
     {"internalType":"address","name":"to","type":"address"},
     {"internalType":"uint256","name":"deadline","type":"uint256"}],
   "name":"swapExactTokensForTokens",
   "outputs":[{"internalType":"uint256[]","name":"amounts","type":"uint256[]"}],
   "stateMutability":"nonpayable","type":"function"}
]`

var routerABI = mustABI(routerABIJSON)

// Route is one hop of an AMM swap path. Field names follow the router's
// tuple components so the ABI encoder can map them.
type Route struct {
	From    common.Address
	To      common.Address
	Stable  bool
	Factory common.Address
}

// GetAmountsOut quotes amountIn along routes. The last element is the
// expected output.
func (c *Client) GetAmountsOut(ctx context.Context, router common.Address, amountIn *big.Int, routes []Route) ([]*big.Int, error) {
	vals, err := c.callABI(ctx, routerABI, router, "getAmountsOut", amountIn, routes)
	if err != nil {
		return nil, err
	}
	amounts, ok := vals[0].([]*big.Int)
	if !ok {
		return nil, domain.E(domain.KindMalformed, "evm: getAmountsOut", fmt.Errorf("unexpected type %T", vals[0]))
	}
	return amounts, nil
}

// PackSwapExactTokensForTokens encodes the router swap call.
func PackSwapExactTokensForTokens(amountIn, amountOutMin *big.Int, routes []Route, to common.Address, deadline *big.Int) ([]byte, error) {
	data, err := routerABI.Pack("swapExactTokensForTokens", amountIn, amountOutMin, routes, to, deadline)
	if err != nil {
		return nil, domain.E(domain.KindInvariant, "evm: pack swap", err)
	}
	return data, nil
}
