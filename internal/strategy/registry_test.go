package strategy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/strategy"
)

func TestDefaultRegistry(t *testing.T) {
	r := strategy.DefaultRegistry()

	assert.Equal(t, []string{
		strategy.BTCSpotAgent,
		strategy.BTCPerpAgent,
		strategy.ETHSpotAgent,
		strategy.ETHPerpAgent,
	}, r.List())

	a, err := r.Get(strategy.ETHPerpAgent)
	require.NoError(t, err)
	info := a.Info()
	assert.Equal(t, domain.VenuePerp, info.Venue)
	assert.Equal(t, "ETH", info.BaseToken)
	assert.Equal(t, "trading signal direction", info.Signal)

	infos := r.ListInfo()
	require.Len(t, infos, 4)
	assert.Equal(t, "cbBTC", infos[0].BaseToken)
}

func TestRegistry_UnknownAgent(t *testing.T) {
	_, err := strategy.DefaultRegistry().Get("SentiChain DOGE Agent")
	assert.ErrorIs(t, err, domain.ErrUnknownAgent)
	assert.Equal(t, domain.KindInvariant, domain.KindOf(err))
}
