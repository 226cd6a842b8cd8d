package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/alanyoungcy/sentitrader/internal/domain"
	"github.com/alanyoungcy/sentitrader/internal/service"
)

func ptr(f float64) *float64 { return &f }

func TestCheckRisk(t *testing.T) {
	m := service.NewLiquidationMonitor(0)

	tests := []struct {
		name  string
		info  domain.PositionInfo
		price float64
		risk  bool
	}{
		{"no liquidation price", domain.PositionInfo{Size: 1}, 100, false},
		{"unknown price", domain.PositionInfo{Size: 1, LiquidationPrice: ptr(90)}, 0, true},
		{"long far away", domain.PositionInfo{Size: 1, LiquidationPrice: ptr(50)}, 100, false},
		{"long within 5%", domain.PositionInfo{Size: 1, LiquidationPrice: ptr(96)}, 100, true},
		{"long exactly at threshold", domain.PositionInfo{Size: 1, LiquidationPrice: ptr(95)}, 100, false},
		{"short within 5%", domain.PositionInfo{Size: -1, LiquidationPrice: ptr(103)}, 100, true},
		{"short far away", domain.PositionInfo{Size: -1, LiquidationPrice: ptr(150)}, 100, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			risk, msg := m.CheckRisk(tt.info, tt.price)
			assert.Equal(t, tt.risk, risk)
			assert.NotEmpty(t, msg)
		})
	}
}

func TestCheckRisk_Message(t *testing.T) {
	_, msg := service.NewLiquidationMonitor(5).CheckRisk(domain.PositionInfo{Size: 0.001, LiquidationPrice: ptr(47000)}, 95000)
	assert.Equal(t, "Long position OK. Current: $95000.00, Liq: $47000.00 (50.5% away)", msg)
}
