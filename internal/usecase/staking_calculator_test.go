package usecase_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vitos/binary_mg_bot/internal/domain"
	"github.com/vitos/binary_mg_bot/internal/usecase"
)

func TestStakingCalculator_NextStake(t *testing.T) {
	calc := usecase.NewStakingCalculator()

	tests := []struct {
		name       string
		lost       float64
		desired    float64
		payout     float64
		correction bool
		want       float64
	}{
		{"first recovery level", 10, 8.5, 0.85, false, 21.76},
		{"with commission correction", 10, 8.5, 0.85, true, 23.53},
		{"second recovery level", 31.76, 8.5, 0.85, false, 47.36},
		{"full payout", 10, 10, 1, false, 20},
		{"nothing lost", 0, 8, 0.8, false, 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.NextStake(tt.lost, tt.desired, tt.payout, tt.correction)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestStakingCalculator_NextStakeIsMonotonic(t *testing.T) {
	calc := usecase.NewStakingCalculator()
	losses := []float64{0, 5, 10, 21.76, 50, 100}
	// falling payout fraction means rising 1/payout
	payouts := []float64{1, 0.92, 0.85, 0.7, 0.5, 0.3}
	const desired = 8.5

	stake := func(t *testing.T, lost, payout float64, correction bool) float64 {
		t.Helper()
		s, err := calc.NextStake(lost, desired, payout, correction)
		require.NoError(t, err)
		return s
	}

	for _, correction := range []bool{false, true} {
		for _, p := range payouts {
			for i := 1; i < len(losses); i++ {
				lo, hi := stake(t, losses[i-1], p, correction), stake(t, losses[i], p, correction)
				assert.Less(t, lo, hi, "loss %.2f -> %.2f at payout %.2f correction %v",
					losses[i-1], losses[i], p, correction)
			}
		}
		for _, l := range losses {
			for i := 1; i < len(payouts); i++ {
				lo, hi := stake(t, l, payouts[i-1], correction), stake(t, l, payouts[i], correction)
				assert.Less(t, lo, hi, "payout %.2f -> %.2f at loss %.2f correction %v",
					payouts[i-1], payouts[i], l, correction)
			}
		}
	}
}

func TestStakingCalculator_RejectsInvalidPayout(t *testing.T) {
	calc := usecase.NewStakingCalculator()

	for _, p := range []float64{0, -0.5, 1.2} {
		_, err := calc.NextStake(10, 8, p, false)
		assert.ErrorIs(t, err, domain.ErrInvalidPayout, "payout %v", p)
	}

	_, err := calc.NextStake(-1, 8, 0.8, false)
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)

	cfg := domain.DefaultConfig()
	_, err = calc.StakeForLevel(0, cfg, 0.8, 0, 0)
	assert.ErrorIs(t, err, domain.ErrInvalidPayout)
}

func TestStakingCalculator_LevelZeroUsesBaseStake(t *testing.T) {
	calc := usecase.NewStakingCalculator()
	cfg := domain.DefaultConfig()
	cfg.BaseStake = 12.345

	got, err := calc.StakeForLevel(0, cfg, 0.85, 0.85, 0)
	require.NoError(t, err)
	assert.Equal(t, 12.35, got)

	cfg.BaseStake = 10
	got, err = calc.StakeForLevel(1, cfg, 0.85, 0.85, 10)
	require.NoError(t, err)
	assert.Equal(t, 21.76, got)
}

func TestStakingCalculator_DesiredProfitFollowsFirstPayout(t *testing.T) {
	calc := usecase.NewStakingCalculator()
	cfg := domain.DefaultConfig()
	cfg.BaseStake = 10

	// payout dropped from 85% to 80% between levels
	got, err := calc.StakeForLevel(1, cfg, 0.85, 0.80, 10)
	require.NoError(t, err)
	assert.Equal(t, 23.13, got)
}

func TestStakingCalculator_Plan(t *testing.T) {
	calc := usecase.NewStakingCalculator()

	plan, err := calc.Plan(10, 0.85, 3, false)
	require.NoError(t, err)
	require.Len(t, plan, 3)

	assert.Equal(t, 10.0, plan[0].Stake)
	assert.Equal(t, 8.5, plan[0].ProfitIfWin)
	assert.Equal(t, 21.76, plan[1].Stake)
	assert.Equal(t, 10.0, plan[1].AccumulatedLoss)
	assert.Equal(t, 8.5, plan[1].ProfitIfWin)
	assert.Equal(t, 47.36, plan[2].Stake)
	assert.Equal(t, 31.76, plan[2].AccumulatedLoss)
	assert.Equal(t, 79.12, usecase.Exposure(plan))

	for i := 1; i < len(plan); i++ {
		assert.Greater(t, plan[i].Stake, plan[i-1].Stake)
	}

	_, err = calc.Plan(10, 0, 3, false)
	assert.ErrorIs(t, err, domain.ErrInvalidPayout)
}
