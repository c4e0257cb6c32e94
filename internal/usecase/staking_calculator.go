package usecase

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/vitos/binary_mg_bot/internal/domain"
)

// StakePlanLevel is one row of a precomputed stake plan.
type StakePlanLevel struct {
	Index           int     `json:"index"`
	Stake           float64 `json:"stake"`
	AccumulatedLoss float64 `json:"accumulated_loss"`
	ProfitIfWin     float64 `json:"profit_if_win"`
}

type StakingCalculator struct{}

func NewStakingCalculator() *StakingCalculator {
	return &StakingCalculator{}
}

// NextStake returns the recovery stake for a level after the first:
// (accumulatedLoss + desiredProfit) / payout, rounded to cents.
// With correction enabled desiredProfit is scaled by 1/payout first.
func (c *StakingCalculator) NextStake(accumulatedLoss, desiredProfit, payout float64, correction bool) (float64, error) {
	if payout <= 0 || payout > 1 {
		return 0, fmt.Errorf("%w: payout fraction %.4f", domain.ErrInvalidPayout, payout)
	}
	if accumulatedLoss < 0 || desiredProfit < 0 {
		return 0, fmt.Errorf("%w: negative loss or profit target", domain.ErrInvalidConfig)
	}

	p := decimal.NewFromFloat(payout)
	target := decimal.NewFromFloat(desiredProfit)
	if correction {
		target = target.Div(p)
	}
	stake := decimal.NewFromFloat(accumulatedLoss).Add(target).Div(p).Round(2)
	f, _ := stake.Float64()
	return f, nil
}

// DesiredProfit is what a level-0 win would have paid.
func (c *StakingCalculator) DesiredProfit(baseStake, payout float64) float64 {
	f, _ := decimal.NewFromFloat(baseStake).Mul(decimal.NewFromFloat(payout)).Round(2).Float64()
	return f
}

// StakeForLevel returns the stake of level index given the loss of the previous levels.
// Level 0 always stakes the configured base.
func (c *StakingCalculator) StakeForLevel(index int, cfg domain.Config, firstPayout, payout, accumulatedLoss float64) (float64, error) {
	if index == 0 {
		if payout <= 0 || payout > 1 {
			return 0, fmt.Errorf("%w: payout fraction %.4f", domain.ErrInvalidPayout, payout)
		}
		return domain.RoundMoney(cfg.BaseStake), nil
	}
	return c.NextStake(accumulatedLoss, c.DesiredProfit(cfg.BaseStake, firstPayout), payout, cfg.MGCorrection)
}

// Plan computes every level assuming a constant payout and a loss at each level.
func (c *StakingCalculator) Plan(baseStake, payout float64, levels int, correction bool) ([]StakePlanLevel, error) {
	if payout <= 0 || payout > 1 {
		return nil, fmt.Errorf("%w: payout fraction %.4f", domain.ErrInvalidPayout, payout)
	}
	desired := c.DesiredProfit(baseStake, payout)
	plan := make([]StakePlanLevel, 0, levels)
	var lost float64
	for i := 0; i < levels; i++ {
		stake := domain.RoundMoney(baseStake)
		if i > 0 {
			var err error
			stake, err = c.NextStake(lost, desired, payout, correction)
			if err != nil {
				return nil, err
			}
		}
		win, _ := decimal.NewFromFloat(stake).Mul(decimal.NewFromFloat(payout)).Sub(decimal.NewFromFloat(lost)).Round(2).Float64()
		plan = append(plan, StakePlanLevel{
			Index:           i,
			Stake:           stake,
			AccumulatedLoss: lost,
			ProfitIfWin:     win,
		})
		lost = domain.AddMoney(lost, stake)
	}
	return plan, nil
}

// Exposure is the total amount at risk if every level of the plan loses.
func Exposure(plan []StakePlanLevel) float64 {
	var total float64
	for _, l := range plan {
		total = domain.AddMoney(total, l.Stake)
	}
	return total
}
