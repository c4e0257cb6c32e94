package usecase

import (
	"context"
	"fmt"
	"sort"

	"github.com/vitos/binary_mg_bot/internal/domain"
)

// AssetFilter narrows the broker's asset list.
type AssetFilter struct {
	AssetType  domain.AssetType
	MarketType domain.MarketType
	MinPayout  float64
}

// FilterFromConfig builds the asset filter for a source kind.
func FilterFromConfig(cfg domain.Config, kind domain.SourceKind) AssetFilter {
	return AssetFilter{
		AssetType:  cfg.AssetType,
		MarketType: cfg.MarketType,
		MinPayout:  cfg.PayoutFloor(kind),
	}
}

type AssetSelector struct {
	broker domain.BrokerGateway
}

func NewAssetSelector(broker domain.BrokerGateway) *AssetSelector {
	return &AssetSelector{broker: broker}
}

// List returns open assets that pass the filter, best payout first.
func (s *AssetSelector) List(ctx context.Context, f AssetFilter) ([]domain.Asset, error) {
	assets, err := s.broker.ListAssets(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list assets: %w", err)
	}
	return FilterAssets(assets, f), nil
}

// Best returns the open asset with the highest payout that passes the filter.
func (s *AssetSelector) Best(ctx context.Context, f AssetFilter) (*domain.Asset, error) {
	assets, err := s.List(ctx, f)
	if err != nil {
		return nil, err
	}
	if len(assets) == 0 {
		return nil, fmt.Errorf("no open asset with payout >= %.0f%%", f.MinPayout)
	}
	return &assets[0], nil
}

// FilterAssets applies f and sorts by payout descending.
func FilterAssets(assets []domain.Asset, f AssetFilter) []domain.Asset {
	out := make([]domain.Asset, 0, len(assets))
	for _, a := range assets {
		if !a.Open || a.Payout < f.MinPayout {
			continue
		}
		name := a.Name
		if a.DisplayName != "" {
			name = a.DisplayName
		}
		if !domain.MatchesFilters(name, f.AssetType, f.MarketType) {
			continue
		}
		if a.Name == "" {
			a.Name = domain.NormalizeAssetName(a.DisplayName)
		}
		if a.Market == "" {
			a.Market = domain.ClassifyMarket(name)
		}
		out = append(out, a)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Payout > out[j].Payout })
	return out
}
