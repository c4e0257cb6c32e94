package domain

import (
	"strings"
	"unicode"
)

type AssetType string

const (
	AssetTypeOTC    AssetType = "OTC"
	AssetTypeNonOTC AssetType = "NON_OTC"
	AssetTypeBoth   AssetType = "BOTH"
)

type MarketType string

const (
	MarketForex     MarketType = "FOREX"
	MarketCrypto    MarketType = "CRYPTO"
	MarketCommodity MarketType = "COMMODITY"
	MarketStock     MarketType = "STOCK"
	MarketBoth      MarketType = "BOTH"
)

// Asset represents a tradeable instrument as listed by the broker.
type Asset struct {
	Name        string     `json:"name"`
	DisplayName string     `json:"display_name"`
	IsOTC       bool       `json:"is_otc"`
	Market      MarketType `json:"market"`
	Payout      float64    `json:"payout"`
	Open        bool       `json:"open"`
}

var cryptoSymbols = map[string]struct{}{
	"BTC": {}, "ETH": {}, "LTC": {}, "XRP": {}, "BCH": {}, "EOS": {}, "DOGE": {}, "DASH": {},
	"XMR": {}, "NEO": {}, "IOTA": {}, "TRX": {}, "ADA": {}, "XLM": {}, "BNB": {}, "ETC": {},
	"SOL": {}, "DOT": {}, "MATIC": {}, "LINK": {}, "AVAX": {}, "UNI": {}, "ALGO": {}, "ATOM": {},
	"FIL": {}, "VET": {}, "THETA": {}, "SHIB": {}, "TON": {}, "APT": {}, "ARB": {}, "OP": {},
	"NEAR": {}, "FTM": {}, "MANA": {}, "SAND": {}, "AXS": {}, "CRO": {}, "EGLD": {},
}

var commodityKeywords = []string{
	"GOLD", "SILVER", "OIL", "BRENT", "WTI", "GAS", "CRUDE",
	"COFFEE", "SUGAR", "COCOA", "COPPER", "PLATINUM", "PALLADIUM",
	"WHEAT", "CORN", "COTTON", "ZINC", "NICKEL", "ALUMINIUM",
	"LUMBER", "SOYBEAN", "NATURAL",
}

// NormalizeAssetName converts a display name into the broker's internal name.
// "EUR/USD (OTC)" becomes "EURUSD_otc".
func NormalizeAssetName(display string) string {
	otc := strings.Contains(display, "(OTC)")
	name := strings.ReplaceAll(display, "(OTC)", "")
	name = strings.ReplaceAll(name, "/", "")
	name = strings.ReplaceAll(name, " ", "")
	if otc {
		name += "_otc"
	}
	return name
}

// IsOTCName reports whether an internal or display asset name is an OTC instrument.
func IsOTCName(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), "_otc") || strings.Contains(name, "(OTC)")
}

// ClassifyMarket guesses the market of an asset from its name.
func ClassifyMarket(name string) MarketType {
	clean := strings.ReplaceAll(name, "(OTC)", "")
	clean = strings.ReplaceAll(clean, "(Digital)", "")
	if i := strings.Index(strings.ToLower(clean), "_otc"); i >= 0 {
		clean = clean[:i]
	}
	clean = strings.TrimSpace(clean)
	upper := strings.ToUpper(clean)

	for _, part := range strings.Fields(strings.ReplaceAll(upper, "/", " ")) {
		if _, ok := cryptoSymbols[part]; ok {
			return MarketCrypto
		}
	}
	if !strings.Contains(upper, "/") && isAlpha(upper) {
		for sym := range cryptoSymbols {
			if len(sym) >= 3 && strings.HasPrefix(upper, sym) && len(upper)-len(sym) == 3 {
				return MarketCrypto
			}
		}
	}

	for _, kw := range commodityKeywords {
		if strings.Contains(upper, kw) {
			return MarketCommodity
		}
	}

	if sides := strings.Split(upper, "/"); len(sides) == 2 {
		a, b := strings.TrimSpace(sides[0]), strings.TrimSpace(sides[1])
		if len(a) == 3 && len(b) == 3 && isAlpha(a) && isAlpha(b) {
			return MarketForex
		}
	}
	if len(upper) == 6 && isAlpha(upper) {
		return MarketForex
	}
	return MarketStock
}

// MatchesFilters applies the asset-type and market-type filters.
func MatchesFilters(name string, at AssetType, mt MarketType) bool {
	otc := IsOTCName(name)
	switch at {
	case AssetTypeOTC:
		if !otc {
			return false
		}
	case AssetTypeNonOTC:
		if otc {
			return false
		}
	}
	if mt != "" && mt != MarketBoth && ClassifyMarket(name) != mt {
		return false
	}
	return true
}

func isAlpha(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}
