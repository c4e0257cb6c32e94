package signals

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/vitos/binary_mg_bot/internal/domain"
)

var ErrNotASignal = errors.New("message is not a trade signal")

var (
	reAsset     = regexp.MustCompile(`(?i)\b(?:([A-Z]{3,5})/([A-Z]{3})|([A-Z]{6}))(_OTC\b|-OTC\b|\s*\(OTC\)|\b)`)
	reTime      = regexp.MustCompile(`\b([01]?\d|2[0-3]):([0-5]\d)\b`)
	reTimeframe = regexp.MustCompile(`(?i)\bM(1|5|15|30)\b`)
	reMinutes   = regexp.MustCompile(`(?i)\b(\d{1,2})\s*(?:min|mins|minutes|minutos|m)\b`)
	reSeconds   = regexp.MustCompile(`(?i)\b(\d{1,4})\s*(?:s|sec|seg|seconds|segundos)\b`)
	reBareNum   = regexp.MustCompile(`^\d{1,4}$`)
	rePayout    = regexp.MustCompile(`\b(\d{2,3})\s*%`)
)

var directionWords = map[string]domain.Direction{
	"CALL": domain.DirectionCall, "BUY": domain.DirectionCall, "UP": domain.DirectionCall,
	"COMPRA": domain.DirectionCall, "ACIMA": domain.DirectionCall,
	"PUT": domain.DirectionPut, "SELL": domain.DirectionPut, "DOWN": domain.DirectionPut,
	"VENDA": domain.DirectionPut, "ABAIXO": domain.DirectionPut,
}

// assetCodes are the prefixes accepted for slash-less six letter assets.
var assetCodes = map[string]struct{}{
	"USD": {}, "EUR": {}, "GBP": {}, "JPY": {}, "AUD": {}, "CAD": {}, "CHF": {}, "NZD": {},
	"BRL": {}, "MXN": {}, "INR": {}, "IDR": {}, "TRY": {}, "ZAR": {}, "SGD": {}, "HKD": {},
	"NOK": {}, "SEK": {}, "DKK": {}, "PLN": {}, "CNY": {}, "CNH": {}, "RUB": {}, "ARS": {},
	"COP": {}, "EGP": {}, "PKR": {}, "BDT": {}, "PHP": {}, "THB": {}, "DZD": {}, "NGN": {},
	"UAH": {}, "XAU": {}, "XAG": {}, "BTC": {}, "ETH": {}, "LTC": {}, "XRP": {}, "BCH": {},
	"BNB": {}, "ADA": {}, "SOL": {}, "DOT": {}, "TRX": {}, "ETC": {}, "EOS": {}, "XLM": {},
}

var directionSymbols = []struct {
	sym string
	dir domain.Direction
}{
	{"⬆", domain.DirectionCall}, {"🟢", domain.DirectionCall}, {"📈", domain.DirectionCall},
	{"⬇", domain.DirectionPut}, {"🔴", domain.DirectionPut}, {"📉", domain.DirectionPut},
}

// Parsed is a signal extracted from free text, with the payout it advertised.
type Parsed struct {
	Signal domain.Signal
	Payout float64
}

// Parser turns free-text messages into signals.
type Parser struct {
	Clock           domain.Clock
	Offset          time.Duration
	DefaultDuration int
	Source          domain.SourceKind
}

// Parse extracts asset, direction, expiry, entry time and payout from text.
// Times are read as HH:MM today and shifted by Offset.
func (p *Parser) Parse(text string) (*Parsed, error) {
	text = strings.TrimSpace(text)
	if len(text) < 5 {
		return nil, ErrNotASignal
	}

	dir, ok := findDirection(text)
	if !ok {
		return nil, fmt.Errorf("%w: no direction", ErrNotASignal)
	}

	asset, matched := findAsset(text)
	if asset == "" {
		return nil, fmt.Errorf("%w: no asset", ErrNotASignal)
	}

	sig := domain.Signal{
		Asset:     asset,
		Direction: dir,
		Duration:  p.duration(text, matched),
		Source:    p.Source,
	}
	now := time.Now()
	if p.Clock != nil {
		now = p.Clock.Now()
	}
	sig.ReceivedAt = now

	if tm := reTime.FindStringSubmatch(text); tm != nil {
		h, _ := strconv.Atoi(tm[1])
		mi, _ := strconv.Atoi(tm[2])
		at := time.Date(now.Year(), now.Month(), now.Day(), h, mi, 0, 0, now.Location())
		sig.ScheduledAt = at.Add(p.Offset)
	}

	out := &Parsed{Signal: sig}
	if pm := rePayout.FindStringSubmatch(text); pm != nil {
		out.Payout, _ = strconv.ParseFloat(pm[1], 64)
	}
	return out, nil
}

func (p *Parser) duration(text, assetMatch string) int {
	rest := strings.Replace(text, assetMatch, " ", 1)
	rest = reTime.ReplaceAllString(rest, " ")
	rest = rePayout.ReplaceAllString(rest, " ")

	if m := reTimeframe.FindStringSubmatch(rest); m != nil {
		n, _ := strconv.Atoi(m[1])
		return domain.NearestDuration(n * 60)
	}
	if m := reSeconds.FindStringSubmatch(rest); m != nil {
		n, _ := strconv.Atoi(m[1])
		return domain.NearestDuration(n)
	}
	if m := reMinutes.FindStringSubmatch(rest); m != nil {
		n, _ := strconv.Atoi(m[1])
		return domain.NearestDuration(n * 60)
	}
	for _, f := range strings.Fields(rest) {
		if reBareNum.MatchString(f) {
			n, _ := strconv.Atoi(f)
			return domain.NearestDuration(n)
		}
	}
	return p.DefaultDuration
}

func findAsset(text string) (asset, matched string) {
	for _, m := range reAsset.FindAllStringSubmatch(text, -1) {
		name := strings.ToUpper(m[1] + m[2])
		if m[3] != "" {
			name = strings.ToUpper(m[3])
			if _, known := assetCodes[name[:3]]; !known {
				continue
			}
		}
		if strings.TrimSpace(m[4]) != "" {
			name += "_otc"
		}
		return name, m[0]
	}
	return "", ""
}

func findDirection(text string) (domain.Direction, bool) {
	for _, f := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '\n' || r == ',' || r == '|' || r == ';'
	}) {
		w := strings.ToUpper(strings.Trim(f, ".:!*()[]-"))
		if d, ok := directionWords[w]; ok {
			return d, true
		}
	}
	for _, ds := range directionSymbols {
		if strings.Contains(text, ds.sym) {
			return ds.dir, true
		}
	}
	return "", false
}
