package schema

import (
	"strconv"
	"strings"
	"time"
)

// SettlementCurrency is the single currency multi-asset fees are converted
// into for uniform accounting.
const SettlementCurrency = "USDT"

var stablecoins = map[string]struct{}{
	"USDT": {},
	"BUSD": {},
	"TUSD": {},
	"USDC": {},
	"DAI":  {},
}

// IsStableCoin reports whether the asset is treated as settlement-equivalent
// at a 1:1 rate.
func IsStableCoin(asset string) bool {
	_, ok := stablecoins[NormalizeCurrencyCode(asset)]
	return ok
}

// NormalizeCurrencyCode trims and upper-cases an asset code.
func NormalizeCurrencyCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// IsBaseAsset reports whether asset is the base leg of the concatenated
// symbol, e.g. BTC in BTCUSDT. Exchange symbols carry no separator, so the
// check is a prefix comparison on the asset's own length.
func IsBaseAsset(asset, symbol string) bool {
	asset = NormalizeCurrencyCode(asset)
	symbol = NormalizeCurrencyCode(symbol)
	if asset == "" || len(asset) >= len(symbol) {
		return false
	}
	return strings.HasPrefix(symbol, asset)
}

// QuoteAsset returns the quote leg of symbol given its base leg, or "" when
// base is not the symbol's prefix.
func QuoteAsset(symbol, base string) string {
	symbol = NormalizeCurrencyCode(symbol)
	base = NormalizeCurrencyCode(base)
	if !strings.HasPrefix(symbol, base) || len(base) >= len(symbol) {
		return ""
	}
	return symbol[len(base):]
}

// ParseInterval converts a kline interval token (1m, 5m, 2h, 1d) into a
// duration. Unknown units yield zero.
func ParseInterval(interval string) time.Duration {
	interval = strings.TrimSpace(interval)
	if len(interval) < 2 {
		return 0
	}
	unit := interval[len(interval)-1]
	num, err := strconv.Atoi(interval[:len(interval)-1])
	if err != nil || num <= 0 {
		return 0
	}
	switch unit {
	case 'm':
		return time.Duration(num) * time.Minute
	case 'h':
		return time.Duration(num) * time.Hour
	case 'd':
		return time.Duration(num) * 24 * time.Hour
	default:
		return 0
	}
}

// TimeRange bounds one page of a historical kline query.
type TimeRange struct {
	StartTime time.Time
	EndTime   time.Time
}

// SplitTimeRanges slices [fromTime, toTime) into consecutive ranges sized so
// each holds at most limit candles of the given interval. Exchanges cap the
// number of klines per request; callers page through the returned ranges.
func SplitTimeRanges(interval string, fromTime, toTime time.Time, limit int) []TimeRange {
	step := ParseInterval(interval)
	if step <= 0 || limit <= 0 || !toTime.After(fromTime) {
		return nil
	}

	window := step * time.Duration(limit)
	ranges := make([]TimeRange, 0, int(toTime.Sub(fromTime)/window)+1)
	start := fromTime
	for start.Before(toTime) {
		end := start.Add(window)
		if end.After(toTime) {
			end = toTime
		}
		ranges = append(ranges, TimeRange{StartTime: start, EndTime: end})
		start = end
	}
	return ranges
}
