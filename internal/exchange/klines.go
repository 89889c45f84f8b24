package exchange

import (
	"context"
	"time"

	"github.com/exbridge/exbridge/errs"
	"github.com/exbridge/exbridge/internal/schema"
)

// DefaultKlineLimit is the page size used when a query does not specify
// one. Venues commonly cap a single request at 500 candles.
const DefaultKlineLimit = 500

// FetchPage retrieves the candles inside one time range.
type FetchPage func(ctx context.Context, query KlineQuery, page schema.TimeRange) ([]schema.Kline, error)

// PageKlines splits a historical query into venue-sized pages and fetches
// them sequentially, concatenating in time order. Queries without an
// explicit range pass through as a single unbounded fetch.
func PageKlines(ctx context.Context, exchange string, query KlineQuery, fetch FetchPage) ([]schema.Kline, error) {
	if fetch == nil {
		return nil, errs.New(exchange, errs.KindBadRequest, errs.WithMessage("kline fetcher required"))
	}
	if schema.ParseInterval(query.Interval) <= 0 {
		return nil, errs.New(exchange, errs.KindBadRequest,
			errs.WithMessage("unrecognized kline interval "+query.Interval))
	}
	limit := query.Limit
	if limit <= 0 {
		limit = DefaultKlineLimit
	}

	if query.From <= 0 || query.To <= 0 {
		return fetch(ctx, query, schema.TimeRange{})
	}

	from := time.UnixMilli(query.From)
	to := time.UnixMilli(query.To)
	ranges := schema.SplitTimeRanges(query.Interval, from, to, limit)
	if len(ranges) == 0 {
		return nil, errs.New(exchange, errs.KindBadRequest,
			errs.WithMessage("kline query has an empty time range"))
	}

	var out []schema.Kline
	for _, page := range ranges {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		candles, err := fetch(ctx, query, page)
		if err != nil {
			return nil, err
		}
		out = append(out, candles...)
	}
	return out, nil
}
