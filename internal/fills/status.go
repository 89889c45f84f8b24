package fills

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/exbridge/exbridge/internal/schema"
)

// StatusTable maps one exchange's raw order states to canonical statuses.
// Built once per adapter at startup.
type StatusTable map[string]schema.OrderStatus

// StatusTranslator applies an adapter's status table plus the uniform
// partial-fill override: an order the exchange reports as canceled after a
// partial fill is executed from the caller's point of view, regardless of
// which adapter's table produced the raw mapping.
type StatusTranslator struct {
	table StatusTable
}

// NewStatusTranslator constructs a translator over the adapter's table.
func NewStatusTranslator(table StatusTable) StatusTranslator {
	normalized := make(StatusTable, len(table))
	for raw, status := range table {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		normalized[raw] = status
	}
	return StatusTranslator{table: normalized}
}

// Translate resolves a raw exchange state. Unmapped states yield
// OrderStatusError rather than a guess.
func (t StatusTranslator) Translate(rawState string, executedQuantity decimal.Decimal) schema.OrderStatus {
	status, ok := t.table[strings.TrimSpace(rawState)]
	if !ok {
		return schema.OrderStatusError
	}
	if status == schema.OrderStatusCanceled && executedQuantity.Sign() > 0 {
		return schema.OrderStatusExecuted
	}
	return status
}

// TranslateString is Translate with the executed quantity still in its raw
// decimal-string form. Unparseable quantities are treated as zero.
func (t StatusTranslator) TranslateString(rawState, executedQuantity string) schema.OrderStatus {
	qty, err := parseDecimal(executedQuantity)
	if err != nil {
		qty = decimal.Zero
	}
	return t.Translate(rawState, qty)
}
