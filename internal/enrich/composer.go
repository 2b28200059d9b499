package enrich

import (
	"fmt"
	"strings"

	"notifyrelay/internal/types"
)

// missingPlaceholder stands in for optional order fields the lookup did not
// return. Composition never fails on missing data.
const missingPlaceholder = "N/A"

// ComposedMessage is the human-readable rendering of an enriched order
// notification. It is what actually goes over the wire to the subscriber's
// destination.
type ComposedMessage struct {
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// Compose builds the subject and message for an order change. Pure
// transformation: deterministic given its inputs, no I/O.
//
// Amounts are rendered as the upstream decimal string followed by the
// currency code; nothing is recomputed locally.
func Compose(orderID string, order *types.Order, items []types.OrderItem) ComposedMessage {
	status := missingPlaceholder
	total := missingPlaceholder
	if order != nil {
		if order.OrderStatus != "" {
			status = order.OrderStatus
		}
		if order.OrderTotal.Amount != "" && order.OrderTotal.CurrencyCode != "" {
			total = order.OrderTotal.Amount + " " + order.OrderTotal.CurrencyCode
		}
	}

	skuList := missingPlaceholder
	if len(items) > 0 {
		skus := make([]string, 0, len(items))
		for _, it := range items {
			sku := it.SKU
			if sku == "" {
				sku = missingPlaceholder
			}
			skus = append(skus, sku)
		}
		skuList = strings.Join(skus, ",")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Order ID: %s\n", orderID)
	fmt.Fprintf(&b, "OrderStatus: %s\n", status)
	fmt.Fprintf(&b, "Order Total: %s\n", total)
	fmt.Fprintf(&b, "Items:\n%s", skuList)

	return ComposedMessage{
		Subject: fmt.Sprintf("Order change received for order %s", orderID),
		Message: b.String(),
	}
}
