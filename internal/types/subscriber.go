package types

// Subscriber is the per-subscription delivery configuration resolved from
// the credential store. Looked up by the subscriptionId embedded in
// notification metadata; consulted, never owned, by the relay.
type Subscriber struct {
	SubscriptionID string
	SellerID       string
	RefreshToken   SecretString
	MarketplaceID  string
	DeliveryTarget DeliveryTarget
	ContactEmail   string
}

// Order is the order header returned by the external order lookup.
type Order struct {
	AmazonOrderID string
	OrderStatus   string
	OrderTotal    Money
}

// Money is a currency amount as reported by the order lookup API. Amount is
// kept as the upstream decimal string; the relay formats, never computes.
type Money struct {
	Amount       string `json:"Amount"`
	CurrencyCode string `json:"CurrencyCode"`
}

// OrderItem is a single order line item.
type OrderItem struct {
	SKU      string
	Quantity int
}
