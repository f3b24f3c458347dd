package payments

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"
)

// Metadata keys attached to every checkout session so the webhook can route
// the completed payment back to its aggregate.
const (
	MetadataKindKey      = "kind"
	MetadataReferenceKey = "reference_id"

	KindAppointment = "appointment"
	KindPharmacy    = "pharmacy"
)

// LineItem is one purchasable row on a checkout session.
type LineItem struct {
	Name        string
	AmountCents int64
	Quantity    int64
}

// AmountToCents converts a decimal currency amount to integer cents.
func AmountToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// BuildSessionParams assembles the Stripe Checkout parameters for a one-off
// card payment routed back through the webhook by kind + reference id.
func BuildSessionParams(kind string, referenceID uuid.UUID, items []LineItem, successURL, cancelURL string) *stripe.CheckoutSessionParams {
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(items))
	for _, item := range items {
		quantity := item.Quantity
		if quantity <= 0 {
			quantity = 1
		}
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(quantity),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(string(stripe.CurrencyUSD)),
				UnitAmount: stripe.Int64(item.AmountCents),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(item.Name),
				},
			},
		})
	}

	return &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:  lineItems,
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
		Metadata: map[string]string{
			MetadataKindKey:      kind,
			MetadataReferenceKey: referenceID.String(),
		},
	}
}
