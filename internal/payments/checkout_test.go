package payments

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestAmountToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"150", 15000},
		{"19.99", 1999},
		{"0.5", 50},
		{"0", 0},
	}
	for _, tc := range cases {
		amount, err := decimal.NewFromString(tc.in)
		if err != nil {
			t.Fatalf("parse %s: %v", tc.in, err)
		}
		if got := AmountToCents(amount); got != tc.want {
			t.Fatalf("AmountToCents(%s) = %d, want %d", tc.in, got, tc.want)
		}
	}
}

func TestBuildSessionParams(t *testing.T) {
	ref := uuid.New()
	params := BuildSessionParams(
		KindAppointment,
		ref,
		[]LineItem{{Name: "Consultation with Dr. Castillo", AmountCents: 15000}},
		"https://app.example.com/success",
		"https://app.example.com/cancel",
	)

	if params.Metadata[MetadataKindKey] != KindAppointment {
		t.Fatalf("unexpected kind metadata %q", params.Metadata[MetadataKindKey])
	}
	if params.Metadata[MetadataReferenceKey] != ref.String() {
		t.Fatalf("unexpected reference metadata %q", params.Metadata[MetadataReferenceKey])
	}
	if len(params.LineItems) != 1 {
		t.Fatalf("expected 1 line item, got %d", len(params.LineItems))
	}
	item := params.LineItems[0]
	if *item.Quantity != 1 {
		t.Fatalf("expected default quantity 1, got %d", *item.Quantity)
	}
	if *item.PriceData.UnitAmount != 15000 {
		t.Fatalf("unexpected unit amount %d", *item.PriceData.UnitAmount)
	}
}
