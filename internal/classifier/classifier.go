// Package classifier turns a free-form message about construction spending
// into a typed list of items. The ledger never inspects message text itself;
// everything it learns about a message comes through this boundary.
package classifier

import (
	"context"

	"github.com/shopspring/decimal"
)

// Item kinds. The literals match the JSON contract with the model.
const (
	KindExpense       = "expense"        // direct spending on materials / work
	KindForemanGive   = "foreman_give"   // cash handed to the foreman
	KindForemanReport = "foreman_report" // foreman settling part of the advance
	KindUnknown       = "unknown"
)

// Item is one classified position from an inbound message. Amount is zero
// when the model could not extract one; amounts are never negative.
type Item struct {
	Kind        string
	Category    string
	Amount      decimal.Decimal
	Description string
}

// Unrecognized is the single synthetic item substituted when classification
// fails, so the rest of the pipeline behaves uniformly.
func Unrecognized() []Item {
	return []Item{{Kind: KindUnknown}}
}

// Classifier extracts structured spending items from text and an optional
// receipt photo. Known category names are a hint only: returned categories
// are free text and matching them is the ledger's job.
type Classifier interface {
	Classify(ctx context.Context, text string, image []byte, knownCategories []string) ([]Item, error)
}
