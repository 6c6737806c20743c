package classifier

import (
	"encoding/json"
	"strings"

	"github.com/shopspring/decimal"
)

type rawItem struct {
	Type        string      `json:"type"`
	Category    string      `json:"category"`
	Amount      json.Number `json:"amount"`
	Description string      `json:"description"`
}

// parseItems decodes the model output into items. Either a single JSON
// object or an array is accepted; anything undecodable degrades to one
// unrecognized item — classification output never aborts the pipeline.
func parseItems(raw string) []Item {
	cleaned := stripFences(raw)
	if cleaned == "" {
		return Unrecognized()
	}

	var rawItems []rawItem
	if strings.HasPrefix(cleaned, "[") {
		if err := json.Unmarshal([]byte(cleaned), &rawItems); err != nil {
			return Unrecognized()
		}
	} else {
		var single rawItem
		if err := json.Unmarshal([]byte(cleaned), &single); err != nil {
			return Unrecognized()
		}
		rawItems = []rawItem{single}
	}

	if len(rawItems) == 0 {
		return Unrecognized()
	}

	items := make([]Item, 0, len(rawItems))
	for _, r := range rawItems {
		items = append(items, Item{
			Kind:        normalizeKind(r.Type),
			Category:    strings.TrimSpace(r.Category),
			Amount:      parseAmount(r.Amount),
			Description: strings.TrimSpace(r.Description),
		})
	}
	return items
}

func normalizeKind(kind string) string {
	switch strings.TrimSpace(strings.ToLower(kind)) {
	case KindExpense, KindForemanGive, KindForemanReport:
		return strings.TrimSpace(strings.ToLower(kind))
	default:
		return KindUnknown
	}
}

func parseAmount(number json.Number) decimal.Decimal {
	if number == "" {
		return decimal.Zero
	}
	amount, err := decimal.NewFromString(number.String())
	if err != nil || amount.IsNegative() {
		return decimal.Zero
	}
	return amount
}

// stripFences removes a surrounding markdown code block, which models emit
// despite being told not to.
func stripFences(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if !strings.HasPrefix(cleaned, "```") {
		return cleaned
	}
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	if idx := strings.LastIndex(cleaned, "```"); idx >= 0 {
		cleaned = cleaned[:idx]
	}
	return strings.TrimSpace(cleaned)
}
