package core

// DraftNotePlaceholder is the note given to AI drafts that came back without one.
const DraftNotePlaceholder = "智能识别账单"

// Draft is a transaction proposal produced by the AI assistant. It becomes a
// Transaction only after the user confirms it through the ledger.
type Draft struct {
	Amount   Money           `json:"amount"`
	Category Category        `json:"category"`
	Type     TransactionType `json:"type"`
	Note     string          `json:"note"`
	Date     Date            `json:"date"`
}

// NewTransaction converts the draft into ledger input.
func (d Draft) NewTransaction() NewTransaction {
	return NewTransaction{
		Amount:   d.Amount,
		Type:     d.Type,
		Category: d.Category,
		Note:     d.Note,
		Date:     d.Date,
	}
}
