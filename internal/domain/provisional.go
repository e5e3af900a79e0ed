package domain

import "github.com/shopspring/decimal"

// Provisional pairs an authoritative value with an optimistic local override.
// The override is shown to the user but never used for gating, and is dropped
// on the next Confirm.
type Provisional struct {
	confirmed   decimal.Decimal
	provisional *decimal.Decimal
}

// Confirm records an authoritative value and drops any override.
func (p *Provisional) Confirm(v decimal.Decimal) {
	p.confirmed = v
	p.provisional = nil
}

// Adjust applies an optimistic delta on top of the displayed value.
func (p *Provisional) Adjust(delta decimal.Decimal) {
	next := p.Display().Add(delta)
	p.provisional = &next
}

// Revert drops the override without a new authoritative value.
func (p *Provisional) Revert() {
	p.provisional = nil
}

func (p *Provisional) Confirmed() decimal.Decimal {
	return p.confirmed
}

// Display is the value to show: the override when present.
func (p *Provisional) Display() decimal.Decimal {
	if p.provisional != nil {
		return *p.provisional
	}
	return p.confirmed
}

func (p *Provisional) IsProvisional() bool {
	return p.provisional != nil
}
