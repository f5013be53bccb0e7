package core

import (
	"fmt"
	"strings"
)

// Column names used when contract and offer state arrive separately.
const (
	ColumnContractSigned = "Vertrag auf Adresse vorhanden"
	ColumnOfferSent      = "L1-Angebot gesendet"
)

// ContractRule derives the contract status of a row.
// Source exports disagree on whether contract and offer state are one
// pre-combined column or two, so the derivation is configurable.
type ContractRule interface {
	Name() string
	Derive(row Row, c *Coercer) int
}

// CombinedColumnRule reads one pre-combined status column.
type CombinedColumnRule struct {
	Aliases []string
}

// Name implements ContractRule.
func (CombinedColumnRule) Name() string { return "combined" }

// Derive implements ContractRule.
func (r CombinedColumnRule) Derive(row Row, c *Coercer) int {
	return statusValue(Lookup(row, r.Aliases...), c)
}

// MaxOfColumnsRule takes the highest status over several columns.
type MaxOfColumnsRule struct {
	Columns [][]string
}

// Name implements ContractRule.
func (MaxOfColumnsRule) Name() string { return "max" }

// Derive implements ContractRule.
func (r MaxOfColumnsRule) Derive(row Row, c *Coercer) int {
	best := 0
	for _, aliases := range r.Columns {
		if v := statusValue(Lookup(row, aliases...), c); v > best {
			best = v
		}
	}
	return best
}

// statusValue coerces a status cell; boolean-like yes tokens count as 1.
func statusValue(v CellValue, c *Coercer) int {
	n := c.Int(v, 0)
	if n == 0 && v.Kind == CellString && c.Bool(v) {
		return 1
	}
	return n
}

// ParseContractRule returns the rule registered under name.
// An empty name selects the combined-column rule.
func ParseContractRule(name string, aliases FieldAliases) (ContractRule, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "combined":
		return CombinedColumnRule{Aliases: aliases.ContractStatus}, nil
	case "max":
		return MaxOfColumnsRule{Columns: [][]string{
			aliases.ContractStatus,
			{ColumnContractSigned},
			{ColumnOfferSent},
		}}, nil
	default:
		return nil, fmt.Errorf("unknown contract rule %q (expected combined or max)", name)
	}
}
