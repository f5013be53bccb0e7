package core

import "strings"

// FieldAliases lists, per record attribute, the spreadsheet column names that
// may carry it. Aliases are tried in order; the first present, non-blank
// column wins. Matching is exact and case-sensitive.
type FieldAliases struct {
	Address           []string
	AddressCode       []string
	Region            []string
	ANO               []string
	Status            []string
	Homes             []string
	ContractStatus    []string
	Price             []string
	ProvisionCategory []string
	BuildingCompany   []string
	KGNumber          []string
	CompletionPlanned []string
	CompletionDone    []string
	D2DStart          []string
	D2DEnd            []string
	OutdoorFee        []string
	Notes             []string
}

// DefaultAliases holds the German column names used by the source exports
// followed by their English fallbacks. The first alias of every field is the
// column written on export.
var DefaultAliases = FieldAliases{
	Address:           []string{"Adresse", "Address"},
	AddressCode:       []string{"adrcd-subcd", "ID"},
	Region:            []string{"Region"},
	ANO:               []string{"ANO", "Provider"},
	Status:            []string{"Status"},
	Homes:             []string{"Anzahl der Homes", "Homes"},
	ContractStatus:    []string{"Vertrag auf Adresse vorhanden oder L1-Angebot gesendet", "Contract"},
	Price:             []string{"Preis Standardprodukt (€)", "Price"},
	ProvisionCategory: []string{"Provisions-Kategorie"},
	BuildingCompany:   []string{"Baufirma"},
	KGNumber:          []string{"KG Nummer"},
	CompletionPlanned: []string{"Fertigstellung Bau (aktueller Plan)"},
	CompletionDone:    []string{"Fertigstellung Bau erfolgt"},
	D2DStart:          []string{"D2D-Vertrieb Start"},
	D2DEnd:            []string{"D2D-Vertrieb Ende"},
	OutdoorFee:        []string{"Outdoor-Pauschale vorhanden"},
	Notes:             []string{"Notes"},
}

// Lookup returns the first cell among aliases that is present and non-blank.
// Returns an empty cell if none match.
func Lookup(row Row, aliases ...string) CellValue {
	for _, alias := range aliases {
		v, ok := row[alias]
		if !ok || v.IsBlank() {
			continue
		}
		return v
	}
	return EmptyCell()
}

// Text returns the trimmed text of the first matching alias, or "".
func Text(row Row, aliases ...string) string {
	return strings.TrimSpace(Lookup(row, aliases...).Text())
}

// primary returns the export column name for a field.
func primary(aliases []string) string {
	if len(aliases) == 0 {
		return ""
	}
	return aliases[0]
}
