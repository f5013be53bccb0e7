package core

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		name     string
		row      Row
		aliases  []string
		expected string
	}{
		{
			name:     "first alias wins",
			row:      Row{"Adresse": StringCell("Hauptplatz 1"), "Address": StringCell("Main Square 1")},
			aliases:  DefaultAliases.Address,
			expected: "Hauptplatz 1",
		},
		{
			name:     "falls back to english",
			row:      Row{"Address": StringCell("Main Square 1")},
			aliases:  DefaultAliases.Address,
			expected: "Main Square 1",
		},
		{
			name:     "blank primary skipped",
			row:      Row{"Adresse": StringCell("   "), "Address": StringCell("Main Square 1")},
			aliases:  DefaultAliases.Address,
			expected: "Main Square 1",
		},
		{
			name:     "match is case sensitive",
			row:      Row{"adresse": StringCell("Hauptplatz 1")},
			aliases:  DefaultAliases.Address,
			expected: "",
		},
		{
			name:     "number is never blank",
			row:      Row{"Homes": NumberCell(0)},
			aliases:  DefaultAliases.Homes,
			expected: "0",
		},
		{
			name:     "absent",
			row:      Row{},
			aliases:  DefaultAliases.Notes,
			expected: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Text(tt.row, tt.aliases...); got != tt.expected {
				t.Errorf("Text() = %q, want %q", got, tt.expected)
			}
		})
	}
}

func TestText_Trims(t *testing.T) {
	row := Row{"Region": StringCell("  Adlwang \t")}
	if got := Text(row, "Region"); got != "Adlwang" {
		t.Errorf("Text() = %q, want %q", got, "Adlwang")
	}
}

func TestCellValue_Text(t *testing.T) {
	tests := []struct {
		cell     CellValue
		expected string
	}{
		{EmptyCell(), ""},
		{StringCell("x"), "x"},
		{NumberCell(12.5), "12.5"},
		{NumberCell(1234), "1234"},
		{BoolCell(true), "true"},
	}
	for _, tt := range tests {
		if got := tt.cell.Text(); got != tt.expected {
			t.Errorf("Text() = %q, want %q", got, tt.expected)
		}
	}
}
