package core

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func TestSniffDelimiter(t *testing.T) {
	tests := []struct {
		header string
		want   rune
	}{
		{"Adresse;Region;Status\n1;2;3", ';'},
		{"Adresse,Region,Status", ','},
		{"Adresse\tRegion", '\t'},
		{`"Adresse, Ort";Region`, ';'},
		{"Adresse", ','},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, sniffDelimiter([]byte(tt.header)), tt.header)
	}
}

func TestCSVCodec_Decode(t *testing.T) {
	ctx := context.Background()

	t.Run("semicolon with BOM", func(t *testing.T) {
		data := "\xEF\xBB\xBFAdresse;Anzahl der Homes;Region\n" +
			"\"Hauptstraße 1, 4541 Adlwang\";1.234;Adlwang\n" +
			";;\n" +
			"Kirchengasse 7; 3 ;\n"

		sheet, err := CSVCodec{}.Decode(ctx, "export.csv", []byte(data))
		require.NoError(t, err)
		assert.Equal(t, "export", sheet.Name)
		assert.Equal(t, []string{"Adresse", "Anzahl der Homes", "Region"}, sheet.Header)
		require.Len(t, sheet.Rows, 2, "blank row must be skipped")

		assert.Equal(t, StringCell("Hauptstraße 1, 4541 Adlwang"), sheet.Rows[0]["Adresse"])
		assert.Equal(t, StringCell("1.234"), sheet.Rows[0]["Anzahl der Homes"])
		assert.Equal(t, StringCell("3"), sheet.Rows[1]["Anzahl der Homes"])
		_, hasRegion := sheet.Rows[1]["Region"]
		assert.False(t, hasRegion, "empty cells are omitted")
	})

	t.Run("duplicate header keeps first column", func(t *testing.T) {
		data := "Adresse,Status,Status\nA 1,neu,alt\n"
		sheet, err := CSVCodec{}.Decode(ctx, "a.csv", []byte(data))
		require.NoError(t, err)
		assert.Equal(t, StringCell("neu"), sheet.Rows[0]["Status"])
	})

	t.Run("short and long rows", func(t *testing.T) {
		data := "Adresse,Region\nA 1\nB 2,Linz,extra\n"
		sheet, err := CSVCodec{}.Decode(ctx, "a.csv", []byte(data))
		require.NoError(t, err)
		require.Len(t, sheet.Rows, 2)
		assert.Equal(t, "Linz", sheet.Rows[1]["Region"].Str)
	})

	t.Run("windows-1252", func(t *testing.T) {
		data := []byte("Adresse;Region\nStra\xdfe 1;M\xfchlviertel\n")
		sheet, err := DefaultCodecs()[1].Decode(ctx, "legacy.csv", data)
		require.NoError(t, err)
		assert.Equal(t, "Straße 1", sheet.Rows[0]["Adresse"].Str)
		assert.Equal(t, "Mühlviertel", sheet.Rows[0]["Region"].Str)
	})

	t.Run("excel text formula unwrapped", func(t *testing.T) {
		data := "adrcd-subcd,Adresse\n=\"00123\",A 1\n"
		sheet, err := CSVCodec{}.Decode(ctx, "a.csv", []byte(data))
		require.NoError(t, err)
		assert.Equal(t, "00123", sheet.Rows[0]["adrcd-subcd"].Str)
	})

	t.Run("empty file", func(t *testing.T) {
		sheet, err := CSVCodec{}.Decode(ctx, "empty.csv", nil)
		require.NoError(t, err)
		assert.Empty(t, sheet.Rows)
	})

	t.Run("cancelled context", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := CSVCodec{}.Decode(cctx, "a.csv", []byte("Adresse\nA 1\n"))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestXLSXCodec_Decode(t *testing.T) {
	ctx := context.Background()

	t.Run("typed cells", func(t *testing.T) {
		data := buildWorkbook(t, [][]any{
			{"Adresse", "Anzahl der Homes", "Preis Standardprodukt (€)", "adrcd-subcd", "Fertigstellung Bau erfolgt"},
			{"Hauptplatz 1", 12, 12.5, "00123", true},
			{"", nil, nil, nil, nil},
			{"Kirchengasse 7", "1.234", "12,50", 4711, false},
		})

		sheet, err := XLSXCodec{}.Decode(ctx, "a.xlsx", data)
		require.NoError(t, err)
		assert.Equal(t, "Sheet1", sheet.Name)
		require.Len(t, sheet.Rows, 2)

		first := sheet.Rows[0]
		assert.Equal(t, NumberCell(12), first["Anzahl der Homes"])
		assert.Equal(t, NumberCell(12.5), first["Preis Standardprodukt (€)"])
		assert.Equal(t, StringCell("00123"), first["adrcd-subcd"])
		assert.Equal(t, BoolCell(true), first["Fertigstellung Bau erfolgt"])

		second := sheet.Rows[1]
		assert.Equal(t, StringCell("1.234"), second["Anzahl der Homes"])
		assert.Equal(t, NumberCell(4711), second["adrcd-subcd"])
	})

	t.Run("date formatted cell keeps shown text", func(t *testing.T) {
		f := excelize.NewFile()
		defer f.Close()
		require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Adresse", "Fertigstellung Bau (aktueller Plan)"}))
		require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"Hauptplatz 1", 45000}))
		style, err := f.NewStyle(&excelize.Style{NumFmt: 14})
		require.NoError(t, err)
		require.NoError(t, f.SetCellStyle("Sheet1", "B2", "B2", style))
		var buf bytes.Buffer
		require.NoError(t, f.Write(&buf))

		sheet, err := XLSXCodec{}.Decode(ctx, "dates.xlsx", buf.Bytes())
		require.NoError(t, err)
		require.Len(t, sheet.Rows, 1)
		cell := sheet.Rows[0]["Fertigstellung Bau (aktueller Plan)"]
		assert.Equal(t, CellString, cell.Kind)
		assert.NotEqual(t, "45000", cell.Str)
	})

	t.Run("header only", func(t *testing.T) {
		data := buildWorkbook(t, [][]any{{"Adresse", "Region"}})
		sheet, err := XLSXCodec{}.Decode(ctx, "a.xlsx", data)
		require.NoError(t, err)
		assert.Empty(t, sheet.Rows)
	})

	t.Run("empty sheet", func(t *testing.T) {
		data := buildWorkbook(t, nil)
		sheet, err := XLSXCodec{}.Decode(ctx, "a.xlsx", data)
		require.NoError(t, err)
		assert.Empty(t, sheet.Rows)
	})

	t.Run("corrupt workbook", func(t *testing.T) {
		data := append([]byte("PK\x03\x04"), bytes.Repeat([]byte{0x42}, 64)...)
		_, err := XLSXCodec{}.Decode(ctx, "broken.xlsx", data)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid workbook")
	})
}

func TestIsDateNumFmt(t *testing.T) {
	custom := func(s string) *string { return &s }
	assert.True(t, isDateNumFmt(14, nil))
	assert.True(t, isDateNumFmt(22, nil))
	assert.False(t, isDateNumFmt(0, nil))
	assert.False(t, isDateNumFmt(4, nil))
	assert.True(t, isDateNumFmt(164, custom("dd.mm.yyyy")))
	assert.False(t, isDateNumFmt(164, custom(`#,##0 "Stk"`)))
	assert.False(t, isDateNumFmt(164, custom(`0 "days"`)))
}

func TestDetectCodec(t *testing.T) {
	codecs := DefaultCodecs()
	workbook := buildWorkbook(t, [][]any{{"Adresse"}})

	tests := []struct {
		name    string
		file    string
		data    []byte
		want    string
		wantErr bool
	}{
		{"xlsx by content", "upload.bin", workbook, "xlsx", false},
		{"csv", "a.csv", []byte("Adresse\n"), "csv", false},
		{"txt treated as csv", "a.txt", []byte("Adresse\n"), "csv", false},
		{"legacy xls", "old.xls", []byte{0xD0, 0xCF, 0x11, 0xE0, 0xA1, 0xB1, 0x1A, 0xE1, 0}, "", true},
		{"xlsx extension without zip", "fake.xlsx", []byte("Adresse\n"), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			codec, err := DetectCodec(codecs, tt.file, tt.data)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsupportedFormat))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, codec.Name())
		})
	}
}
