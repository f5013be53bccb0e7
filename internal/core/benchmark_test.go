package core

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"testing"
)

// ============================================================================
// Coercion Benchmarks
// ============================================================================

// BenchmarkNormalizeNumber benchmarks German and English number cleanup.
// This runs for every homes and price cell.
func BenchmarkNormalizeNumber(b *testing.B) {
	testCases := []string{
		"12",
		"12,50",
		"1.234,56",
		"1,234.56",
		"  9 €  ",
		"€ 1.000",
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			NormalizeNumber(tc)
		}
	}
}

// BenchmarkCoercerFloat_Cached benchmarks repeated values, the common case
// for price columns.
func BenchmarkCoercerFloat_Cached(b *testing.B) {
	c, err := NewCoercer(DefaultCacheSize)
	if err != nil {
		b.Fatal(err)
	}
	v := StringCell("12,50")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Float(v, 0)
	}
}

// BenchmarkCleanCell benchmarks cell cleanup.
func BenchmarkCleanCell(b *testing.B) {
	testCases := []string{
		"Hauptplatz 1",
		"  Linz  ",
		`="4020"`,
		`"quoted"`,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		for _, tc := range testCases {
			CleanCell(tc)
		}
	}
}

// ============================================================================
// Dedup Benchmarks
// ============================================================================

// BenchmarkDedupKey benchmarks address normalization.
func BenchmarkDedupKey(b *testing.B) {
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		DedupKey("  Bahnhofstraße 7,  4600 Wels ")
	}
}

// BenchmarkDuplicateChecker benchmarks lookups against a large collection.
func BenchmarkDuplicateChecker(b *testing.B) {
	checker := NewDuplicateChecker(generateRecords(10000))

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		checker.IsDuplicate(fmt.Sprintf("Teststraße %d, 4020 Linz", i%20000))
	}
}

// ============================================================================
// Decode and Import Benchmarks
// ============================================================================

// BenchmarkCSVDecode benchmarks CSV decoding of 1000 rows.
func BenchmarkCSVDecode(b *testing.B) {
	data := generateTestCSV(1000)
	codec := CSVCodec{}
	ctx := context.Background()

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Decode(ctx, "bench.csv", data); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkCSVDecode_Large benchmarks CSV decoding of 10000 rows.
func BenchmarkCSVDecode_Large(b *testing.B) {
	data := generateTestCSV(10000)
	codec := CSVCodec{}
	ctx := context.Background()

	b.SetBytes(int64(len(data)))
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := codec.Decode(ctx, "bench.csv", data); err != nil {
			b.Fatal(err)
		}
	}
}

// BenchmarkImport benchmarks a full import of one file against 5000
// existing records. A quarter of the rows are duplicates.
func BenchmarkImport(b *testing.B) {
	im, err := NewImporter(ImporterOptions{Yielder: NoopYielder, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	if err != nil {
		b.Fatal(err)
	}
	existing := generateRecords(5000)
	files := []SourceFile{{Name: "bench.csv", Data: generateTestCSV(10000)}}
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := im.Import(ctx, files, existing); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Query and Export Benchmarks
// ============================================================================

// BenchmarkQuery benchmarks a search with a filter and two sorts.
func BenchmarkQuery(b *testing.B) {
	records := generateRecords(10000)
	opts := QueryOptions{
		Search: "linz",
		Filters: FilterSet{Filters: []ColumnFilter{
			{Column: "homes", Operator: OpGreaterEq, Value: "2"},
		}},
		Sorts: []SortSpec{{Column: "region", Dir: "asc"}, {Column: "price", Dir: "desc"}},
		Limit: 100,
	}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		query(records, opts)
	}
}

// BenchmarkExportCSV benchmarks a 10000 record CSV export.
func BenchmarkExportCSV(b *testing.B) {
	records := generateRecords(10000)
	ctx := context.Background()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := ExportCSV(ctx, io.Discard, records, ExportOptions{Yielder: NoopYielder}); err != nil {
			b.Fatal(err)
		}
	}
}

// ============================================================================
// Parallel Benchmarks
// ============================================================================

// BenchmarkDedupKeyParallel benchmarks DedupKey under concurrent load.
func BenchmarkDedupKeyParallel(b *testing.B) {
	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			DedupKey("Hauptplatz 1, 4020 Linz")
		}
	})
}

// BenchmarkCoercerParallel benchmarks the shared cache under concurrent load.
func BenchmarkCoercerParallel(b *testing.B) {
	c, err := NewCoercer(DefaultCacheSize)
	if err != nil {
		b.Fatal(err)
	}
	v := StringCell("1.234,56")

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			c.Float(v, 0)
		}
	})
}

// ============================================================================
// Helpers
// ============================================================================

// generateTestCSV creates a semicolon separated file with the given number
// of data rows. House numbers are even, so low rows repeat generateRecords.
func generateTestCSV(rows int) []byte {
	var sb strings.Builder
	sb.WriteString("Adresse;Region;Anzahl der Homes;Preis Standardprodukt (€);Vertragsstatus\n")
	for i := 0; i < rows; i++ {
		fmt.Fprintf(&sb, "Teststraße %d, 4020 Linz;Linz;%d;%d,50;%d\n", i*2, i%7, i%40, i%2)
	}
	return []byte(sb.String())
}

// generateRecords creates records with addresses "Teststraße 0" to
// "Teststraße n-1".
func generateRecords(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		records[i] = Record{
			ID:      int64(i + 1),
			Address: fmt.Sprintf("Teststraße %d, 4020 Linz", i),
			Region:  "Linz",
			Homes:   i % 7,
			Price:   float64(i % 40),
		}
	}
	return records
}
