// Package core provides the business logic for address spreadsheet imports.
//
// This package is independent of any transport. The HTTP server and the
// command-line tool both drive it the same way.
//
// # Architecture
//
//   - Codecs: [CSVCodec] and [XLSXCodec] decode file bytes into a [Sheet]
//     of typed [CellValue]s keyed by header text.
//   - Field mapping: [FieldAliases] lists the column names, German first,
//     that may carry each [Record] attribute.
//   - Coercion: a [Coercer] parses locale-formatted numbers and yes/ja/x
//     style booleans, memoizing results in LRU caches.
//   - Deduplication: [DedupKey] normalizes address text; a
//     [DuplicateChecker] tracks keys from the existing collection and the
//     current batch.
//   - Import: [Importer.Import] ties the above together and returns new
//     records without touching any collection.
//   - Export: [ExportCSV] and [ExportXLSX] write the layout the importer reads.
//   - Collection: [Collection] owns the in-memory records and answers
//     queries, groupings and KPIs.
//
// # Import Flow
//
//  1. Files are decoded in parallel, bounded by DecodeConcurrency
//  2. A [DuplicateChecker] is built from the existing records
//  3. Rows run through the checker strictly in file order, then row order
//  4. After every ChunkSize rows the configured [Yielder] runs
//  5. The caller merges [ImportResult.Records] into its [Collection]
//
// A file that cannot be decoded fails the whole import with a [*DecodeError].
// Blank addresses are skipped and counted separately from duplicates.
//
// # Error Handling
//
// Technical errors are mapped to user-facing messages with [MapError]:
//
//   - FILE001-FILE007: file errors (size, format, encoding)
//   - IMP001-IMP002: import errors
//   - EXP001-EXP002: export errors
//   - REC001-REC003: record lookups and edits
//   - UPL001-UPL004: request handling (busy, cancelled, timeout, auth)
package core
