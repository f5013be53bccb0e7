package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// DefaultChunkSize is the number of rows processed between yields.
const DefaultChunkSize = 500

// DefaultDecodeConcurrency bounds how many files are decoded at once.
const DefaultDecodeConcurrency = 4

// ContextCheckInterval is how often (in rows) codecs check for cancellation.
var ContextCheckInterval = 1000

// DefaultSkippedSamples is the number of skipped rows kept per import.
const DefaultSkippedSamples = 100

// ErrNoFiles is returned when an import is started without files.
var ErrNoFiles = errors.New("no files provided")

// ErrFileTooLarge is returned for files above the configured size limit.
var ErrFileTooLarge = errors.New("file too large")

// DecodeError reports a file the codec could not read. It fails the whole
// import; nothing from the batch is returned.
type DecodeError struct {
	File  string
	Codec string
	Err   error
}

func (e *DecodeError) Error() string {
	if e.Codec == "" {
		return fmt.Sprintf("decode %s: %v", e.File, e.Err)
	}
	return fmt.Sprintf("decode %s (%s): %v", e.File, e.Codec, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// FileResult contains the counters of one imported file.
type FileResult struct {
	Name       string `json:"name"`
	Sheet      string `json:"sheet,omitempty"`
	Codec      string `json:"codec"`
	Rows       int    `json:"rows"`
	Accepted   int    `json:"accepted"`
	Duplicates int    `json:"duplicates"`
	Blank      int    `json:"blank"`
}

// Skip reasons.
const (
	SkipDuplicate = "duplicate"
	SkipBlank     = "blank"
)

// SkippedRow identifies a row that produced no record. Row is the 1-based
// position among the data rows of the file.
type SkippedRow struct {
	File    string `json:"file"`
	Row     int    `json:"row"`
	Address string `json:"address,omitempty"`
	Reason  string `json:"reason"`
}

// ImportResult contains the outcome of one import call. Records are new and
// not yet part of any collection; the caller merges them.
type ImportResult struct {
	BatchID    string        `json:"batchId"`
	Records    []Record      `json:"-"`
	TotalRows  int           `json:"totalRows"`
	Duplicates int           `json:"duplicates"`
	Blank      int           `json:"blank"`
	Files      []FileResult  `json:"files"`
	Skipped    []SkippedRow  `json:"skipped,omitempty"`
	Duration   time.Duration `json:"-"`
}

// Accepted returns the number of new records.
func (r *ImportResult) Accepted() int {
	return len(r.Records)
}

// ImporterOptions configures an Importer. Zero values select defaults.
type ImporterOptions struct {
	Codecs            []Codec
	Aliases           *FieldAliases
	ContractRule      ContractRule
	ChunkSize         int
	DecodeConcurrency int
	CacheSize         int
	MaxFileSize       int64
	SkippedSamples    int // < 0 keeps none
	Yielder           Yielder
	Logger            *slog.Logger
}

// Importer turns spreadsheet files into deduplicated records.
// Safe for concurrent use; each call works on its own duplicate snapshot.
type Importer struct {
	codecs      []Codec
	aliases     FieldAliases
	rule        ContractRule
	chunkSize   int
	concurrency int
	maxFileSize int64
	samples     int
	yielder     Yielder
	logger      *slog.Logger

	coercer *Coercer
	ids     *IDGenerator
}

// NewImporter creates an Importer with the given options.
func NewImporter(opts ImporterOptions) (*Importer, error) {
	im := &Importer{
		codecs:      opts.Codecs,
		aliases:     DefaultAliases,
		rule:        opts.ContractRule,
		chunkSize:   opts.ChunkSize,
		concurrency: opts.DecodeConcurrency,
		maxFileSize: opts.MaxFileSize,
		samples:     opts.SkippedSamples,
		yielder:     opts.Yielder,
		logger:      opts.Logger,
		ids:         NewIDGenerator(),
	}
	if opts.Aliases != nil {
		im.aliases = *opts.Aliases
	}
	if len(im.codecs) == 0 {
		im.codecs = DefaultCodecs()
	}
	if im.rule == nil {
		im.rule = CombinedColumnRule{Aliases: im.aliases.ContractStatus}
	}
	if im.chunkSize <= 0 {
		im.chunkSize = DefaultChunkSize
	}
	if im.concurrency <= 0 {
		im.concurrency = DefaultDecodeConcurrency
	}
	if im.samples == 0 {
		im.samples = DefaultSkippedSamples
	}
	if im.samples < 0 {
		im.samples = 0
	}
	if im.yielder == nil {
		im.yielder = GoschedYielder
	}
	if im.logger == nil {
		im.logger = slog.Default()
	}

	coercer, err := NewCoercer(opts.CacheSize)
	if err != nil {
		return nil, fmt.Errorf("create coercer: %w", err)
	}
	im.coercer = coercer
	return im, nil
}

// Import decodes files and returns the rows that are not duplicates of
// existing records or of earlier rows in the batch.
//
// Files are decoded in parallel. Rows are then checked strictly in file
// order, row order, so the first occurrence of an address always wins.
func (im *Importer) Import(ctx context.Context, files []SourceFile, existing []Record) (*ImportResult, error) {
	if len(files) == 0 {
		return nil, ErrNoFiles
	}
	start := time.Now()
	defer im.coercer.Clear()

	result := &ImportResult{BatchID: uuid.NewString()}
	logger := im.logger.With("batch_id", result.BatchID)

	sheets, codecs, err := im.decodeAll(ctx, files)
	if err != nil {
		logger.Warn("import failed", "error", err)
		return nil, err
	}

	checker := NewDuplicateChecker(existing)
	im.ids.Observe(maxRecordID(existing))

	totalRows := 0
	for _, sh := range sheets {
		totalRows += len(sh.Rows)
	}
	base := im.ids.Reserve(totalRows)

	offset := 0
	for i, sh := range sheets {
		fr := FileResult{Name: files[i].Name, Sheet: sh.Name, Codec: codecs[i], Rows: len(sh.Rows)}
		accepted, err := im.processSheet(ctx, sh, checker, base+int64(offset), &fr, result)
		if err != nil {
			logger.Warn("import aborted", "file", fr.Name, "error", err)
			return nil, fmt.Errorf("import %s: %w", fr.Name, err)
		}
		offset += len(sh.Rows)

		result.Records = append(result.Records, accepted...)
		result.Files = append(result.Files, fr)
		result.TotalRows += fr.Rows
		result.Duplicates += fr.Duplicates
		result.Blank += fr.Blank

		logger.Debug("file imported",
			"file", fr.Name,
			"codec", fr.Codec,
			"rows", fr.Rows,
			"accepted", fr.Accepted,
			"duplicates", fr.Duplicates,
			"blank", fr.Blank,
		)
	}

	result.Duration = time.Since(start)
	logger.Info("import completed",
		"files", len(files),
		"existing", checker.ExistingCount(),
		"rows", result.TotalRows,
		"accepted", result.Accepted(),
		"duplicates", result.Duplicates,
		"blank", result.Blank,
		"duration_ms", result.Duration.Milliseconds(),
	)
	return result, nil
}

// decodeAll decodes every file, bounded by the configured concurrency.
// The first failure cancels the rest.
func (im *Importer) decodeAll(ctx context.Context, files []SourceFile) ([]*Sheet, []string, error) {
	sheets := make([]*Sheet, len(files))
	names := make([]string, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(im.concurrency)

	for i, file := range files {
		g.Go(func() error {
			if im.maxFileSize > 0 && int64(len(file.Data)) > im.maxFileSize {
				return &DecodeError{
					File: file.Name,
					Err:  fmt.Errorf("%w: %d bytes exceeds %d", ErrFileTooLarge, len(file.Data), im.maxFileSize),
				}
			}
			codec, err := DetectCodec(im.codecs, file.Name, file.Data)
			if err != nil {
				return &DecodeError{File: file.Name, Err: err}
			}
			sheet, err := codec.Decode(gctx, file.Name, file.Data)
			if err != nil {
				return &DecodeError{File: file.Name, Codec: codec.Name(), Err: err}
			}
			sheets[i] = sheet
			names[i] = codec.Name()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return sheets, names, nil
}

// processSheet runs the rows of one sheet through the duplicate checker in
// chunks. Row i of the sheet gets id firstID+i when accepted.
func (im *Importer) processSheet(ctx context.Context, sh *Sheet, checker *DuplicateChecker, firstID int64, fr *FileResult, result *ImportResult) ([]Record, error) {
	var accepted []Record
	skip := func(i int, address, reason string) {
		if len(result.Skipped) < im.samples {
			result.Skipped = append(result.Skipped, SkippedRow{File: fr.Name, Row: i + 1, Address: address, Reason: reason})
		}
	}

	for start := 0; start < len(sh.Rows); start += im.chunkSize {
		end := min(start+im.chunkSize, len(sh.Rows))

		for i := start; i < end; i++ {
			row := sh.Rows[i]
			address := Text(row, im.aliases.Address...)
			if DedupKey(address) == "" {
				fr.Blank++
				skip(i, address, SkipBlank)
				continue
			}
			if checker.IsDuplicate(address) {
				fr.Duplicates++
				skip(i, address, SkipDuplicate)
				continue
			}
			accepted = append(accepted, im.buildRecord(row, address, firstID+int64(i)))
			checker.Add(address)
		}

		if err := im.yielder.Yield(ctx); err != nil {
			return nil, err
		}
	}

	fr.Accepted = len(accepted)
	return accepted, nil
}

// buildRecord maps every field of a row onto a Record.
func (im *Importer) buildRecord(row Row, address string, id int64) Record {
	a := &im.aliases
	c := im.coercer
	return Record{
		ID:                id,
		Address:           address,
		AddressCode:       Text(row, a.AddressCode...),
		Region:            Text(row, a.Region...),
		ANO:               Text(row, a.ANO...),
		Status:            Text(row, a.Status...),
		Homes:             c.Int(Lookup(row, a.Homes...), 0),
		ContractStatus:    im.rule.Derive(row, c),
		Price:             c.Float(Lookup(row, a.Price...), 0),
		ProvisionCategory: Text(row, a.ProvisionCategory...),
		BuildingCompany:   Text(row, a.BuildingCompany...),
		KGNumber:          Text(row, a.KGNumber...),
		CompletionPlanned: Text(row, a.CompletionPlanned...),
		CompletionDone:    c.Bool(Lookup(row, a.CompletionDone...)),
		D2DStart:          Text(row, a.D2DStart...),
		D2DEnd:            Text(row, a.D2DEnd...),
		OutdoorFee:        Text(row, a.OutdoorFee...),
		Notes:             Text(row, a.Notes...),
		Imported:          true,
	}
}

// Aliases returns the column aliases the importer reads.
func (im *Importer) Aliases() FieldAliases {
	return im.aliases
}

// ContractRule returns the configured contract status rule.
func (im *Importer) ContractRule() ContractRule {
	return im.rule
}

func maxRecordID(records []Record) int64 {
	var max int64
	for _, r := range records {
		if r.ID > max {
			max = r.ID
		}
	}
	return max
}
