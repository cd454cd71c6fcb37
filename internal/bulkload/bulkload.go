// Package bulkload reads document files (CSV or newline-delimited JSON) and
// uploads them in rate-limited batches.
package bulkload

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// maxDocumentBytes bounds a single NDJSON input line.
const maxDocumentBytes = 1 << 24

// Putter uploads one batch of documents. *data.Client satisfies it.
type Putter interface {
	Put(ctx context.Context, typ string, docs []json.RawMessage) (int64, error)
}

// FormatForPath guesses the input format from a file extension: "csv" for
// .csv, "ndjson" for everything else (.json, .ndjson, .jsonl).
func FormatForPath(path string) string {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		return "csv"
	}
	return "ndjson"
}

// ReadDocuments parses the entire input into documents. CSV input uses its
// header row for field names, with all values kept as strings; NDJSON input
// takes each non-blank line as one document.
func ReadDocuments(r io.Reader, format string) ([]json.RawMessage, error) {
	switch format {
	case "csv":
		return readCSV(r)
	case "ndjson":
		return readNDJSON(r)
	default:
		return nil, fmt.Errorf("unknown input format %q", format)
	}
}

func readCSV(r io.Reader) ([]json.RawMessage, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv input is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var docs []json.RawMessage
	for row := 2; ; row++ {
		record, err := reader.Read()
		if err == io.EOF {
			return docs, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", row, err)
		}
		doc := make(map[string]string, len(header))
		for i, field := range header {
			doc[field] = record[i]
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return nil, fmt.Errorf("encode csv row %d: %w", row, err)
		}
		docs = append(docs, raw)
	}
}

func readNDJSON(r io.Reader) ([]json.RawMessage, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxDocumentBytes)

	var docs []json.RawMessage
	for line := 1; scanner.Scan(); line++ {
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}
		if !json.Valid(raw) {
			return nil, fmt.Errorf("line %d is not valid JSON", line)
		}
		docs = append(docs, append(json.RawMessage(nil), raw...))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return docs, nil
}

// Loader uploads documents through a Putter in batches, optionally bounded
// by a batches-per-second rate limit.
type Loader struct {
	putter    Putter
	batchSize int
	limiter   *rate.Limiter
	logger    *zap.Logger
}

// NewLoader creates a Loader. batchSize defaults to 1000 when non-positive;
// rps <= 0 disables rate limiting.
func NewLoader(putter Putter, batchSize int, rps float64, logger *zap.Logger) *Loader {
	if batchSize <= 0 {
		batchSize = 1000
	}
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{putter: putter, batchSize: batchSize, limiter: limiter, logger: logger}
}

// Load uploads docs as documents of the given type and returns the total
// count the server accepted. The first failed batch aborts the load; batches
// already uploaded stay uploaded.
func (l *Loader) Load(ctx context.Context, typ string, docs []json.RawMessage) (int64, error) {
	var total int64
	for start := 0; start < len(docs); start += l.batchSize {
		end := min(start+l.batchSize, len(docs))

		if l.limiter != nil {
			if err := l.limiter.Wait(ctx); err != nil {
				return total, err
			}
		}

		n, err := l.putter.Put(ctx, typ, docs[start:end])
		if err != nil {
			return total, fmt.Errorf("upload batch at document %d: %w", start, err)
		}
		total += n
		l.logger.Debug("uploaded batch",
			zap.String("type", typ),
			zap.Int("batch_size", end-start),
			zap.Int64("total", total),
		)
	}
	return total, nil
}
