// Package ingest extracts text chunks from uploaded PDFs. Extraction failures
// (corrupt files, unsupported formats) surface as classified *IngestError
// values, never as panics.
package ingest

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"

	"collab/internal/logging"
	"collab/internal/types"
)

// IngestError classifies a document ingestion failure.
type IngestError struct {
	Source string // the offending document
	Reason string // "open", "read", "empty"
	Err    error
}

func (e *IngestError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ingest %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("ingest %s: %s", e.Source, e.Reason)
}

func (e *IngestError) Unwrap() error { return e.Err }

// ExtractChunks parses the PDF at path into one chunk per non-empty page,
// assigned to the given collection in page order.
func ExtractChunks(path, collection string) ([]types.Chunk, error) {
	source := filepath.Base(path)
	log := logging.Get(logging.CategoryIngest)

	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, &IngestError{Source: source, Reason: "open", Err: err}
	}
	defer f.Close()

	chunks, total, err := readPages(reader, source, collection)
	if err != nil {
		return nil, err
	}

	if len(chunks) == 0 {
		return nil, &IngestError{Source: source, Reason: "empty"}
	}

	log.Info("%s: extracted %d chunks from %d pages", source, len(chunks), total)
	return chunks, nil
}

// readPages walks the page tree and collects one chunk per non-empty page.
// The pdf library panics on malformed object structures instead of returning
// an error, so the walk runs under a recover that converts the panic into a
// classified read error.
func readPages(reader *pdf.Reader, source, collection string) (chunks []types.Chunk, total int, err error) {
	log := logging.Get(logging.CategoryIngest)

	defer func() {
		if r := recover(); r != nil {
			chunks = nil
			err = &IngestError{Source: source, Reason: "read", Err: fmt.Errorf("%v", r)}
		}
	}()

	total = reader.NumPage()
	for i := 1; i <= total; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, perr := page.GetPlainText(nil)
		if perr != nil {
			// One unreadable page does not abort the document.
			log.Warn("%s: skipping unreadable page %d: %v", source, i, perr)
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		chunks = append(chunks, types.Chunk{
			Collection: collection,
			Source:     source,
			Seq:        len(chunks),
			Content:    text,
		})
	}
	return chunks, total, nil
}
