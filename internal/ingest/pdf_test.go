package ingest

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
)

func TestExtractChunksMissingFile(t *testing.T) {
	_, err := ExtractChunks(filepath.Join(t.TempDir(), "missing.pdf"), "c")
	var ierr *IngestError
	if !errors.As(err, &ierr) {
		t.Fatalf("expected *IngestError, got %v", err)
	}
	if ierr.Reason != "open" {
		t.Errorf("reason = %q, want open", ierr.Reason)
	}
}

func TestExtractChunksCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.pdf")
	if err := os.WriteFile(path, []byte("this is not a pdf"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ExtractChunks(path, "c")
	var ierr *IngestError
	if !errors.As(err, &ierr) {
		t.Fatalf("corrupt file must yield classified error, got %v", err)
	}
	if ierr.Source != "corrupt.pdf" {
		t.Errorf("source = %q", ierr.Source)
	}
}

func TestExtractChunksMalformedObjects(t *testing.T) {
	// A well-formed shell (header, xref, trailer) whose page tree reference
	// points at a bare name token instead of an object definition. The pdf
	// library panics while resolving it; that must surface as a classified
	// read error, not a crash.
	var b bytes.Buffer
	b.WriteString("%PDF-1.4\n")
	off1 := b.Len()
	b.WriteString("1 0 obj\n<< /Type /Catalog /Pages 2 0 R >>\nendobj\n")
	off2 := b.Len()
	b.WriteString("/Garbage\n")
	xref := b.Len()
	fmt.Fprintf(&b, "xref\n0 3\n0000000000 65535 f \n%010d 00000 n \n%010d 00000 n \n", off1, off2)
	fmt.Fprintf(&b, "trailer\n<< /Size 3 /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", xref)

	path := filepath.Join(t.TempDir(), "mangled.pdf")
	if err := os.WriteFile(path, b.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := ExtractChunks(path, "c")
	var ierr *IngestError
	if !errors.As(err, &ierr) {
		t.Fatalf("malformed object table must yield classified error, got %v", err)
	}
	if ierr.Reason != "read" {
		t.Errorf("reason = %q, want read", ierr.Reason)
	}
	if ierr.Source != "mangled.pdf" {
		t.Errorf("source = %q", ierr.Source)
	}
}
