// Package output serializes analysis results.
package output

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/ectomigo/ectomigo/internal/parser"
)

// NDJSONWriter writes one JSON-encoded invocation per line. It is safe for
// concurrent use.
type NDJSONWriter struct {
	mu    sync.Mutex
	buf   *bufio.Writer
	enc   *json.Encoder
	count int
}

func NewNDJSONWriter(w io.Writer) *NDJSONWriter {
	buf := bufio.NewWriter(w)
	return &NDJSONWriter{buf: buf, enc: json.NewEncoder(buf)}
}

// Write encodes inv as a single line.
func (w *NDJSONWriter) Write(inv parser.Invocation) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.enc.Encode(inv); err != nil {
		return fmt.Errorf("encode invocation: %w", err)
	}
	w.count++
	return nil
}

// Count returns the number of records written so far.
func (w *NDJSONWriter) Count() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Flush writes any buffered records to the underlying writer.
func (w *NDJSONWriter) Flush() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.buf.Flush()
}

// WriteMigrations writes a migration result as one indented JSON document.
func WriteMigrations(w io.Writer, result parser.MigrationResult) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("encode migration result: %w", err)
	}
	return nil
}
