package paper

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"cryptoagents-go/internal/execution"
)

// JSONLRecorder is the audit trail of applied transactions, one JSON object per line.
// Each record is flushed immediately so the file survives an abrupt exit.
type JSONLRecorder struct {
	mu       sync.Mutex
	out      *os.File
	buf      *bufio.Writer
	failures int
}

// NewJSONLRecorder opens path for appending, creating parent directories as needed.
func NewJSONLRecorder(path string) (*JSONLRecorder, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create audit dir: %w", err)
	}
	out, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open audit file: %w", err)
	}
	return &JSONLRecorder{out: out, buf: bufio.NewWriter(out)}, nil
}

// Record appends tx. Writes after Close are dropped; write errors are counted.
func (r *JSONLRecorder) Record(tx execution.Transaction) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out == nil {
		return
	}
	line, err := json.Marshal(tx)
	if err == nil {
		line = append(line, '\n')
		if _, err = r.buf.Write(line); err == nil {
			err = r.buf.Flush()
		}
	}
	if err != nil {
		r.failures++
	}
}

// Failures reports how many records could not be written.
func (r *JSONLRecorder) Failures() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.failures
}

// Close flushes and releases the file. It is safe to call more than once.
func (r *JSONLRecorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out == nil {
		return nil
	}
	flushErr := r.buf.Flush()
	closeErr := r.out.Close()
	r.out, r.buf = nil, nil
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

// ReadTransactions loads an audit file written by JSONLRecorder, oldest first.
func ReadTransactions(path string) ([]execution.Transaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var txs []execution.Transaction
	sc := bufio.NewScanner(f)
	for n := 1; sc.Scan(); n++ {
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var tx execution.Transaction
		if err := json.Unmarshal(raw, &tx); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, n, err)
		}
		txs = append(txs, tx)
	}
	return txs, sc.Err()
}
