package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/quantfabric/analystd/internal/core"
)

// fileRecord is one JSONL line of pre-cleaned document input.
type fileRecord struct {
	Sender  string `json:"sender"`
	Subject string `json:"subject"`
	Content string `json:"content"`
	Date    string `json:"date"`
}

// FileSource reads chunks from a JSONL file, one document per line:
//
//	{"sender":"crew@morningbrew.com","subject":"...","content":"...","date":"2025-11-03T09:00:00Z"}
//
// It exists for batch runs and tests; production deployments implement
// Source against their mail pipeline.
type FileSource struct {
	path string
}

// NewFileSource creates a FileSource for the given path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path}
}

// Fetch reads and normalizes all records, preserving file order.
// Blank lines are skipped; a malformed line fails the whole fetch since
// silently dropping input would break the audit trail.
func (s *FileSource) Fetch(ctx context.Context) ([]core.Chunk, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("opening input file: %w", err)
	}
	defer f.Close()

	var chunks []core.Chunk
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	line := 0
	for scanner.Scan() {
		line++
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}

		var rec fileRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return nil, fmt.Errorf("parsing line %d: %w", line, err)
		}
		date, err := time.Parse(time.RFC3339, rec.Date)
		if err != nil {
			return nil, fmt.Errorf("parsing date on line %d: %w", line, err)
		}

		chunks = append(chunks, NewChunk(rec.Sender, rec.Subject, rec.Content, date))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading input file: %w", err)
	}
	return chunks, nil
}
