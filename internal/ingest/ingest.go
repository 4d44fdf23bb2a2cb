// Package ingest is the intake boundary of the pipeline. It consumes
// already-fetched, already-cleaned documents from a Source and
// normalizes them into core.Chunk records with deterministic identity.
// Mail fetching and HTML cleaning live outside this module.
package ingest

import (
	"context"
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/quantfabric/analystd/internal/core"
)

// Source supplies an ordered list of chunks for one pipeline run.
type Source interface {
	Fetch(ctx context.Context) ([]core.Chunk, error)
}

var senderSanitizer = regexp.MustCompile(`[^a-zA-Z0-9]`)

// SourceID derives the deterministic chunk identifier from date,
// sender, and subject. The same logical document always maps to the
// same ID, which is what makes re-ingestion a no-op downstream.
func SourceID(date time.Time, sender, subject string) string {
	addr := sender
	if i := strings.LastIndex(addr, "<"); i >= 0 {
		addr = addr[i+1:]
	}
	addr = strings.TrimSuffix(addr, ">")
	senderClean := senderSanitizer.ReplaceAllString(addr, "_")

	dateStr := date.UTC().Format(time.RFC3339)
	combined := fmt.Sprintf("%s_%s_%s", dateStr, sender, subject)
	sum := md5.Sum([]byte(combined))
	return fmt.Sprintf("news_%s_%s", senderClean, hex.EncodeToString(sum[:])[:8])
}

// ContentHash fingerprints chunk content with SHA-256.
func ContentHash(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

// NewChunk builds a normalized, immutable chunk from raw document fields.
func NewChunk(sender, subject, content string, date time.Time) core.Chunk {
	return core.Chunk{
		SourceID:    SourceID(date, sender, subject),
		ContentHash: ContentHash(content),
		Sender:      sender,
		Subject:     subject,
		Content:     content,
		Date:        date.UTC(),
		IngestedAt:  time.Now().UTC(),
	}
}
