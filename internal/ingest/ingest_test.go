package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceID(t *testing.T) {
	date := time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

	t.Run("deterministic", func(t *testing.T) {
		a := SourceID(date, "crew@morningbrew.com", "Markets open higher")
		b := SourceID(date, "crew@morningbrew.com", "Markets open higher")
		assert.Equal(t, a, b)
	})

	t.Run("sanitizes sender address", func(t *testing.T) {
		id := SourceID(date, "Morning Brew <crew@morningbrew.com>", "Daily brief")
		assert.Contains(t, id, "news_crew_morningbrew_com_")
	})

	t.Run("distinct documents get distinct ids", func(t *testing.T) {
		a := SourceID(date, "crew@morningbrew.com", "Subject A")
		b := SourceID(date, "crew@morningbrew.com", "Subject B")
		c := SourceID(date.Add(24*time.Hour), "crew@morningbrew.com", "Subject A")
		assert.NotEqual(t, a, b)
		assert.NotEqual(t, a, c)
	})
}

func TestContentHash(t *testing.T) {
	assert.Equal(t, ContentHash("hello"), ContentHash("hello"))
	assert.NotEqual(t, ContentHash("hello"), ContentHash("hello!"))
	assert.Len(t, ContentHash("hello"), 64)
}

func TestNewChunk(t *testing.T) {
	date := time.Date(2025, 11, 3, 9, 0, 0, 0, time.FixedZone("EST", -5*3600))
	chunk := NewChunk("squad@thedailyupside.com", "Fed watch", "Rates held steady.", date)

	assert.Equal(t, "squad@thedailyupside.com", chunk.Sender)
	assert.Equal(t, time.UTC, chunk.Date.Location())
	assert.Equal(t, ContentHash("Rates held steady."), chunk.ContentHash)
	assert.NotEmpty(t, chunk.SourceID)
	assert.False(t, chunk.IngestedAt.IsZero())
}

func TestFileSource(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.jsonl")
	content := `{"sender":"a@example.com","subject":"First","content":"alpha","date":"2025-11-03T09:00:00Z"}

{"sender":"b@example.com","subject":"Second","content":"beta","date":"2025-11-03T10:00:00Z"}
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	chunks, err := NewFileSource(path).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "First", chunks[0].Subject)
	assert.Equal(t, "Second", chunks[1].Subject)
}

func TestFileSourceMalformedLine(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunks.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("{not json}\n"), 0o600))

	_, err := NewFileSource(path).Fetch(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 1")
}

func TestFileSourceMissing(t *testing.T) {
	_, err := NewFileSource(filepath.Join(t.TempDir(), "absent.jsonl")).Fetch(context.Background())
	require.Error(t, err)
}
