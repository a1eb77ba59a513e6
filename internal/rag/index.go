// Package rag keeps an embedded document index in BadgerDB and answers
// questions from its nearest chunks.
package rag

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	badger "github.com/dgraph-io/badger/v4"
)

const docPrefix = "doc:"

// Chunk is one embedded slice of a source document.
type Chunk struct {
	ID        string    `json:"id"`
	Source    string    `json:"source,omitempty"`
	Title     string    `json:"title,omitempty"`
	Content   string    `json:"content"`
	Embedding []float32 `json:"embedding"`
}

// Match is a chunk scored against a query.
type Match struct {
	Chunk
	Score float64
}

// Index persists chunks under "doc:<id>" keys.
type Index struct {
	db *badger.DB
}

// OpenIndex opens (creating if needed) a persistent index at path.
func OpenIndex(path string) (*Index, error) {
	if path == "" {
		return nil, errors.New("rag: index path required")
	}
	if err := os.MkdirAll(path, 0o750); err != nil {
		return nil, fmt.Errorf("rag: create index dir: %w", err)
	}
	return open(badger.DefaultOptions(path))
}

// OpenMemoryIndex opens an index that lives only in memory.
func OpenMemoryIndex() (*Index, error) {
	return open(badger.DefaultOptions("").WithInMemory(true))
}

func open(opts badger.Options) (*Index, error) {
	db, err := badger.Open(opts.WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("rag: open index: %w", err)
	}
	return &Index{db: db}, nil
}

func (i *Index) Close() error {
	return i.db.Close()
}

// Put writes chunks, replacing any with the same ID.
func (i *Index) Put(ctx context.Context, chunks []Chunk) error {
	wb := i.db.NewWriteBatch()
	defer wb.Cancel()

	for _, c := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		data, err := json.Marshal(c)
		if err != nil {
			return fmt.Errorf("rag: encode chunk %s: %w", c.ID, err)
		}
		if err := wb.Set([]byte(docPrefix+c.ID), data); err != nil {
			return fmt.Errorf("rag: write chunk %s: %w", c.ID, err)
		}
	}
	if err := wb.Flush(); err != nil {
		return fmt.Errorf("rag: flush chunks: %w", err)
	}
	return nil
}

// Count returns the number of stored chunks.
func (i *Index) Count() (int, error) {
	n := 0
	err := i.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(docPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("rag: count chunks: %w", err)
	}
	return n, nil
}

// Nearest scans every chunk and returns the topK by cosine similarity.
func (i *Index) Nearest(ctx context.Context, query []float32, topK int) ([]Match, error) {
	if topK <= 0 {
		topK = 4
	}

	var matches []Match
	err := i.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(docPrefix)
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			var c Chunk
			if err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, &c)
			}); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			matches = append(matches, Match{Chunk: c, Score: cosineSimilarity(query, c.Embedding)})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("rag: scan index: %w", err)
	}

	sort.SliceStable(matches, func(a, b int) bool { return matches[a].Score > matches[b].Score })
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
