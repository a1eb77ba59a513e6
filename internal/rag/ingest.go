package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/ossterm/marketbot/pkg/logging"
	"github.com/tmc/langchaingo/textsplitter"
)

const (
	chunkSize    = 500
	chunkOverlap = 100
)

// Document is a source text before chunking.
type Document struct {
	ID     string
	Title  string
	Source string
	Text   string
}

// Ingestor chunks, embeds and stores documents.
type Ingestor struct {
	splitter textsplitter.TextSplitter
	embedder Embedder
	index    *Index
	logger   *logging.Logger
}

func NewIngestor(embedder Embedder, index *Index, logger *logging.Logger) *Ingestor {
	if embedder == nil || index == nil {
		panic("rag: embedder and index are required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Ingestor{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators([]string{"\n\n", "\n", ". ", " ", ""}),
		),
		embedder: embedder,
		index:    index,
		logger:   logger,
	}
}

// Ingest stores every non-empty document and returns the number of chunks written.
func (in *Ingestor) Ingest(ctx context.Context, docs []Document) (int, error) {
	var chunks []Chunk
	var texts []string
	for _, doc := range docs {
		if strings.TrimSpace(doc.Text) == "" {
			continue
		}
		parts, err := in.splitter.SplitText(doc.Text)
		if err != nil {
			return 0, fmt.Errorf("rag: split %s: %w", doc.ID, err)
		}
		for n, part := range parts {
			chunks = append(chunks, Chunk{
				ID:      fmt.Sprintf("%s#%d", doc.ID, n),
				Source:  doc.Source,
				Title:   doc.Title,
				Content: part,
			})
			texts = append(texts, part)
		}
	}
	if len(chunks) == 0 {
		return 0, nil
	}

	vectors, err := in.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, err
	}
	for i := range chunks {
		chunks[i].Embedding = vectors[i]
	}
	if err := in.index.Put(ctx, chunks); err != nil {
		return 0, err
	}
	in.logger.Info("documents ingested", "documents", len(docs), "chunks", len(chunks))
	return len(chunks), nil
}
