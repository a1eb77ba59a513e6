package rag

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

const answerSystem = "Answer the question based as much as possible on the following context:\n\n%s"

// ErrEmptyIndex is returned when there is nothing to retrieve from.
var ErrEmptyIndex = errors.New("rag: index is empty")

// Asker completes one system/user exchange.
type Asker interface {
	Ask(ctx context.Context, system, user string) (string, error)
}

// Retriever answers questions grounded on the closest indexed chunks.
type Retriever struct {
	embedder Embedder
	index    *Index
	asker    Asker
	topK     int
}

func NewRetriever(embedder Embedder, index *Index, asker Asker, topK int) *Retriever {
	if embedder == nil || index == nil || asker == nil {
		panic("rag: embedder, index and asker are required")
	}
	if topK <= 0 {
		topK = 4
	}
	return &Retriever{embedder: embedder, index: index, asker: asker, topK: topK}
}

func (r *Retriever) Retrieve(ctx context.Context, query string) (string, error) {
	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return "", err
	}
	if len(vectors) == 0 {
		return "", errors.New("rag: no query embedding")
	}

	matches, err := r.index.Nearest(ctx, vectors[0], r.topK)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", ErrEmptyIndex
	}

	parts := make([]string, 0, len(matches))
	for _, m := range matches {
		parts = append(parts, m.Content)
	}
	return r.asker.Ask(ctx, fmt.Sprintf(answerSystem, strings.Join(parts, "\n\n")), query)
}
