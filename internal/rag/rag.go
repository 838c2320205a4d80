// Package rag fetches research documents that are prepended to a round's
// prompts as opaque context.
package rag

import (
	"context"
	"fmt"
	"strings"
)

// DefaultTopK is the number of documents retrieved per round.
const DefaultTopK = 2

// Document is one retrieved research chunk.
type Document struct {
	Title   string
	Authors string
	Content string
	// Metadata holds any other properties returned by the retriever.
	Metadata map[string]any
}

// Retriever returns the documents most relevant to query.
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) ([]Document, error)
}

// RetrieverFunc adapts a function to the Retriever interface.
type RetrieverFunc func(ctx context.Context, query string, topK int) ([]Document, error)

// Retrieve calls f.
func (f RetrieverFunc) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	return f(ctx, query, topK)
}

// FormatContext renders documents as the text block handed to the decomposer
// and solver. No documents yields an empty string.
func FormatContext(docs []Document) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Based on the following relevant research (top %d most relevant documents):\n\n", len(docs))
	for _, d := range docs {
		title := d.Title
		if title == "" {
			title = "Untitled"
		}
		authors := d.Authors
		if authors == "" {
			authors = "Unknown Authors"
		}
		fmt.Fprintf(&b, "From '%s' by %s:\n%s\n\n", title, authors, d.Content)
	}
	return b.String()
}
