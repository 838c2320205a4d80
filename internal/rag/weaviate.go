package rag

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/weaviate/weaviate-go-client/v5/weaviate"
	"github.com/weaviate/weaviate-go-client/v5/weaviate/graphql"
)

// DefaultClass is the Weaviate class holding research chunks.
const DefaultClass = "ResearchDocument"

// WeaviateConfig configures a WeaviateRetriever.
type WeaviateConfig struct {
	// URL is the Weaviate endpoint, e.g. http://localhost:8080.
	URL   string
	Class string
}

// WeaviateRetriever runs nearText queries against a Weaviate class with
// title, authors and content properties.
type WeaviateRetriever struct {
	client *weaviate.Client
	class  string
}

// NewWeaviate creates a retriever. It does not contact the server.
func NewWeaviate(cfg WeaviateConfig) (*WeaviateRetriever, error) {
	if cfg.URL == "" {
		return nil, errors.New("weaviate url is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse weaviate url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid weaviate url %q", cfg.URL)
	}
	class := cfg.Class
	if class == "" {
		class = DefaultClass
	}

	client, err := weaviate.NewClient(weaviate.Config{
		Host:   u.Host,
		Scheme: u.Scheme,
	})
	if err != nil {
		return nil, fmt.Errorf("create weaviate client: %w", err)
	}
	return &WeaviateRetriever{client: client, class: class}, nil
}

// Retrieve implements Retriever.
func (r *WeaviateRetriever) Retrieve(ctx context.Context, query string, topK int) ([]Document, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	nearText := r.client.GraphQL().NearTextArgBuilder().
		WithConcepts([]string{query})

	result, err := r.client.GraphQL().Get().
		WithClassName(r.class).
		WithFields(
			graphql.Field{Name: "title"},
			graphql.Field{Name: "authors"},
			graphql.Field{Name: "content"},
			graphql.Field{Name: "_additional { distance }"},
		).
		WithNearText(nearText).
		WithLimit(topK).
		Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("semantic search: %w", err)
	}
	if len(result.Errors) > 0 {
		return nil, fmt.Errorf("search error: %s", result.Errors[0].Message)
	}

	data, ok := result.Data["Get"].(map[string]interface{})
	if !ok {
		return nil, nil
	}
	objects, _ := data[r.class].([]interface{})
	return parseDocuments(objects), nil
}

func parseDocuments(objects []interface{}) []Document {
	docs := make([]Document, 0, len(objects))
	for _, obj := range objects {
		m, ok := obj.(map[string]interface{})
		if !ok {
			continue
		}
		doc := Document{
			Title:    getString(m, "title"),
			Authors:  getString(m, "authors"),
			Content:  getString(m, "content"),
			Metadata: map[string]any{},
		}
		if extra, ok := m["_additional"].(map[string]interface{}); ok {
			if d, ok := extra["distance"].(float64); ok {
				doc.Metadata["distance"] = d
			}
		}
		docs = append(docs, doc)
	}
	return docs
}

func getString(m map[string]interface{}, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}
