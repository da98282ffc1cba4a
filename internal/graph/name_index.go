package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
)

// buildNameMapping creates the index mapping for node documents.
func buildNameMapping() *mapping.IndexMappingImpl {
	indexMapping := bleve.NewIndexMapping()

	// Name field - standard analyzer splits paths into segments
	nameMapping := bleve.NewTextFieldMapping()
	nameMapping.Analyzer = "standard"
	nameMapping.Store = true
	nameMapping.Index = true

	// Lowercased name - keyword analyzer for substring (wildcard) matching
	lowerMapping := bleve.NewTextFieldMapping()
	lowerMapping.Analyzer = "keyword"
	lowerMapping.Store = false
	lowerMapping.Index = true

	docMapping := bleve.NewDocumentMapping()
	docMapping.AddFieldMappingsAt("name", nameMapping)
	docMapping.AddFieldMappingsAt("name_lower", lowerMapping)

	indexMapping.DefaultMapping = docMapping
	return indexMapping
}

// buildNameIndex indexes every node name in an in-memory bleve index keyed by node key.
func buildNameIndex(ctx context.Context, nodes map[string]Node) (bleve.Index, error) {
	const batchSize = 1000

	index, err := bleve.NewMemOnly(buildNameMapping())
	if err != nil {
		return nil, fmt.Errorf("failed to create bleve index: %w", err)
	}

	batch := index.NewBatch()
	for key, n := range nodes {
		select {
		case <-ctx.Done():
			index.Close()
			return nil, ctx.Err()
		default:
		}

		doc := map[string]interface{}{
			"name":       n.Name(),
			"name_lower": strings.ToLower(n.Name()),
		}
		if err := batch.Index(key, doc); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to add node %s to batch: %w", key, err)
		}
		if batch.Size() >= batchSize {
			if err := index.Batch(batch); err != nil {
				index.Close()
				return nil, fmt.Errorf("failed to execute batch: %w", err)
			}
			batch = index.NewBatch()
		}
	}
	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			index.Close()
			return nil, fmt.Errorf("failed to execute final batch: %w", err)
		}
	}
	return index, nil
}

// find runs a name search. Callers hold s.mu.
func (s *searcher) find(ctx context.Context, text string, limit int) ([]NodeInfo, error) {
	text = strings.TrimSpace(text)
	if text == "" || s.index == nil {
		return []NodeInfo{}, nil
	}
	if limit <= 0 || limit > DefaultMaxResults {
		limit = DefaultMaxResults
	}

	match := bleve.NewMatchQuery(text)
	match.SetField("name")

	substring := bleve.NewWildcardQuery("*" + escapeWildcard(strings.ToLower(text)) + "*")
	substring.SetField("name_lower")

	req := bleve.NewSearchRequestOptions(bleve.NewDisjunctionQuery([]query.Query{match, substring}...), limit, 0, false)
	result, err := s.index.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("bleve search failed: %w", err)
	}

	out := make([]NodeInfo, 0, len(result.Hits))
	for _, hit := range result.Hits {
		n, ok := s.nodes[hit.ID]
		if !ok {
			continue
		}
		out = append(out, newNodeInfo(n))
	}
	return out, nil
}

func escapeWildcard(s string) string {
	r := strings.NewReplacer(`*`, `\*`, `?`, `\?`)
	return r.Replace(s)
}
