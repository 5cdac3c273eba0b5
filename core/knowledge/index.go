// Package knowledge provides the reference-document sets attached to roles.
// Documents are chunked and indexed in memory with bleve; roles receive the
// chunks most relevant to their current task.
package knowledge

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
)

// DefaultTopK is how many chunks are retrieved per query.
const DefaultTopK = 4

type Config struct {
	Chunker ChunkerConfig
	TopK    int
}

// Set is an immutable, indexed collection of reference chunks.
type Set struct {
	name   string
	index  bleve.Index
	chunks map[string]Chunk
	order  []string
	topK   int
}

type indexedChunk struct {
	Source string `json:"source"`
	Text   string `json:"text"`
}

// NewSet chunks docs and builds an in-memory index over them.
func NewSet(name string, docs []Document, cfg Config) (*Set, error) {
	if cfg.TopK <= 0 {
		cfg.TopK = DefaultTopK
	}

	index, err := bleve.NewMemOnly(bleve.NewIndexMapping())
	if err != nil {
		return nil, fmt.Errorf("knowledge %s: create index: %w", name, err)
	}

	s := &Set{
		name:   name,
		index:  index,
		chunks: make(map[string]Chunk),
		topK:   cfg.TopK,
	}

	chunker := NewChunker(cfg.Chunker)
	batch := index.NewBatch()
	for _, doc := range docs {
		for _, chunk := range chunker.Chunk(doc) {
			if err := batch.Index(chunk.ID, indexedChunk{Source: chunk.Source, Text: chunk.Text}); err != nil {
				index.Close()
				return nil, fmt.Errorf("knowledge %s: index chunk %s: %w", name, chunk.ID, err)
			}
			s.chunks[chunk.ID] = chunk
			s.order = append(s.order, chunk.ID)
		}
	}
	if err := index.Batch(batch); err != nil {
		index.Close()
		return nil, fmt.Errorf("knowledge %s: commit index: %w", name, err)
	}

	return s, nil
}

func (s *Set) Name() string {
	return s.name
}

// Len returns the number of indexed chunks.
func (s *Set) Len() int {
	return len(s.order)
}

// Retrieve returns up to k chunks ranked by relevance to query. When nothing
// matches, the leading chunks of the set are returned instead.
func (s *Set) Retrieve(query string, k int) ([]Chunk, error) {
	if k <= 0 {
		k = s.topK
	}
	if len(s.order) == 0 {
		return nil, nil
	}

	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(query), k, 0, false)
	res, err := s.index.Search(req)
	if err != nil {
		return nil, fmt.Errorf("knowledge %s: search: %w", s.name, err)
	}

	out := make([]Chunk, 0, k)
	for _, hit := range res.Hits {
		if chunk, ok := s.chunks[hit.ID]; ok {
			out = append(out, chunk)
		}
	}
	if len(out) == 0 {
		for _, id := range s.order {
			if len(out) == k {
				break
			}
			out = append(out, s.chunks[id])
		}
	}
	return out, nil
}

// Context renders the chunks retrieved for query as a prompt section.
func (s *Set) Context(query string) (string, error) {
	chunks, err := s.Retrieve(query, s.topK)
	if err != nil || len(chunks) == 0 {
		return "", err
	}

	var b strings.Builder
	for _, c := range chunks {
		fmt.Fprintf(&b, "[%s]\n%s\n\n", c.Source, c.Text)
	}
	return strings.TrimSpace(b.String()), nil
}

// Close releases the index.
func (s *Set) Close() error {
	return s.index.Close()
}
