package knowledge

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

// Chunk is a retrievable slice of a reference document.
type Chunk struct {
	ID     string `json:"id"`
	Source string `json:"source"`
	Index  int    `json:"index"`
	Text   string `json:"text"`
}

type ChunkerConfig struct {
	// ChunkSize is the target chunk length in bytes
	ChunkSize int

	// Overlap is how many trailing bytes of a chunk are repeated at the start of the next
	Overlap int

	// MinSize drops chunks shorter than this
	MinSize int
}

func DefaultChunkerConfig() ChunkerConfig {
	return ChunkerConfig{
		ChunkSize: 800,
		Overlap:   100,
		MinSize:   40,
	}
}

// Chunker splits text on sentence boundaries into overlapping chunks.
type Chunker struct {
	config ChunkerConfig
}

func NewChunker(config ChunkerConfig) *Chunker {
	d := DefaultChunkerConfig()
	if config.ChunkSize <= 0 {
		config.ChunkSize = d.ChunkSize
	}
	if config.Overlap < 0 || config.Overlap >= config.ChunkSize {
		config.Overlap = 0
	}
	if config.MinSize <= 0 {
		config.MinSize = d.MinSize
	}
	return &Chunker{config: config}
}

// Chunk splits doc into chunks. Text shorter than MinSize yields nothing.
func (c *Chunker) Chunk(doc Document) []Chunk {
	text := collapseSpace(doc.Text)
	if len(text) < c.config.MinSize {
		return nil
	}

	var (
		chunks  []Chunk
		current strings.Builder
	)

	emit := func() {
		content := strings.TrimSpace(current.String())
		current.Reset()
		if len(content) < c.config.MinSize {
			return
		}
		chunks = append(chunks, Chunk{
			ID:     chunkID(doc.Name, len(chunks), content),
			Source: doc.Name,
			Index:  len(chunks),
			Text:   content,
		})
	}

	for _, sentence := range sentences(text) {
		if current.Len() > 0 && current.Len()+len(sentence)+1 > c.config.ChunkSize {
			prev := current.String()
			emit()
			if tail := overlapTail(prev, c.config.Overlap); tail != "" {
				current.WriteString(tail)
			}
		}
		if current.Len() > 0 {
			current.WriteByte(' ')
		}
		current.WriteString(sentence)
	}
	emit()

	return chunks
}

func collapseSpace(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	space := false
	for _, r := range text {
		if unicode.IsSpace(r) {
			if !space {
				b.WriteByte(' ')
			}
			space = true
			continue
		}
		b.WriteRune(r)
		space = false
	}
	return strings.TrimSpace(b.String())
}

// sentences splits on '.', '!' or '?' followed by a space and an upper-case letter.
func sentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	for i, r := range runes {
		if r != '.' && r != '!' && r != '?' {
			continue
		}
		end := i + 1 >= len(runes) ||
			(i+2 < len(runes) && runes[i+1] == ' ' && unicode.IsUpper(runes[i+2]))
		if !end {
			continue
		}
		if s := strings.TrimSpace(string(runes[start : i+1])); s != "" {
			out = append(out, s)
		}
		start = i + 1
	}
	if start < len(runes) {
		if s := strings.TrimSpace(string(runes[start:])); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// overlapTail returns whole trailing words of s totalling at most n bytes.
func overlapTail(s string, n int) string {
	if n <= 0 {
		return ""
	}
	words := strings.Fields(s)
	size := 0
	i := len(words)
	for i > 0 && size+len(words[i-1])+1 <= n {
		size += len(words[i-1]) + 1
		i--
	}
	return strings.Join(words[i:], " ")
}

func chunkID(source string, index int, content string) string {
	sum := sha256.Sum256([]byte(content))
	return fmt.Sprintf("%s#%d-%s", source, index, hex.EncodeToString(sum[:4]))
}
