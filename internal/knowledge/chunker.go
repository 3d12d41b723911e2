package knowledge

import "strings"

// Chunk 表示分块后的文本片段
type Chunk struct {
	Index int
	Text  string
}

// Chunker 固定窗口+重叠的文本分块器
type Chunker struct {
	chunkSize    int
	chunkOverlap int
}

// NewChunker 创建分块器，非法参数回退到安全值
func NewChunker(chunkSize, overlap int) *Chunker {
	if chunkSize <= 0 {
		chunkSize = 1200
	}
	if overlap < 0 {
		overlap = 0
	}
	// overlap必须小于chunkSize，否则游标无法前进
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Chunker{
		chunkSize:    chunkSize,
		chunkOverlap: overlap,
	}
}

// Split 将文本切分为有序的重叠窗口，空白窗口被丢弃
func (c *Chunker) Split(text string) []Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := c.chunkSize - c.chunkOverlap

	var chunks []Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.chunkSize
		if end > len(runes) {
			end = len(runes)
		}

		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			chunks = append(chunks, Chunk{
				Index: len(chunks),
				Text:  window,
			})
		}

		if end == len(runes) {
			break
		}
	}

	return chunks
}
