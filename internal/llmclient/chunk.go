package llmclient

import (
	"bytes"

	"github.com/tidwall/gjson"
)

// ChunkKind classifies one upstream stream event.
type ChunkKind int

const (
	// ChunkUnrecognized covers malformed JSON and payloads without a text delta.
	ChunkUnrecognized ChunkKind = iota
	ChunkContent
	ChunkDone
)

// Chunk is the decoded form of one upstream event.
type Chunk struct {
	Kind ChunkKind
	Text string
}

const doneSentinel = "[DONE]"

// DecodeChunk decodes the data of one event. Shape drift never fails: any
// payload without choices[0].delta.content as a non-empty string is
// reported as unrecognized.
func DecodeChunk(data []byte) Chunk {
	data = bytes.TrimSpace(data)
	if string(data) == doneSentinel {
		return Chunk{Kind: ChunkDone}
	}
	if !gjson.ValidBytes(data) {
		return Chunk{Kind: ChunkUnrecognized}
	}
	content := gjson.GetBytes(data, "choices.0.delta.content")
	if content.Type != gjson.String || content.Str == "" {
		return Chunk{Kind: ChunkUnrecognized}
	}
	return Chunk{Kind: ChunkContent, Text: content.Str}
}
