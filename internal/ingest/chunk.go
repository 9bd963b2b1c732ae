package ingest

import (
	"strings"

	"github.com/ziadkadry99/docchat/internal/config"
	"github.com/ziadkadry99/docchat/internal/extract"
	"github.com/ziadkadry99/docchat/internal/store"
)

// EstimateTokens gives a rough token count. 1 token ~= 4 characters.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// chunkSegments partitions extracted segments into chunks. Prose segments
// are split at sentence boundaries into windows of roughly
// cfg.TargetTokens, with cfg.OverlapTokens of trailing sentences repeated
// at the start of the next window so a fact spanning a boundary appears
// intact in at least one chunk. Segments carrying a structured table become
// their own chunk and are never merged with prose.
func chunkSegments(segments []extract.Segment, cfg config.ChunkingConfig) []store.Chunk {
	var chunks []store.Chunk
	seq := 0

	emit := func(text string, table *store.Table, loc store.Locator) {
		chunks = append(chunks, store.Chunk{
			Seq:     seq,
			Text:    text,
			Table:   table,
			Locator: loc,
		})
		seq++
	}

	for _, seg := range segments {
		if seg.Table != nil {
			emit(seg.Text, seg.Table, seg.Locator)
			continue
		}

		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if EstimateTokens(text) <= cfg.TargetTokens {
			if EstimateTokens(text) >= cfg.MinTokens {
				emit(text, nil, seg.Locator)
			}
			continue
		}
		for _, part := range splitWithOverlap(text, cfg.TargetTokens, cfg.OverlapTokens) {
			if EstimateTokens(part) >= cfg.MinTokens {
				emit(part, nil, seg.Locator)
			}
		}
	}

	return chunks
}

// splitWithOverlap breaks text into windows of approximately targetTokens,
// carrying overlapTokens of trailing sentences into the next window.
func splitWithOverlap(text string, targetTokens, overlapTokens int) []string {
	sentences := splitSentences(text)

	var result []string
	var current []string
	currentTokens := 0

	flush := func() {
		if len(current) == 0 {
			return
		}
		result = append(result, strings.TrimSpace(strings.Join(current, " ")))

		// Seed the next window with trailing sentences up to the overlap.
		var carry []string
		carryTokens := 0
		for i := len(current) - 1; i >= 0 && carryTokens < overlapTokens; i-- {
			carry = append([]string{current[i]}, carry...)
			carryTokens += EstimateTokens(current[i])
		}
		// A window consisting only of carry would repeat forever.
		if carryTokens >= currentTokens {
			carry = nil
			carryTokens = 0
		}
		current = carry
		currentTokens = carryTokens
	}

	for _, sentence := range sentences {
		tokens := EstimateTokens(sentence)
		if currentTokens+tokens > targetTokens && currentTokens > 0 {
			flush()
		}
		current = append(current, sentence)
		currentTokens += tokens
	}
	if len(current) > 0 {
		result = append(result, strings.TrimSpace(strings.Join(current, " ")))
	}
	return result
}

// splitSentences splits on sentence-ending punctuation and newlines,
// keeping the terminator with its sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		b.WriteRune(r)
		switch r {
		case '.', '!', '?':
			// Sentence ends only when followed by whitespace or EOF.
			if i+1 == len(runes) || runes[i+1] == ' ' || runes[i+1] == '\n' || runes[i+1] == '\t' {
				flush()
			}
		case '\n':
			flush()
		}
	}
	flush()
	return sentences
}
