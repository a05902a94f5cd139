package ingestion

import (
	"regexp"
	"strings"
)

const (
	DefaultMaxChunkSize = 1000
	DefaultOverlapSize  = 200
)

var (
	sectionBreakRe     = regexp.MustCompile(`\n\s*\n`)
	sentenceBoundaryRe = regexp.MustCompile(`[.!?]+\s+`)
	commaBoundaryRe    = regexp.MustCompile(`,\s*`)
)

// Chunker splits normalized text into overlapping, size-bounded chunks along
// section, sentence, clause and word boundaries, in that order of preference.
type Chunker struct {
	maxChunkSize int
	overlapSize  int
}

func NewChunker(maxChunkSize, overlapSize int) *Chunker {
	if maxChunkSize <= 0 {
		maxChunkSize = DefaultMaxChunkSize
	}
	if overlapSize < 0 || overlapSize >= maxChunkSize {
		overlapSize = DefaultOverlapSize
		if overlapSize >= maxChunkSize {
			overlapSize = maxChunkSize / 5
		}
	}
	return &Chunker{maxChunkSize: maxChunkSize, overlapSize: overlapSize}
}

// Chunk returns ordered, non-empty chunks each at most maxChunkSize runes.
// Whitespace-only input yields nil. Overlap text carried between chunks is
// best-effort context continuity, never a correctness requirement.
func (c *Chunker) Chunk(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	type unit struct {
		text string
		sep  string
	}
	var units []unit
	for _, section := range splitTrimmed(sectionBreakRe, text) {
		if runeLen(section) <= c.maxChunkSize {
			units = append(units, unit{text: section, sep: "\n\n"})
			continue
		}
		// Oversized section: recursively split down to bounded pieces and
		// pack those instead.
		first := true
		for _, piece := range c.splitOversized(section) {
			sep := " "
			if first {
				sep = "\n\n"
				first = false
			}
			units = append(units, unit{text: piece, sep: sep})
		}
	}

	var out []string
	var cur strings.Builder
	flush := func(next string) {
		chunk := strings.TrimSpace(cur.String())
		cur.Reset()
		if chunk != "" {
			out = append(out, chunk)
			// Seed the next chunk with trailing context, unless that would
			// leave no room for the incoming unit.
			if ov := c.takeOverlap(chunk); ov != "" &&
				runeLen(ov)+1+runeLen(next) <= c.maxChunkSize {
				cur.WriteString(ov)
			}
		}
	}

	for _, u := range units {
		if cur.Len() == 0 {
			cur.WriteString(u.text)
			continue
		}
		joined := runeLen(cur.String()) + runeLen(u.sep) + runeLen(u.text)
		if joined <= c.maxChunkSize {
			cur.WriteString(u.sep)
			cur.WriteString(u.text)
			continue
		}
		flush(u.text)
		if cur.Len() > 0 {
			cur.WriteString(" ")
		}
		cur.WriteString(u.text)
	}
	if chunk := strings.TrimSpace(cur.String()); chunk != "" {
		out = append(out, chunk)
	}

	return c.mergeUndersized(out)
}

// splitOversized reduces a section exceeding maxChunkSize to pieces that each
// fit: sentences first, then comma clauses, then words, then a hard rune cut.
func (c *Chunker) splitOversized(section string) []string {
	var out []string
	for _, sentence := range splitAfter(sentenceBoundaryRe, section) {
		if runeLen(sentence) <= c.maxChunkSize {
			out = append(out, sentence)
			continue
		}
		for _, clause := range splitAfter(commaBoundaryRe, sentence) {
			if runeLen(clause) <= c.maxChunkSize {
				out = append(out, clause)
				continue
			}
			out = append(out, c.splitByWords(clause)...)
		}
	}
	return out
}

func (c *Chunker) splitByWords(text string) []string {
	var out []string
	var cur strings.Builder
	for _, w := range strings.Fields(text) {
		if runeLen(w) > c.maxChunkSize {
			if cur.Len() > 0 {
				out = append(out, cur.String())
				cur.Reset()
			}
			out = append(out, hardCut(w, c.maxChunkSize)...)
			continue
		}
		if cur.Len() == 0 {
			cur.WriteString(w)
			continue
		}
		if runeLen(cur.String())+1+runeLen(w) <= c.maxChunkSize {
			cur.WriteString(" ")
			cur.WriteString(w)
			continue
		}
		out = append(out, cur.String())
		cur.Reset()
		cur.WriteString(w)
	}
	if cur.Len() > 0 {
		out = append(out, cur.String())
	}
	return out
}

// takeOverlap returns up to overlapSize trailing runes of chunk, preferring a
// cut at a sentence boundary, then a word boundary, then a hard cut.
func (c *Chunker) takeOverlap(chunk string) string {
	if c.overlapSize <= 0 {
		return ""
	}
	r := []rune(chunk)
	if len(r) <= c.overlapSize {
		return chunk
	}
	tail := string(r[len(r)-c.overlapSize:])
	if loc := sentenceBoundaryRe.FindStringIndex(tail); loc != nil {
		return strings.TrimSpace(tail[loc[1]:])
	}
	if i := strings.IndexAny(tail, " \t\n"); i >= 0 {
		return strings.TrimSpace(tail[i+1:])
	}
	return tail
}

// mergeUndersized concatenates any chunk under ~10% of maxChunkSize with the
// following chunk when the merge still fits.
func (c *Chunker) mergeUndersized(chunks []string) []string {
	if len(chunks) < 2 {
		return chunks
	}
	minSize := c.maxChunkSize / 10
	out := make([]string, 0, len(chunks))
	for i := 0; i < len(chunks); i++ {
		cur := chunks[i]
		for i+1 < len(chunks) && runeLen(cur) < minSize &&
			runeLen(cur)+1+runeLen(chunks[i+1]) <= c.maxChunkSize {
			cur = cur + " " + chunks[i+1]
			i++
		}
		out = append(out, cur)
	}
	return out
}

func runeLen(s string) int {
	return len([]rune(s))
}

func hardCut(s string, size int) []string {
	r := []rune(s)
	var out []string
	for start := 0; start < len(r); start += size {
		end := start + size
		if end > len(r) {
			end = len(r)
		}
		out = append(out, string(r[start:end]))
	}
	return out
}

// splitTrimmed splits on the regexp and drops empty segments.
func splitTrimmed(re *regexp.Regexp, s string) []string {
	var out []string
	for _, part := range re.Split(s, -1) {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// splitAfter splits s keeping each boundary match attached to the preceding
// segment, so rejoining segments with single spaces reproduces the text.
func splitAfter(re *regexp.Regexp, s string) []string {
	locs := re.FindAllStringIndex(s, -1)
	if len(locs) == 0 {
		t := strings.TrimSpace(s)
		if t == "" {
			return nil
		}
		return []string{t}
	}
	var out []string
	prev := 0
	for _, loc := range locs {
		seg := strings.TrimSpace(s[prev:loc[1]])
		if seg != "" {
			out = append(out, seg)
		}
		prev = loc[1]
	}
	if seg := strings.TrimSpace(s[prev:]); seg != "" {
		out = append(out, seg)
	}
	return out
}
