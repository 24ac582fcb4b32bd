package pipeline

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/chunkscribe/chunkscribe/internal/provider"
)

// Overlap-merge heuristic parameters. Adjacent chunks share ~30s of audio;
// the provider usually transcribes the shared span near-identically, so a
// sentence from the running tail should reappear near the head of the next
// chunk's text.
const (
	mergeWindowSentences = 3
	mergeSimilarity      = 0.8
)

// MergedTranscript is the final output for one recording.
type MergedTranscript struct {
	// Text is the full transcript. For diarized runs, lines keep the
	// "[label]: text" shape with globally unique labels.
	Text string

	// Segments are all diarized segments with timestamps relative to the
	// original recording, in chronological order. Empty for plain runs.
	Segments []provider.Segment

	// Speakers are all distinct labels after remapping. Empty for plain runs.
	Speakers []string
}

// Merge combines per-chunk results, in index order, into one transcript.
// diarized selects between the plain-text overlap merge and the
// label-remapping diarized merge.
//
// Returns ErrAllChunksFailed when no chunk produced text, and
// ErrEmptyTranscript when the combined output is blank.
func Merge(results []ChunkResult, diarized bool) (*MergedTranscript, error) {
	if allFailed(results) {
		return nil, ErrAllChunksFailed
	}

	var merged *MergedTranscript
	if diarized {
		merged = mergeDiarized(results)
	} else {
		merged = mergePlain(results)
	}

	if strings.TrimSpace(merged.Text) == "" {
		return nil, ErrEmptyTranscript
	}
	return merged, nil
}

func allFailed(results []ChunkResult) bool {
	for _, r := range results {
		if !r.Failed {
			return false
		}
	}
	return true
}

// mergePlain merges chunk texts with overlap deduplication: the tail of the
// running text is compared sentence-by-sentence against the head of each new
// chunk, and a sufficiently similar pair marks where the shared audio was
// transcribed twice. Best-effort: when no pair matches, the chunk is appended
// whole on a new line.
func mergePlain(results []ChunkResult) *MergedTranscript {
	var running string
	for _, r := range results {
		text := strings.TrimSpace(r.Text)
		if text == "" {
			continue
		}
		if running == "" {
			running = text
			continue
		}
		if r.Failed {
			// Placeholders carry no shared audio to deduplicate.
			running = running + "\n" + text
			continue
		}
		running = mergeOverlap(running, text)
	}
	return &MergedTranscript{Text: running}
}

// mergeOverlap joins two adjacent chunk texts, dropping the duplicated
// overlap region when it can be located. A matched sentence is kept exactly
// once, from the incoming chunk's rendition.
func mergeOverlap(running, incoming string) string {
	tail := splitSentences(running)
	head := splitSentences(incoming)

	maxK := min(mergeWindowSentences, len(tail))
	maxJ := min(mergeWindowSentences, len(head))

	for k := maxK; k >= 1; k-- {
		for j := 0; j < maxJ; j++ {
			if jaccard(tail[len(tail)-k], head[j]) >= mergeSimilarity {
				kept := append([]string{}, tail[:len(tail)-k]...)
				kept = append(kept, head[j:]...)
				return strings.Join(kept, " ")
			}
		}
	}
	return running + "\n" + incoming
}

// splitSentences splits text on sentence-ending punctuation, keeping the
// delimiter attached. A trailing fragment without punctuation counts as a
// sentence.
func splitSentences(text string) []string {
	var sentences []string
	var b strings.Builder

	flush := func() {
		if s := strings.TrimSpace(b.String()); s != "" {
			sentences = append(sentences, s)
		}
		b.Reset()
	}

	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			flush()
		}
	}
	flush()
	return sentences
}

// jaccard computes token-set Jaccard similarity between two sentences.
// Tokens are lowercased with surrounding punctuation stripped.
func jaccard(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, field := range strings.Fields(strings.ToLower(s)) {
		token := strings.Trim(field, ".,!?;:\"'()[]")
		if token != "" {
			set[token] = struct{}{}
		}
	}
	return set
}

// mergeDiarized merges diarized chunk results. Provider speaker labels are
// only unique within one call, so every label from chunks 1..N-1 is remapped
// to a fresh global label: a reused "SPEAKER_00" in a later chunk is not
// assumed to be the same voice, because reference hints are advisory.
// Chunk 0 keeps its labels verbatim.
func mergeDiarized(results []ChunkResult) *MergedTranscript {
	merged := &MergedTranscript{}
	used := make(map[string]struct{})
	nextNumber := 0

	var parts []string
	for i, r := range results {
		if r.Failed {
			if text := strings.TrimSpace(r.Text); text != "" {
				parts = append(parts, text)
			}
			continue
		}

		mapping := make(map[string]string, len(r.Speakers))
		if i == 0 {
			for _, label := range r.Speakers {
				mapping[label] = label
				used[label] = struct{}{}
				if n, ok := numericSuffix(label); ok && n >= nextNumber {
					nextNumber = n + 1
				}
			}
		} else {
			for _, label := range r.Speakers {
				fresh := freshLabel(label, used, &nextNumber)
				mapping[label] = fresh
				used[fresh] = struct{}{}
			}
		}

		for _, seg := range r.Segments {
			merged.Segments = append(merged.Segments, provider.Segment{
				Speaker:      remap(mapping, seg.Speaker),
				Text:         seg.Text,
				StartSeconds: seg.StartSeconds + r.Spec.StartSeconds,
				EndSeconds:   seg.EndSeconds + r.Spec.StartSeconds,
			})
		}

		for _, label := range r.Speakers {
			merged.Speakers = append(merged.Speakers, mapping[label])
		}

		if text := strings.TrimSpace(rewriteLabels(r.Text, mapping)); text != "" {
			parts = append(parts, text)
		}
	}

	merged.Text = strings.Join(parts, "\n")
	return merged
}

// freshLabel mints a never-before-used label sharing the local label's
// prefix, e.g. SPEAKER_02 when SPEAKER_00 and SPEAKER_01 are taken.
func freshLabel(local string, used map[string]struct{}, nextNumber *int) string {
	prefix := strings.TrimRightFunc(local, isDigit)
	if prefix == "" {
		prefix = "SPEAKER_"
	}
	for {
		candidate := fmt.Sprintf("%s%02d", prefix, *nextNumber)
		*nextNumber++
		if _, taken := used[candidate]; !taken {
			return candidate
		}
	}
}

func remap(mapping map[string]string, label string) string {
	if fresh, ok := mapping[label]; ok {
		return fresh
	}
	return label
}

// rewriteLabels substitutes remapped labels in a chunk's text in one pass,
// matching whole tokens only so a label that is a substring of another is
// untouched. A single pass also keeps a freshly minted label from being
// rewritten again when it collides with another local label.
func rewriteLabels(text string, mapping map[string]string) string {
	locals := make([]string, 0, len(mapping))
	changed := false
	for local, fresh := range mapping {
		locals = append(locals, local)
		if local != fresh {
			changed = true
		}
	}
	if !changed {
		return text
	}

	// Longest label first, so one label being a prefix of another cannot
	// shadow it in the alternation.
	slices.SortFunc(locals, func(a, b string) int { return len(b) - len(a) })
	quoted := make([]string, len(locals))
	for i, local := range locals {
		quoted[i] = regexp.QuoteMeta(local)
	}

	re := regexp.MustCompile(`\b(?:` + strings.Join(quoted, "|") + `)\b`)
	return re.ReplaceAllStringFunc(text, func(match string) string {
		return mapping[match]
	})
}

// numericSuffix parses the trailing digits of a label, e.g. 2 for SPEAKER_02.
func numericSuffix(label string) (int, bool) {
	trimmed := strings.TrimRightFunc(label, isDigit)
	if trimmed == label {
		return 0, false
	}
	n, err := strconv.Atoi(label[len(trimmed):])
	if err != nil {
		return 0, false
	}
	return n, true
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}
