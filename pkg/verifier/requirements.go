package verifier

import (
	"context"
	"strings"

	"github.com/neikan-bsn/ares/pkg/model"
)

// RequirementsMatchStrategy extracts requirement tags from the task
// description via a keyword/phrase matcher over the configured
// vocabulary, then counts how many are evidenced by an OUTPUT or
// CODE_ARTIFACT item.
type RequirementsMatchStrategy struct{}

func (RequirementsMatchStrategy) Name() string { return "requirements_match" }

func (RequirementsMatchStrategy) Evaluate(ctx context.Context, in Input) model.StrategyDetail {
	tags := ExtractRequirementTags(in.TaskDescription, in.Cfg.RequirementsVocabulary)
	if len(tags) == 0 {
		return model.StrategyDetail{
			Name: "requirements_match", Score: 1.0, Pass: true,
			Factors: map[string]any{"tags": []string{}, "reason": "no requirement tags extracted"},
		}
	}

	haystack := evidenceHaystack(in.Evidence)
	matched := 0
	var matchedTags, unmatchedTags []string
	for _, tag := range tags {
		if containsFold(haystack, tag) {
			matched++
			matchedTags = append(matchedTags, tag)
		} else {
			unmatchedTags = append(unmatchedTags, tag)
		}
	}

	score := float64(matched) / float64(len(tags))
	return model.StrategyDetail{
		Name: "requirements_match", Score: score, Pass: score >= 0.6,
		Factors: map[string]any{
			"tags":          tags,
			"matched_tags":  matchedTags,
			"unmatched_tags": unmatchedTags,
		},
	}
}

// ExtractRequirementTags returns the vocabulary phrases found in
// description (case-insensitively), in vocabulary order, applying a
// longest-match-wins rule: a found phrase that is a substring of a
// longer found phrase is dropped. Only containment between phrases is
// resolved; phrases that merely overlap in description, including
// equal-length ones, are all kept.
func ExtractRequirementTags(description string, vocabulary []string) []string {
	lower := strings.ToLower(description)

	type match struct {
		tag        string
		vocabIndex int
	}
	var candidates []match
	for i, tag := range vocabulary {
		if strings.Contains(lower, strings.ToLower(tag)) {
			candidates = append(candidates, match{tag: tag, vocabIndex: i})
		}
	}

	var kept []match
	for _, c := range candidates {
		subsumed := false
		for j := len(kept) - 1; j >= 0; j-- {
			k := kept[j]
			if isSubPhrase(c.tag, k.tag) {
				subsumed = true
				break
			}
			if isSubPhrase(k.tag, c.tag) {
				// c is strictly longer than an already-kept tag that is
				// contained within it; the longer phrase wins.
				kept = append(kept[:j], kept[j+1:]...)
			}
		}
		if !subsumed {
			kept = append(kept, c)
		}
	}

	out := make([]string, len(kept))
	for i, k := range kept {
		out[i] = k.tag
	}
	return out
}

// isSubPhrase reports whether short is a case-insensitive substring of
// long and strictly shorter (used to resolve overlap ties).
func isSubPhrase(short, long string) bool {
	if len(short) >= len(long) {
		return false
	}
	return strings.Contains(strings.ToLower(long), strings.ToLower(short))
}

func containsFold(haystack, tag string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(tag))
}

// evidenceHaystack concatenates the textual surface of OUTPUT and
// CODE_ARTIFACT evidence (file paths) that a requirement tag could be
// "evidenced by".
func evidenceHaystack(evidence []model.EvidenceItem) string {
	var b strings.Builder
	for _, e := range evidence {
		switch e.Source {
		case model.SourceOutput:
			if p, ok := e.Payload.(*model.OutputPayload); ok {
				for _, f := range p.FilesCreated {
					b.WriteString(f)
					b.WriteByte(' ')
				}
			}
		case model.SourceCodeArtifact:
			if p, ok := e.Payload.(*model.CodeArtifactPayload); ok {
				b.WriteString(p.Path)
				b.WriteByte(' ')
			}
		}
	}
	return b.String()
}
