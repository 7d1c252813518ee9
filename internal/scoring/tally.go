// Package scoring holds the deterministic scoring rules: trait tallies from
// questionnaire answers, rating-battery averages, the recency-weighted decay
// aggregate, and the context fingerprint. Everything here is pure; persistence
// and classifier calls live in the service layer.
package scoring

import (
	"sort"
	"strings"

	"github.com/talentfold/pulse/internal/model"
)

// DefaultTraits are the trait letters recognized by the tally and by the
// fallback letter extraction.
var DefaultTraits = []string{"D", "I", "S", "C"}

// Qualitative level labels for a trait count or battery average.
const (
	LevelStrong   = "strongly_expressed"
	LevelModerate = "moderately_expressed"
	LevelWeak     = "weakly_expressed"
	LevelNone     = "not_characteristic"
)

// Count thresholds for the qualitative bands.
const (
	strongMin   = 6
	moderateMin = 4
	weakMin     = 2
)

// confusables maps non-Latin characters that are visually identical to a
// recognized trait letter. The mapping is deliberately narrow: only the
// Cyrillic look-alikes the classifier has actually been seen to emit. Do not
// generalize this to whole-alphabet transliteration.
var confusables = map[rune]rune{
	'С': 'C', 'с': 'C', // Cyrillic Es
	'І': 'I', 'і': 'I', // Cyrillic/Ukrainian dotted I
	'Ѕ': 'S', 'ѕ': 'S', // Cyrillic Dze
}

// SignalSource records which precedence tier produced a question's traits.
type SignalSource string

const (
	SourceExplicit   SignalSource = "explicit"   // trait list on the selected choice(s)
	SourceClassifier SignalSource = "classifier" // external classifier label
	SourceFallback   SignalSource = "fallback"   // letter extracted from raw text
	SourceNone       SignalSource = "none"
)

// QuestionSignal is the resolved trait contribution of one answered question.
type QuestionSignal struct {
	QuestionID string       `json:"questionId"`
	Traits     []string     `json:"traits,omitempty"`
	Source     SignalSource `json:"source"`
	Evidence   string       `json:"evidence,omitempty"`
}

// ResolveTraits merges the deterministic and classified readings of one answer
// under the fixed precedence: explicit choice traits win over the classifier
// label, which wins over a best-effort letter extraction from the raw text.
// classifierLabel is the already-normalized label for the question, or empty
// when the classifier produced no signal.
func ResolveTraits(q *model.Question, ans *model.Answer, classifierLabel string) QuestionSignal {
	sig := QuestionSignal{QuestionID: q.ID, Source: SourceNone}

	if explicit := explicitTraits(q, ans.Value); len(explicit) > 0 {
		sig.Traits = explicit
		sig.Source = SourceExplicit
		return sig
	}

	if classifierLabel != "" {
		sig.Traits = []string{classifierLabel}
		sig.Source = SourceClassifier
		sig.Evidence = ans.Value.Text
		return sig
	}

	if ans.Value.Kind == model.ValueText {
		if letter := ExtractLetter(ans.Value.Text); letter != "" {
			sig.Traits = []string{letter}
			sig.Source = SourceFallback
			sig.Evidence = ans.Value.Text
		}
	}
	return sig
}

// explicitTraits collects the trait letters of every selected choice. A single
// answer may encode multiple letters; each distinct letter counts once for the
// question.
func explicitTraits(q *model.Question, value model.AnswerValue) []string {
	var selected []string
	switch value.Kind {
	case model.ValueText:
		selected = []string{value.Text}
	case model.ValueSelections:
		selected = value.Selections
	default:
		return nil
	}

	seen := make(map[string]bool)
	var traits []string
	for _, sel := range selected {
		choice := q.ChoiceByValue(sel)
		if choice == nil {
			continue
		}
		for _, t := range choice.Traits {
			t = strings.ToUpper(strings.TrimSpace(t))
			if t != "" && !seen[t] {
				seen[t] = true
				traits = append(traits, t)
			}
		}
	}
	return traits
}

// NormalizeLabel reduces raw classifier output to a single recognized trait
// letter. Unknown or unparseable output yields "", which callers treat as "no
// signal", never as an error.
func NormalizeLabel(raw string) string {
	return ExtractLetter(raw)
}

// ExtractLetter scans text for the first standalone recognized trait letter,
// accepting the narrow set of visually-confusable look-alikes. Letters embedded
// in longer words do not count.
func ExtractLetter(text string) string {
	for _, token := range strings.FieldsFunc(text, isSeparator) {
		runes := []rune(token)
		if len(runes) != 1 {
			continue
		}
		r := runes[0]
		if mapped, ok := confusables[r]; ok {
			r = mapped
		}
		candidate := strings.ToUpper(string(r))
		for _, t := range DefaultTraits {
			if candidate == t {
				return t
			}
		}
	}
	return ""
}

func isSeparator(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '.', ',', ';', ':', '!', '?', '(', ')', '"', '\'', '-', '/':
		return true
	}
	return false
}

// Tally sums one point per distinct trait per answered question.
func Tally(signals []QuestionSignal) map[string]int {
	totals := make(map[string]int)
	for _, sig := range signals {
		for _, t := range sig.Traits {
			totals[t]++
		}
	}
	return totals
}

// Levels maps each tallied trait to its qualitative band.
func Levels(totals map[string]int) map[string]string {
	levels := make(map[string]string, len(totals))
	for trait, count := range totals {
		levels[trait] = countBand(count)
	}
	return levels
}

func countBand(count int) string {
	switch {
	case count >= strongMin:
		return LevelStrong
	case count >= moderateMin:
		return LevelModerate
	case count >= weakMin:
		return LevelWeak
	default:
		return LevelNone
	}
}

// ProfileHint labels the overall shape of a tally.
type ProfileHint struct {
	Kind   string   `json:"kind"` // "pure", "blended", "inconclusive"
	Traits []string `json:"traits,omitempty"`
}

// Hint applies the profile-hint heuristic: a dominant trait with count >= 6
// strictly above the runner-up is a pure type; top two within one point of each
// other are a blended type naming both; anything else is inconclusive.
// Ties are broken by trait name so the result is deterministic.
func Hint(totals map[string]int) ProfileHint {
	if len(totals) == 0 {
		return ProfileHint{Kind: "inconclusive"}
	}

	type entry struct {
		trait string
		count int
	}
	entries := make([]entry, 0, len(totals))
	for t, c := range totals {
		entries = append(entries, entry{t, c})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].count != entries[j].count {
			return entries[i].count > entries[j].count
		}
		return entries[i].trait < entries[j].trait
	})

	top := entries[0]
	if len(entries) == 1 {
		if top.count >= strongMin {
			return ProfileHint{Kind: "pure", Traits: []string{top.trait}}
		}
		return ProfileHint{Kind: "inconclusive", Traits: []string{top.trait}}
	}

	runnerUp := entries[1]
	if top.count >= strongMin && top.count > runnerUp.count {
		return ProfileHint{Kind: "pure", Traits: []string{top.trait}}
	}
	if top.count-runnerUp.count <= 1 {
		return ProfileHint{Kind: "blended", Traits: []string{top.trait, runnerUp.trait}}
	}
	return ProfileHint{Kind: "inconclusive", Traits: []string{top.trait}}
}
