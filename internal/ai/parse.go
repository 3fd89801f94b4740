package ai

import (
	"encoding/json"
	"errors"
	"strings"
	"unicode"

	"github.com/google/uuid"
)

var errNoJSON = errors.New("ai: reply is not JSON")

// stripFence removes a surrounding markdown code fence, with or without a
// language tag.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if nl := strings.IndexByte(s, '\n'); nl >= 0 {
		s = s[nl+1:]
	} else {
		s = strings.TrimLeftFunc(s, unicode.IsLetter)
	}
	s = strings.TrimSpace(s)
	return strings.TrimSpace(strings.TrimSuffix(s, "```"))
}

// ParseStringArray decodes a reply that must be a JSON array. Non-string
// and blank entries are dropped and duplicates removed, keeping first order.
func ParseStringArray(reply string) ([]string, error) {
	body := stripFence(reply)
	if !strings.HasPrefix(body, "[") {
		return nil, errNoJSON
	}
	var raw []any
	if err := json.Unmarshal([]byte(body), &raw); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		s, ok := v.(string)
		if !ok {
			continue
		}
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		key := strings.ToLower(s)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, s)
	}
	if len(out) == 0 {
		return nil, errors.New("ai: empty array")
	}
	return out, nil
}

// FallbackTag derives the single tag used when the model reply is unusable.
func FallbackTag(title string) string {
	fields := strings.Fields(title)
	if len(fields) == 0 {
		return "post"
	}
	return fields[0]
}

// Tags turns a tagging reply into at most max tags, degrading to the title's
// first word.
func Tags(reply, title string, max int) ([]string, bool) {
	tags, err := ParseStringArray(reply)
	if err != nil {
		return []string{FallbackTag(title)}, false
	}
	if len(tags) > max {
		tags = tags[:max]
	}
	return tags, true
}

// Keywords turns an expansion reply into search keywords. The query itself
// is always searched.
func Keywords(reply, query string) ([]string, bool) {
	query = strings.TrimSpace(query)
	words, err := ParseStringArray(reply)
	if err != nil {
		return []string{query}, false
	}
	for _, w := range words {
		if strings.EqualFold(w, query) {
			return words, true
		}
	}
	return append([]string{query}, words...), true
}

// Ranking is the structured reply of the rank prompt.
type Ranking struct {
	RankedIDs []string `json:"rankedIds"`
	Summary   string   `json:"summary"`
}

// ParseRanking decodes a rank reply.
func ParseRanking(reply string) (Ranking, error) {
	body := stripFence(reply)
	if !strings.HasPrefix(body, "{") {
		return Ranking{}, errNoJSON
	}
	var r Ranking
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return Ranking{}, err
	}
	return r, nil
}

// Order reorders ids by the ranking. Ranked ids not in ids are dropped and
// ids the model left out keep their original relative order at the end.
func (r Ranking) Order(ids []uuid.UUID) []uuid.UUID {
	present := make(map[uuid.UUID]bool, len(ids))
	for _, id := range ids {
		present[id] = true
	}

	out := make([]uuid.UUID, 0, len(ids))
	placed := make(map[uuid.UUID]bool, len(ids))
	for _, raw := range r.RankedIDs {
		id, err := uuid.Parse(strings.TrimSpace(raw))
		if err != nil || !present[id] || placed[id] {
			continue
		}
		placed[id] = true
		out = append(out, id)
	}
	for _, id := range ids {
		if !placed[id] {
			out = append(out, id)
		}
	}
	return out
}
