// Package rules turns free-text scheduling sentences into the typed rule
// payloads the solver consumes. Parsing is deterministic: the same text,
// synonym table and employee snapshot always produce the same result.
package rules

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/rosterly/rosterd/internal/domain"
)

// EmployeeRef is the slice of the employee directory the parser needs for
// name resolution.
type EmployeeRef struct {
	ID        string
	FirstName string
	LastName  string
}

// Candidate is one possible interpretation of an ambiguous sentence.
type Candidate struct {
	Type        domain.RuleType `json:"rule_type"`
	EmployeeID  *string         `json:"employee_id,omitempty"`
	Description string          `json:"description"`
}

// Result is a successful parse.
type Result struct {
	Type       domain.RuleType
	EmployeeID *string
	Payload    domain.RulePayload
	Confidence float64
	Entities   []string
}

// AmbiguousError reports that the sentence admits several interpretations or
// none with enough confidence. Candidates are sorted for determinism.
type AmbiguousError struct {
	Candidates []Candidate
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("ambiguous rule text (%d candidate interpretations)", len(e.Candidates))
}

// Parser holds the synonym table. The zero value is not usable; construct
// with NewParser.
type Parser struct {
	synonyms map[string]domain.Interval
}

// DefaultSynonyms maps colloquial time phrases to windows.
func DefaultSynonyms() map[string]domain.Interval {
	return map[string]domain.Interval{
		"lunch hours":    {Start: 11 * 60, End: 14 * 60},
		"lunch":          {Start: 11 * 60, End: 14 * 60},
		"breakfast":      {Start: 6 * 60, End: 10 * 60},
		"dinner":         {Start: 17 * 60, End: 21 * 60},
		"morning":        {Start: 6 * 60, End: 12 * 60},
		"afternoon":      {Start: 12 * 60, End: 17 * 60},
		"evening":        {Start: 17 * 60, End: 22 * 60},
		"night":          {Start: 22 * 60, End: domain.MinutesPerDay},
		"business hours": {Start: 9 * 60, End: 17 * 60},
	}
}

func NewParser(synonyms map[string]domain.Interval) *Parser {
	if synonyms == nil {
		synonyms = DefaultSynonyms()
	}
	return &Parser{synonyms: synonyms}
}

// ConfidenceFloor is the minimum confidence for a parse to be stored without
// caller confirmation.
const ConfidenceFloor = 0.5

var (
	clockRe   = regexp.MustCompile(`\b(\d{1,2}):(\d{2})\b`)
	ampmRe    = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2}))?\s*(am|pm)\b`)
	numberRe  = regexp.MustCompile(`\b(\d+)\b`)
	betweenRe = regexp.MustCompile(`\b(?:between|from)\b(.+?)\b(?:and|to|until|-)\b(.+)`)
)

var numberWords = map[string]int{
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
	"six": 6, "seven": 7, "eight": 8, "nine": 9, "ten": 10,
	"eleven": 11, "twelve": 12,
}

var weekdayNames = []string{
	"monday", "tuesday", "wednesday", "thursday", "friday", "saturday", "sunday",
}

// Parse classifies the sentence and extracts its entities. employees is a
// snapshot of the active directory, used to resolve names; its order does not
// affect the outcome.
func (p *Parser) Parse(text string, employees []EmployeeRef) (*Result, error) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if lower == "" {
		return nil, domain.Validation("rule text is empty", map[string]string{"text": "required"})
	}

	employee, empEntities, empErr := resolveEmployee(lower, employees)
	if empErr != nil {
		return nil, empErr
	}

	days := extractDays(lower)
	window, windowEntity := p.extractWindow(lower)
	negated := detectNegation(lower)

	scores := classify(lower)
	best, second := topTwo(scores)
	if scores[best] == 0 {
		return nil, &AmbiguousError{Candidates: allCandidates(employee)}
	}
	if second != "" && scores[second] == scores[best] {
		return nil, &AmbiguousError{Candidates: []Candidate{
			candidateFor(best, employee),
			candidateFor(second, employee),
		}}
	}

	result := &Result{
		Type:       best,
		EmployeeID: employeeID(employee),
		Entities:   empEntities,
	}
	if windowEntity != "" {
		result.Entities = append(result.Entities, windowEntity)
	}
	result.Entities = append(result.Entities, days...)
	sort.Strings(result.Entities)

	confidence := 0.4 + 0.2*float64(scores[best])
	if confidence > 0.9 {
		confidence = 0.9
	}

	switch best {
	case domain.RuleAvailability:
		if len(days) == 0 && window == nil {
			return nil, &AmbiguousError{Candidates: []Candidate{candidateFor(best, employee)}}
		}
		result.Payload.Availability = &domain.AvailabilityRule{
			Days:     days,
			Window:   window,
			Negation: negated,
		}
		if employee != nil {
			confidence += 0.1
		}

	case domain.RuleRequirement:
		headcount := extractHeadcount(lower)
		if headcount == 0 || window == nil {
			return nil, &AmbiguousError{Candidates: []Candidate{candidateFor(best, employee)}}
		}
		req := &domain.RequirementRule{Window: *window, MinHeadcount: headcount}
		if q := extractQualification(lower); q != "" {
			req.Qualification = &q
		}
		result.Payload.Requirement = req
		confidence += 0.1

	case domain.RulePreference:
		pref := &domain.PreferenceRule{Days: days}
		if window != nil {
			pref.Windows = []domain.Interval{*window}
		}
		pref.ShiftTypes = extractShiftTypes(lower)
		if len(pref.Days) == 0 && len(pref.Windows) == 0 && len(pref.ShiftTypes) == 0 {
			return nil, &AmbiguousError{Candidates: []Candidate{candidateFor(best, employee)}}
		}
		result.Payload.Preference = pref

	case domain.RuleRestriction:
		restr := extractRestriction(lower)
		if restr == nil {
			return nil, &AmbiguousError{Candidates: []Candidate{candidateFor(best, employee)}}
		}
		result.Payload.Restriction = restr
		confidence += 0.1
	}

	result.Confidence = confidence
	if result.Confidence < ConfidenceFloor {
		return nil, &AmbiguousError{Candidates: []Candidate{candidateFor(best, employee)}}
	}
	return result, nil
}

// resolveEmployee matches a first, last or full name anywhere in the text.
// Several distinct matches make the sentence ambiguous.
func resolveEmployee(lower string, employees []EmployeeRef) (*EmployeeRef, []string, error) {
	type match struct {
		ref  EmployeeRef
		name string
		full bool
	}
	var matches []match
	for _, e := range employees {
		first := strings.ToLower(e.FirstName)
		last := strings.ToLower(e.LastName)
		full := strings.TrimSpace(first + " " + last)
		switch {
		case full != "" && containsWord(lower, full):
			matches = append(matches, match{ref: e, name: full, full: true})
		case first != "" && containsWord(lower, first):
			matches = append(matches, match{ref: e, name: first})
		case last != "" && containsWord(lower, last):
			matches = append(matches, match{ref: e, name: last})
		}
	}
	if len(matches) == 0 {
		return nil, nil, nil
	}
	// A full-name match beats partial matches on the same tokens.
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].full != matches[j].full {
			return matches[i].full
		}
		return matches[i].ref.ID < matches[j].ref.ID
	})
	if matches[0].full || len(matches) == 1 {
		m := matches[0]
		return &m.ref, []string{"employee:" + m.name}, nil
	}

	var candidates []Candidate
	for _, m := range matches {
		id := m.ref.ID
		candidates = append(candidates, Candidate{
			Type:        domain.RuleAvailability,
			EmployeeID:  &id,
			Description: fmt.Sprintf("refers to employee %s %s", m.ref.FirstName, m.ref.LastName),
		})
	}
	sort.Slice(candidates, func(i, j int) bool { return *candidates[i].EmployeeID < *candidates[j].EmployeeID })
	return nil, nil, &AmbiguousError{Candidates: candidates}
}

func containsWord(text, word string) bool {
	idx := 0
	for {
		i := strings.Index(text[idx:], word)
		if i < 0 {
			return false
		}
		start := idx + i
		end := start + len(word)
		beforeOK := start == 0 || !isWordByte(text[start-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		idx = start + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z' || b >= '0' && b <= '9'
}

func extractDays(lower string) []string {
	set := map[string]bool{}
	if strings.Contains(lower, "weekday") {
		for _, d := range weekdayNames[:5] {
			set[d] = true
		}
	}
	if strings.Contains(lower, "weekend") {
		set["saturday"] = true
		set["sunday"] = true
	}
	if strings.Contains(lower, "every day") || strings.Contains(lower, "daily") {
		for _, d := range weekdayNames {
			set[d] = true
		}
	}
	for _, d := range weekdayNames {
		if containsWord(lower, d) || containsWord(lower, d[:3]) {
			set[d] = true
		}
	}

	var days []string
	for _, d := range weekdayNames {
		if set[d] {
			days = append(days, d)
		}
	}
	return days
}

// extractWindow finds the time window the sentence talks about, preferring
// explicit ranges, then directional phrases ("past 5pm", "before 9am"), then
// synonym phrases.
func (p *Parser) extractWindow(lower string) (*domain.Interval, string) {
	if m := betweenRe.FindStringSubmatch(lower); m != nil {
		start, okS := parseClockPhrase(m[1])
		end, okE := parseClockPhrase(m[2])
		if okS && okE && start < end {
			return &domain.Interval{Start: start, End: end}, "window:" + domain.Clock(start).String() + "-" + domain.Clock(end).String()
		}
	}

	for _, phrase := range []string{"past ", "after ", "later than "} {
		if i := strings.Index(lower, phrase); i >= 0 {
			if t, ok := parseClockPhrase(lower[i+len(phrase):]); ok {
				return &domain.Interval{Start: t, End: domain.MinutesPerDay - 1}, "window:after-" + t.String()
			}
		}
	}
	for _, phrase := range []string{"before ", "until ", "earlier than "} {
		if i := strings.Index(lower, phrase); i >= 0 {
			if t, ok := parseClockPhrase(lower[i+len(phrase):]); ok {
				return &domain.Interval{Start: 0, End: t}, "window:before-" + t.String()
			}
		}
	}

	// Longest synonym first so "lunch hours" wins over "lunch".
	phrases := make([]string, 0, len(p.synonyms))
	for phrase := range p.synonyms {
		phrases = append(phrases, phrase)
	}
	sort.Slice(phrases, func(i, j int) bool {
		if len(phrases[i]) != len(phrases[j]) {
			return len(phrases[i]) > len(phrases[j])
		}
		return phrases[i] < phrases[j]
	})
	for _, phrase := range phrases {
		if strings.Contains(lower, phrase) {
			w := p.synonyms[phrase]
			return &w, "window:" + phrase
		}
	}
	return nil, ""
}

// parseClockPhrase reads the first clock time in s, accepting "17:00",
// "5pm" and "5:30pm" forms.
func parseClockPhrase(s string) (domain.Clock, bool) {
	s = strings.TrimSpace(s)
	if m := ampmRe.FindStringSubmatch(s); m != nil {
		h, _ := strconv.Atoi(m[1])
		minute := 0
		if m[2] != "" {
			minute, _ = strconv.Atoi(m[2])
		}
		if h >= 1 && h <= 12 && minute < 60 {
			if m[3] == "pm" && h != 12 {
				h += 12
			}
			if m[3] == "am" && h == 12 {
				h = 0
			}
			return domain.Clock(h*60 + minute), true
		}
	}
	if m := clockRe.FindStringSubmatch(s); m != nil {
		if t, err := domain.ParseClock(m[1] + ":" + m[2]); err == nil {
			return t, true
		}
	}
	return 0, false
}

var negationMarkers = []string{
	"can't", "cannot", "can not", "won't", "not available", "unavailable",
	"never", "no longer", " off", "doesn't work", "does not work",
}

func detectNegation(lower string) bool {
	for _, marker := range negationMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// classify scores each rule type by its trigger phrases. The caller treats a
// tie or an all-zero score as ambiguous.
func classify(lower string) map[domain.RuleType]int {
	scores := map[domain.RuleType]int{}

	for _, phrase := range []string{"prefer", "would rather", "likes to", "favorite"} {
		if strings.Contains(lower, phrase) {
			scores[domain.RulePreference]++
		}
	}
	for _, phrase := range []string{"at least", "need", "minimum of", "no fewer than", "require"} {
		if strings.Contains(lower, phrase) {
			scores[domain.RuleRequirement]++
		}
	}
	for _, phrase := range []string{"no more than", "at most", "maximum", "rest between", "hours rest", "hours of rest", "limit"} {
		if strings.Contains(lower, phrase) {
			scores[domain.RuleRestriction]++
		}
	}
	for _, phrase := range []string{"can't work", "cannot work", "can not work", "not available", "unavailable", "only available", "only works", "needs", "wants", "off"} {
		if strings.Contains(lower, phrase) {
			scores[domain.RuleAvailability]++
		}
	}

	// "needs 3 people" is a requirement despite the availability marker, and
	// "needs Friday off" is availability despite "need".
	if scores[domain.RuleRequirement] > 0 && extractHeadcount(lower) > 0 {
		scores[domain.RuleAvailability] = 0
		scores[domain.RulePreference] = 0
	}
	if strings.Contains(lower, " off") && extractHeadcount(lower) == 0 {
		scores[domain.RuleRequirement] = 0
	}
	if scores[domain.RuleRestriction] > 0 && extractRestriction(lower) != nil {
		scores[domain.RuleAvailability] = 0
		scores[domain.RuleRequirement] = 0
	}
	return scores
}

func topTwo(scores map[domain.RuleType]int) (best, second domain.RuleType) {
	ordered := []domain.RuleType{
		domain.RuleAvailability, domain.RuleRequirement,
		domain.RulePreference, domain.RuleRestriction,
	}
	for _, t := range ordered {
		switch {
		case best == "" || scores[t] > scores[best]:
			second = best
			best = t
		case second == "" || scores[t] > scores[second]:
			second = t
		}
	}
	return best, second
}

// extractHeadcount finds "N people/staff/employees" counts.
func extractHeadcount(lower string) int {
	for _, unit := range []string{"people", "person", "staff", "employees", "workers"} {
		i := strings.Index(lower, unit)
		if i < 0 {
			continue
		}
		prefix := lower[:i]
		if m := numberRe.FindAllString(prefix, -1); len(m) > 0 {
			if n, err := strconv.Atoi(m[len(m)-1]); err == nil && n > 0 {
				return n
			}
		}
		words := strings.Fields(prefix)
		if len(words) > 0 {
			if n, ok := numberWords[words[len(words)-1]]; ok {
				return n
			}
		}
	}
	return 0
}

// extractQualification pulls a trailing "qualified as X" or "with X
// qualification" tag.
func extractQualification(lower string) string {
	for _, marker := range []string{"qualified as ", "with qualification ", "certified as "} {
		if i := strings.Index(lower, marker); i >= 0 {
			rest := strings.Fields(lower[i+len(marker):])
			if len(rest) > 0 {
				return strings.Trim(rest[0], ".,!?")
			}
		}
	}
	return ""
}

func extractShiftTypes(lower string) []domain.ShiftType {
	var types []domain.ShiftType
	for _, st := range []domain.ShiftType{
		domain.ShiftMorning, domain.ShiftEvening, domain.ShiftNight,
		domain.ShiftManagement, domain.ShiftEmergency,
	} {
		if strings.Contains(lower, string(st)) {
			types = append(types, st)
		}
	}
	return types
}

// extractRestriction reads hour caps and rest floors. "no more than 40
// hours" caps the week; "8 hours rest" sets the rest floor.
func extractRestriction(lower string) *domain.RestrictionRule {
	restr := &domain.RestrictionRule{}

	if strings.Contains(lower, "rest") {
		if n := hoursNear(lower, "rest"); n > 0 {
			restr.MinRestHours = &n
		}
	}
	for _, marker := range []string{"no more than", "at most", "maximum of", "maximum"} {
		if i := strings.Index(lower, marker); i >= 0 {
			rest := lower[i+len(marker):]
			if m := numberRe.FindStringSubmatch(rest); m != nil && strings.Contains(rest, "hour") {
				if n, err := strconv.Atoi(m[1]); err == nil && n > 0 {
					restr.MaxHoursPerWeek = &n
					break
				}
			}
		}
	}

	if restr.MaxHoursPerWeek == nil && restr.MinRestHours == nil {
		return nil
	}
	return restr
}

// hoursNear finds the number immediately preceding keyword, as in
// "8 hours rest between shifts".
func hoursNear(lower, keyword string) int {
	i := strings.Index(lower, keyword)
	if i < 0 {
		return 0
	}
	if m := numberRe.FindAllString(lower[:i], -1); len(m) > 0 {
		if n, err := strconv.Atoi(m[len(m)-1]); err == nil {
			return n
		}
	}
	words := strings.Fields(lower[:i])
	for j := len(words) - 1; j >= 0 && j >= len(words)-3; j-- {
		if n, ok := numberWords[words[j]]; ok {
			return n
		}
	}
	return 0
}

func employeeID(e *EmployeeRef) *string {
	if e == nil {
		return nil
	}
	id := e.ID
	return &id
}

func candidateFor(t domain.RuleType, e *EmployeeRef) Candidate {
	c := Candidate{Type: t, EmployeeID: employeeID(e)}
	switch t {
	case domain.RuleAvailability:
		c.Description = "availability restriction"
	case domain.RuleRequirement:
		c.Description = "staffing requirement"
	case domain.RulePreference:
		c.Description = "scheduling preference"
	case domain.RuleRestriction:
		c.Description = "hour or rest limit"
	}
	return c
}

func allCandidates(e *EmployeeRef) []Candidate {
	return []Candidate{
		candidateFor(domain.RuleAvailability, e),
		candidateFor(domain.RuleRequirement, e),
		candidateFor(domain.RulePreference, e),
		candidateFor(domain.RuleRestriction, e),
	}
}
