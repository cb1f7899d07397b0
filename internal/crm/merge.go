package crm

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/habitatfuturo/habitat/internal/lead"
)

// MinPhoneMatchLen is the normalized phone length a candidate must exceed
// before it is matched against stored phones.
const MinPhoneMatchLen = 6

// Outcome classifies what an upsert did.
type Outcome int

const (
	// OutcomeSkipped: no match and the candidate had no name or phone.
	OutcomeSkipped Outcome = iota
	// OutcomeUnchanged: a record matched but no field value changed.
	OutcomeUnchanged
	// OutcomeUpdated: a matched record received new values.
	OutcomeUpdated
	// OutcomeCreated: a new record was appended.
	OutcomeCreated
)

func (o Outcome) String() string {
	switch o {
	case OutcomeUnchanged:
		return "unchanged"
	case OutcomeUpdated:
		return "updated"
	case OutcomeCreated:
		return "created"
	default:
		return "skipped"
	}
}

// Changed reports whether the outcome is worth notifying about.
func (o Outcome) Changed() bool {
	return o == OutcomeUpdated || o == OutcomeCreated
}

// Match names how an existing record was identified.
type Match string

const (
	MatchNone    Match = ""
	MatchSession Match = "session"
	MatchPhone   Match = "phone"
)

// MergeResult describes a Merge call.
type MergeResult struct {
	Outcome Outcome
	Match   Match
	// Index is the position of the affected record, -1 when skipped.
	Index  int
	Record Record
}

// Merge applies cand to records on behalf of sessionID and returns the new
// collection. records is modified in place when a match is found.
func Merge(records []Record, cand lead.Candidate, sessionID string, now time.Time) ([]Record, MergeResult) {
	idx, match := resolve(records, cand, sessionID)

	if idx < 0 {
		if !cand.HasIdentity() {
			return records, MergeResult{Outcome: OutcomeSkipped, Index: -1}
		}
		rec := newRecord(cand, sessionID, now)
		records = append(records, rec)
		return records, MergeResult{Outcome: OutcomeCreated, Index: len(records) - 1, Record: rec}
	}

	rec := &records[idx]
	if match == MatchPhone {
		rec.SessionID = sessionID
	}

	changed := false
	vals := cand.Fields()
	for i, p := range rec.fields() {
		if lead.IsUnset(vals[i]) || *p == vals[i] {
			continue
		}
		*p = vals[i]
		changed = true
	}

	outcome := OutcomeUnchanged
	if changed {
		rec.RegisteredAt = now.Format(TimeLayout)
		outcome = OutcomeUpdated
	}
	return records, MergeResult{Outcome: outcome, Match: match, Index: idx, Record: *rec}
}

// resolve finds the record the candidate belongs to: same session first,
// then the first stored phone containing the candidate's phone.
func resolve(records []Record, cand lead.Candidate, sessionID string) (int, Match) {
	if sessionID != "" {
		for i, r := range records {
			if r.SessionID == sessionID {
				return i, MatchSession
			}
		}
	}

	if lead.IsUnset(cand.Phone) {
		return -1, MatchNone
	}
	phone := NormalizePhone(cand.Phone)
	if utf8.RuneCountInString(phone) <= MinPhoneMatchLen {
		return -1, MatchNone
	}
	for i, r := range records {
		if strings.Contains(NormalizePhone(r.Phone), phone) {
			return i, MatchPhone
		}
	}
	return -1, MatchNone
}

// NormalizePhone strips spaces and hyphens.
func NormalizePhone(s string) string {
	return strings.NewReplacer(" ", "", "-", "").Replace(s)
}
