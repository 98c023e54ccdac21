package reconciliation

import (
	"strings"
	"time"
)

// DefaultPrescreenThreshold is the line item count from which prescreening is recommended
const DefaultPrescreenThreshold = 50

// PrescreenPass is the audit record of one ladder pass
type PrescreenPass struct {
	Number    int            `json:"number"`
	Tolerance Tolerance      `json:"tolerance"`
	Count     int            `json:"count"`
	Staged    []PendingMatch `json:"staged"`
	RanAt     time.Time      `json:"ran_at"`
}

// PreviewEntry is the projected number of pairings staged at a tolerance
type PreviewEntry struct {
	Tolerance Tolerance `json:"tolerance"`
	Count     int       `json:"count"`
}

// PreviewLadder counts the candidates each ladder tolerance would accept
func PreviewLadder(candidates []Candidate, ladder ToleranceLadder) []PreviewEntry {
	out := make([]PreviewEntry, len(ladder))
	for i, t := range ladder {
		out[i] = PreviewEntry{Tolerance: t, Count: len(FilterCandidates(candidates, t))}
	}
	return out
}

// prescreenRun tracks ladder progress for the selected payment
type prescreenRun struct {
	ladder ToleranceLadder
	next   int
	passes []PrescreenPass
}

func newPrescreenRun(ladder ToleranceLadder) *prescreenRun {
	return &prescreenRun{ladder: ladder, passes: make([]PrescreenPass, 0)}
}

func (r *prescreenRun) done() bool {
	return r.next >= len(r.ladder)
}

func (r *prescreenRun) record(pass PrescreenPass) PrescreenPass {
	pass.Number = len(r.passes) + 1
	r.passes = append(r.passes, pass)
	return pass
}

// toleranceNote renders the tolerances applied so far, or "" if no pass ran
func (r *prescreenRun) toleranceNote() string {
	if len(r.passes) == 0 {
		return ""
	}
	parts := make([]string, len(r.passes))
	for i, p := range r.passes {
		parts[i] = p.Tolerance.String()
	}
	return "Prescreening tolerances: " + strings.Join(parts, ", ")
}

// PrescreenStatus summarises ladder progress for the selected payment
type PrescreenStatus struct {
	Recommended   bool            `json:"recommended"`
	LineItemCount int             `json:"line_item_count"`
	Ladder        []string        `json:"ladder"`
	NextTolerance *Tolerance      `json:"next_tolerance,omitempty"`
	Passes        []PrescreenPass `json:"passes"`
	Preview       []PreviewEntry  `json:"preview"`
}
