package reconciliation

// CandidatePool is the set of open line items and expectations eligible for automatic pairing
type CandidatePool struct {
	LineItems    []*PaymentLineItem
	Expectations []*Expectation
}

// Candidate is a potential pairing found by the plan reference join
type Candidate struct {
	LineItem    *PaymentLineItem
	Expectation *Expectation
	Variance    Variance
}

// FindCandidates joins line items to expectations on the trimmed plan reference.
// Line items are visited in collection order and take the first unclaimed expectation
// sharing their reference. Blank references and expectations with a non-positive
// amount never take part. No tolerance filter is applied.
func FindCandidates(pool CandidatePool) []Candidate {
	byKey := make(map[string][]*Expectation)
	for _, exp := range pool.Expectations {
		key := exp.JoinKey()
		if key == "" || !exp.HasUsableAmount() {
			continue
		}
		byKey[key] = append(byKey[key], exp)
	}

	// Claims only happen in this loop and always take the head of the list,
	// so a per-key cursor is the first unclaimed expectation.
	cursor := make(map[string]int, len(byKey))
	candidates := make([]Candidate, 0)
	for _, li := range pool.LineItems {
		key := li.JoinKey()
		if key == "" {
			continue
		}
		exps := byKey[key]
		next := cursor[key]
		if next >= len(exps) {
			continue
		}
		exp := exps[next]
		cursor[key] = next + 1
		candidates = append(candidates, Candidate{
			LineItem:    li,
			Expectation: exp,
			Variance:    Evaluate(li.Amount, exp.ExpectedAmount, InfiniteTolerance()),
		})
	}
	return candidates
}

// FilterCandidates keeps the candidates whose variance percentage is within tolerance
func FilterCandidates(candidates []Candidate, tolerance Tolerance) []Candidate {
	out := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if tolerance.Allows(c.Variance.Percentage) {
			out = append(out, c)
		}
	}
	return out
}

// DataQualityReport counts structurally valid but suspect records in a candidate pool
type DataQualityReport struct {
	NonPositiveExpectations    int `json:"non_positive_expectations"`
	BlankReferenceLineItems    int `json:"blank_reference_line_items"`
	BlankReferenceExpectations int `json:"blank_reference_expectations"`
}

// HasIssues returns true if any signal is raised
func (r DataQualityReport) HasIssues() bool {
	return r.NonPositiveExpectations > 0 || r.BlankReferenceLineItems > 0 || r.BlankReferenceExpectations > 0
}

// AssessDataQuality reports the records that automatic pairing will never consider
func AssessDataQuality(pool CandidatePool) DataQualityReport {
	var r DataQualityReport
	for _, li := range pool.LineItems {
		if li.JoinKey() == "" {
			r.BlankReferenceLineItems++
		}
	}
	for _, exp := range pool.Expectations {
		if !exp.HasUsableAmount() {
			r.NonPositiveExpectations++
		}
		if exp.JoinKey() == "" {
			r.BlankReferenceExpectations++
		}
	}
	return r
}

// AutoMatchResult is the outcome of a single auto-match pass
type AutoMatchResult struct {
	Tolerance   Tolerance         `json:"tolerance"`
	Staged      []PendingMatch    `json:"staged"`
	Candidates  int               `json:"candidates"`
	Skipped     int               `json:"skipped"`
	DataQuality DataQualityReport `json:"data_quality"`
}
