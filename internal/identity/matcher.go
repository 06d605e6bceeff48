package identity

// MatchResult is the outcome of searching a population for a probe vector.
// When Matched is false but Distance is set, the fields describe the best
// (nearest) candidate anyway: "not matched" is distinct from "no candidates
// existed", and the near-miss data is useful for diagnostics.
type MatchResult struct {
	Matched    bool     `json:"matched"`
	UserID     string   `json:"user_id,omitempty"`
	Distance   *float64 `json:"distance,omitempty"`
	Confidence float64  `json:"confidence"`
}

// Matcher decides match/no-match against a calibrated distance tolerance.
// Tolerance is a single global value, the one knob the offline calibrator
// exists to tune.
type Matcher struct {
	Tolerance float64
}

// Match scans the whole population for the record nearest to the probe.
// Ties are broken by iteration order (first encountered wins); the tie-break
// is documented, not semantically meaningful. An empty population returns
// matched=false with no candidate fields and performs no comparisons.
func (m Matcher) Match(probe Vector, population []EnrollmentRecord) MatchResult {
	if len(population) == 0 {
		return MatchResult{Matched: false}
	}

	bestIndex := -1
	bestDistance := 0.0
	for i := range population {
		d := Distance(probe, population[i].Vector)
		if bestIndex == -1 || d < bestDistance {
			bestIndex = i
			bestDistance = d
		}
	}

	best := &population[bestIndex]
	result := MatchResult{
		Distance:   &bestDistance,
		Confidence: Confidence(bestDistance),
	}
	if bestDistance <= m.Tolerance {
		result.Matched = true
		result.UserID = best.UserID
	} else {
		// Surface the near-miss candidate for diagnostics.
		result.UserID = best.UserID
	}
	return result
}

// CheckDuplicate is the pre-registration probe: it returns the user ID of an
// already-enrolled face matching the probe, or ok=false when the population
// holds no match. Records owned by excludeUserID are skipped so that
// re-enrollment of the same account is never flagged as a duplicate.
func (m Matcher) CheckDuplicate(probe Vector, population []EnrollmentRecord, excludeUserID string) (string, bool) {
	filtered := population
	if excludeUserID != "" {
		filtered = make([]EnrollmentRecord, 0, len(population))
		for i := range population {
			if population[i].UserID != excludeUserID {
				filtered = append(filtered, population[i])
			}
		}
	}

	result := m.Match(probe, filtered)
	if !result.Matched {
		return "", false
	}
	return result.UserID, true
}
