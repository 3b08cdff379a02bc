package service

import "github.com/CharlyTlelo/abc-exprezo-contratos/model"

// SectionStats summarises one pipeline stage.
type SectionStats struct {
	Section     model.Section `json:"section"`
	Title       string        `json:"title"`
	Total       int           `json:"total"`
	Ready       int           `json:"ready"`
	Percent     int           `json:"percent"`
	Complete    bool          `json:"complete"`
	HasRejected bool          `json:"hasRejected"`
}

// ProgressStats summarises a whole contract.
type ProgressStats struct {
	Sections         []SectionStats `json:"sections"`
	TotalSections    int            `json:"totalSections"`
	SectionsComplete int            `json:"sectionsComplete"`
	TotalDocs        int            `json:"totalDocs"`
	DocsReady        int            `json:"docsReady"`
	Percent          int            `json:"percent"`
	CanApprove       bool           `json:"canApprove"`
}

// SectionComplete reports whether a section has at least one document and
// all of them are ready.
func SectionComplete(docs []model.Document) bool {
	if len(docs) == 0 {
		return false
	}
	for _, d := range docs {
		if !d.Ready {
			return false
		}
	}
	return true
}

// ContractReady reports whether all five pipeline stages are complete.
func ContractReady(sections map[model.Section][]model.Document) bool {
	for _, sec := range model.Sections {
		if !SectionComplete(sections[sec]) {
			return false
		}
	}
	return true
}

// DeriveStatus computes a contract's status from its documents and ledger.
// A single rejection blocks the whole contract. An incomplete contract is
// pending even when every document left in it is approved, so no pipeline
// stage can be skipped. A complete one is approved once every document is.
func DeriveStatus(sections map[model.Section][]model.Document, entries []model.ReviewEntry) model.Status {
	decisions := currentDecisions(entries)

	total, approved := 0, 0
	for _, sec := range model.Sections {
		for _, d := range sections[sec] {
			total++
			switch effectiveDecision(d, decisions) {
			case model.ReviewRejected:
				return model.StatusRejected
			case model.ReviewApproved:
				approved++
			}
		}
	}

	if !ContractReady(sections) {
		return model.StatusPending
	}
	if approved == total {
		return model.StatusApproved
	}
	return model.StatusInReview
}

// Progress computes the per-section and overall counters shown while a
// contract is being assembled.
func Progress(sections map[model.Section][]model.Document, entries []model.ReviewEntry) ProgressStats {
	decisions := currentDecisions(entries)
	stats := ProgressStats{TotalSections: len(model.Sections)}

	for _, sec := range model.Sections {
		docs := sections[sec]
		s := SectionStats{
			Section:  sec,
			Title:    sec.Title(),
			Total:    len(docs),
			Complete: SectionComplete(docs),
		}
		for _, d := range docs {
			if d.Ready {
				s.Ready++
			}
			if effectiveDecision(d, decisions) == model.ReviewRejected {
				s.HasRejected = true
			}
		}
		s.Percent = percent(s.Ready, s.Total)

		stats.Sections = append(stats.Sections, s)
		stats.TotalDocs += s.Total
		stats.DocsReady += s.Ready
		if s.Complete {
			stats.SectionsComplete++
		}
	}

	stats.Percent = percent(stats.DocsReady, stats.TotalDocs)
	stats.CanApprove = stats.SectionsComplete == stats.TotalSections
	return stats
}

func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return part * 100 / total
}

type ledgerDecision struct {
	decision model.Review
	revision int
}

func currentDecisions(entries []model.ReviewEntry) map[string]ledgerDecision {
	m := make(map[string]ledgerDecision, len(entries))
	for _, e := range entries {
		m[e.ID] = ledgerDecision{decision: e.Decision, revision: e.Revision}
	}
	return m
}

// effectiveDecision prefers the document's own flag; otherwise a ledger entry
// counts only if it was made on the document's current revision.
func effectiveDecision(d model.Document, decisions map[string]ledgerDecision) model.Review {
	if d.Review != model.ReviewNone && d.Review != "" {
		return d.Review
	}
	if e, ok := decisions[d.ID]; ok && e.revision == d.Revision {
		return e.decision
	}
	return model.ReviewNone
}
