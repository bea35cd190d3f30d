package scoring

import (
	"sort"

	"auction-engine/internal/domain"
	"auction-engine/internal/validation"
)

// Selector chooses the winning selection for an auction.
type Selector struct {
	params Params
	merge  bool
}

// NewSelector creates a selector. When merge is true, non-conflicting
// solutions from distinct merge-opted solvers may be combined into one
// selection.
func NewSelector(params Params, merge bool) *Selector {
	return &Selector{params: params, merge: merge}
}

// Select ranks the valid solutions and returns the winner, or nil when
// no solution delivers positive net surplus. The result only depends on
// the set of inputs, never their order.
func (s *Selector) Select(auction *domain.Auction, valid []validation.ValidSolution) *domain.Selection {
	var ranked []*scored
	for i := range valid {
		sc := &scored{ValidSolution: valid[i]}
		sc.score = Score(auction, sc.Solution, s.params)
		if !sc.score.IsPositive() {
			continue
		}
		ranked = append(ranked, sc)
	}
	if len(ranked) == 0 {
		return nil
	}
	sort.Slice(ranked, func(i, j int) bool { return less(ranked[i], ranked[j]) })

	best := ranked[0]
	selection := &domain.Selection{
		AuctionID: auction.ID,
		Parts: []domain.SelectionPart{{
			Solver:   best.Solver,
			Account:  best.Account,
			Solution: best.Solution,
			Score:    best.score,
		}},
		Score: best.score,
	}

	if !s.merge || !best.Merge {
		return selection
	}

	// Greedily append lower-ranked solutions from other merge-opted
	// solvers that do not conflict with anything merged so far. A
	// conflicting candidate is skipped, which degrades gracefully to
	// the single best solution when nothing merges.
	merged := []*scored{best}
	for _, candidate := range ranked[1:] {
		if !candidate.Merge || candidate.Solver == best.Solver {
			continue
		}
		if conflictsWithAny(candidate, merged) {
			continue
		}
		merged = append(merged, candidate)
		selection.Parts = append(selection.Parts, domain.SelectionPart{
			Solver:   candidate.Solver,
			Account:  candidate.Account,
			Solution: candidate.Solution,
			Score:    candidate.score,
		})
		selection.Score = selection.Score.Add(candidate.score)
	}
	return selection
}

// conflictsWithAny reports whether candidate shares orders, just-in-time
// owners, or contradictory clearing prices with any already-merged
// solution. Two solutions quoting different prices for the same token
// cannot settle in one transaction.
func conflictsWithAny(candidate *scored, merged []*scored) bool {
	for _, m := range merged {
		if conflicts(candidate, m) {
			return true
		}
	}
	return false
}

func conflicts(a, b *scored) bool {
	orders := make(map[domain.OrderUID]bool)
	for _, uid := range a.Solution.OrderUIDs() {
		orders[uid] = true
	}
	for _, uid := range b.Solution.OrderUIDs() {
		if orders[uid] {
			return true
		}
	}

	owners := make(map[domain.Address]bool)
	for _, owner := range a.Solution.JITOwners() {
		owners[owner] = true
	}
	for _, owner := range b.Solution.JITOwners() {
		if owners[owner] {
			return true
		}
	}

	for token, pa := range a.Solution.Prices {
		if pb, ok := b.Solution.Prices[token]; ok && !pa.Equal(pb) {
			return true
		}
	}
	return false
}
