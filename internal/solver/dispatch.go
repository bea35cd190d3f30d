package solver

import (
	"context"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"auction-engine/internal/domain"
	"auction-engine/internal/observability"
)

// Dispatch fans the auction out to every solver concurrently and gathers
// the responses that arrive within the deadline. Solver errors and
// timeouts remove only that solver from the round; responses arriving
// after the deadline are discarded. Submissions are returned sorted by
// solver name so downstream evaluation order is deterministic. metrics
// may be nil.
func Dispatch(ctx context.Context, solvers []Solver, auction *domain.Auction, deadline time.Duration, metrics *observability.Metrics, log zerolog.Logger) []Submission {
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	type result struct {
		submission Submission
		elapsed    time.Duration
		err        error
	}
	results := make(chan result, len(solvers))

	for _, s := range solvers {
		go func(s Solver) {
			started := time.Now()
			solution, err := s.Solve(ctx, auction)
			results <- result{
				submission: Submission{
					Solver:   s.Name(),
					Account:  s.Account(),
					Merge:    s.MergeSolutions(),
					Solution: solution,
				},
				elapsed: time.Since(started),
				err:     err,
			}
			log.Debug().
				Str("solver", s.Name()).
				Int64("auction_id", int64(auction.ID)).
				Dur("elapsed", time.Since(started)).
				Bool("bid", solution != nil).
				Msg("solver responded")
		}(s)
	}

	var submissions []Submission
	for range solvers {
		select {
		case r := <-results:
			if metrics != nil {
				metrics.SolveRequestsTotal.WithLabelValues(r.submission.Solver, solveResult(&r.submission, r.err)).Inc()
				metrics.SolveLatency.WithLabelValues(r.submission.Solver).Observe(r.elapsed.Seconds())
			}
			if r.err != nil {
				// An unreachable solver just sits this round out.
				log.Warn().
					Str("solver", r.submission.Solver).
					Int64("auction_id", int64(auction.ID)).
					Err(r.err).
					Msg("solver unavailable")
				continue
			}
			if r.submission.Solution != nil {
				submissions = append(submissions, r.submission)
			}
		case <-ctx.Done():
			// Deadline: whatever is still outstanding is discarded. The
			// per-solver goroutines unblock via the shared context and
			// drain into the buffered channel.
			sortSubmissions(submissions)
			return submissions
		}
	}

	sortSubmissions(submissions)
	return submissions
}

func sortSubmissions(subs []Submission) {
	sort.Slice(subs, func(i, j int) bool { return subs[i].Solver < subs[j].Solver })
}

func solveResult(sub *Submission, err error) string {
	switch {
	case err != nil:
		return "error"
	case sub.Solution == nil:
		return "declined"
	default:
		return "bid"
	}
}
