package dedup

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/dedup/metrics"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

const (
	// similarityThreshold is the minimum normalized title similarity recorded
	// as a match.
	similarityThreshold = 0.85

	// duplicateConfidence flags the submission: any match at or above it
	// makes the verdict IsDuplicate.
	duplicateConfidence = 95

	hashConfidence       = 100
	formNumberConfidence = 95

	// maxMatches bounds the match list returned to callers.
	maxMatches = 5

	probeTimeout = 3 * time.Second
)

// FormIndex is the read-side port the detector probes. The forms store
// implements it; each query applies its own status filter.
type FormIndex interface {
	// FindByContentHash returns every stored form with this exact digest.
	FindByContentHash(ctx context.Context, contentHash string) ([]Candidate, error)

	// FindCandidates returns non-rejected forms sharing jurisdiction and type.
	FindCandidates(ctx context.Context, jurisdictionID id.JurisdictionID, formType string) ([]Candidate, error)

	// FindApprovedByNumber returns approved forms with this exact form number
	// in the jurisdiction.
	FindApprovedByNumber(ctx context.Context, formNumber string, jurisdictionID id.JurisdictionID) ([]Candidate, error)
}

// Service runs duplicate detection against the form index.
type Service struct {
	index   FormIndex
	logger  *slog.Logger
	metrics *metrics.Metrics
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(index FormIndex, opts ...Option) *Service {
	s := &Service{index: index, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Detect probes the index in priority order: an exact content-hash hit is a
// certain duplicate and short-circuits the scans; otherwise the title scan
// and the form-number probe run in parallel and their matches are merged,
// sorted by descending confidence, and truncated.
func (s *Service) Detect(ctx context.Context, sub Submission) (*Result, error) {
	if err := sub.validate(); err != nil {
		return nil, err
	}

	start := time.Now()
	defer func() {
		s.metrics.ObserveDetectLatency(time.Since(start))
	}()

	hashHits, err := s.index.FindByContentHash(ctx, sub.ContentHash)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "content hash probe failed")
	}
	if matches := s.hashMatches(sub, hashHits); len(matches) > 0 {
		return s.finish(ctx, sub, matches), nil
	}

	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	var (
		titleMatches  []Match
		numberMatches []Match
	)
	g, probeCtx := errgroup.WithContext(probeCtx)

	g.Go(func() error {
		candidates, err := s.index.FindCandidates(probeCtx, sub.JurisdictionID, sub.FormType)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "title candidate scan failed")
		}
		titleMatches = s.scoreTitles(sub, candidates)
		return nil
	})

	if sub.FormNumber != "" {
		g.Go(func() error {
			hits, err := s.index.FindApprovedByNumber(probeCtx, sub.FormNumber, sub.JurisdictionID)
			if err != nil {
				return dErrors.Wrap(err, dErrors.CodeInternal, "form number probe failed")
			}
			for _, hit := range hits {
				if hit.ID == sub.ExcludeFormID {
					continue
				}
				numberMatches = append(numberMatches, Match{
					FormID:     hit.ID,
					MatchType:  MatchFormNumber,
					Confidence: formNumberConfidence,
				})
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return s.finish(ctx, sub, append(titleMatches, numberMatches...)), nil
}

func (s *Service) hashMatches(sub Submission, hits []Candidate) []Match {
	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		if hit.ID == sub.ExcludeFormID {
			continue
		}
		matches = append(matches, Match{
			FormID:     hit.ID,
			MatchType:  MatchContentHash,
			Confidence: hashConfidence,
		})
	}
	return matches
}

func (s *Service) scoreTitles(sub Submission, candidates []Candidate) []Match {
	matches := make([]Match, 0)
	for _, candidate := range candidates {
		if candidate.ID == sub.ExcludeFormID {
			continue
		}
		ratio := Similarity(sub.Title, candidate.Title)
		if ratio < similarityThreshold {
			continue
		}
		matches = append(matches, Match{
			FormID:     candidate.ID,
			MatchType:  MatchTitleSimilarity,
			Confidence: int(math.Round(ratio * 100)),
		})
	}
	return matches
}

// finish sorts, truncates, flags, and records metrics for the final verdict.
func (s *Service) finish(ctx context.Context, sub Submission, matches []Match) *Result {
	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Confidence != matches[j].Confidence {
			return matches[i].Confidence > matches[j].Confidence
		}
		if matches[i].MatchType != matches[j].MatchType {
			return matches[i].MatchType.rank() < matches[j].MatchType.rank()
		}
		return matches[i].FormID.String() < matches[j].FormID.String()
	})
	if len(matches) > maxMatches {
		matches = matches[:maxMatches]
	}

	result := &Result{Matches: matches}
	for _, m := range matches {
		s.metrics.IncrementMatch(m.MatchType.String())
		if m.Confidence >= duplicateConfidence {
			result.IsDuplicate = true
		}
	}

	if result.IsDuplicate {
		s.metrics.IncrementDuplicateFlagged()
		s.logger.InfoContext(ctx, "duplicate submission detected",
			"title", sub.Title,
			"jurisdiction_id", sub.JurisdictionID.String(),
			"top_match_type", matches[0].MatchType.String(),
			"top_confidence", matches[0].Confidence,
		)
	}
	return result
}
