package dedup

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

// fakeIndex is a hand-rolled FormIndex: detection tests need full control over
// which probe returns what.
type fakeIndex struct {
	byHash       map[string][]Candidate
	byDescriptor []Candidate
	byNumber     []Candidate
	hashProbes   int
	scanProbes   int
}

func (f *fakeIndex) FindByContentHash(_ context.Context, contentHash string) ([]Candidate, error) {
	f.hashProbes++
	return f.byHash[contentHash], nil
}

func (f *fakeIndex) FindCandidates(_ context.Context, _ id.JurisdictionID, _ string) ([]Candidate, error) {
	f.scanProbes++
	return f.byDescriptor, nil
}

func (f *fakeIndex) FindApprovedByNumber(_ context.Context, _ string, _ id.JurisdictionID) ([]Candidate, error) {
	return f.byNumber, nil
}

// =============================================================================
// Detector Test Suite
// =============================================================================

type DetectorSuite struct {
	suite.Suite
	index    *fakeIndex
	detector *Service
	ctx      context.Context
}

func TestDetectorSuite(t *testing.T) {
	suite.Run(t, new(DetectorSuite))
}

func (s *DetectorSuite) SetupTest() {
	s.index = &fakeIndex{byHash: make(map[string][]Candidate)}
	s.detector = New(s.index)
	s.ctx = context.Background()
}

func (s *DetectorSuite) submission() Submission {
	return Submission{
		Title:          "Motion for Summary Judgment",
		FormType:       "motion",
		JurisdictionID: id.NewJurisdictionID(),
		ContentHash:    "abc123",
	}
}

func (s *DetectorSuite) TestValidation() {
	sub := s.submission()
	sub.ContentHash = ""
	_, err := s.detector.Detect(s.ctx, sub)
	s.Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *DetectorSuite) TestHashMatchShortCircuits() {
	existing := id.NewFormID()
	s.index.byHash["abc123"] = []Candidate{{ID: existing, Title: "Anything"}}
	// A candidate that would also score on title; it must never be consulted.
	s.index.byDescriptor = []Candidate{{ID: id.NewFormID(), Title: "Motion for Summary Judgment"}}

	result, err := s.detector.Detect(s.ctx, s.submission())
	s.Require().NoError(err)

	s.True(result.IsDuplicate)
	s.Require().Len(result.Matches, 1)
	s.Equal(existing, result.Matches[0].FormID)
	s.Equal(MatchContentHash, result.Matches[0].MatchType)
	s.Equal(100, result.Matches[0].Confidence)
	s.Equal(0, s.index.scanProbes, "similarity scan must not run after a hash hit")
}

func (s *DetectorSuite) TestTitleSimilarity() {
	s.Run("near-identical title recorded above threshold", func() {
		s.SetupTest()
		candidate := id.NewFormID()
		s.index.byDescriptor = []Candidate{{ID: candidate, Title: "Motion for Summary Judgement"}}

		result, err := s.detector.Detect(s.ctx, s.submission())
		s.Require().NoError(err)

		s.Require().Len(result.Matches, 1)
		s.Equal(MatchTitleSimilarity, result.Matches[0].MatchType)
		s.GreaterOrEqual(result.Matches[0].Confidence, 85)
	})

	s.Run("unrelated title ignored", func() {
		s.SetupTest()
		s.index.byDescriptor = []Candidate{{ID: id.NewFormID(), Title: "Petition for Name Change"}}

		result, err := s.detector.Detect(s.ctx, s.submission())
		s.Require().NoError(err)
		s.Empty(result.Matches)
		s.False(result.IsDuplicate)
	})
}

func (s *DetectorSuite) TestFormNumberProbe() {
	s.Run("approved form with same number flags duplicate", func() {
		s.SetupTest()
		existing := id.NewFormID()
		s.index.byNumber = []Candidate{{ID: existing, Title: "MC-030"}}

		sub := s.submission()
		sub.FormNumber = "MC-030"
		result, err := s.detector.Detect(s.ctx, sub)
		s.Require().NoError(err)

		s.True(result.IsDuplicate)
		s.Require().Len(result.Matches, 1)
		s.Equal(MatchFormNumber, result.Matches[0].MatchType)
		s.Equal(95, result.Matches[0].Confidence)
	})

	s.Run("no form number skips the probe", func() {
		s.SetupTest()
		s.index.byNumber = []Candidate{{ID: id.NewFormID(), Title: "MC-030"}}

		result, err := s.detector.Detect(s.ctx, s.submission())
		s.Require().NoError(err)
		s.Empty(result.Matches)
	})
}

func (s *DetectorSuite) TestMergeSortAndTruncate() {
	// Six title candidates at varying similarity plus a form-number hit:
	// the result must be sorted by confidence and capped at five.
	s.index.byDescriptor = []Candidate{
		{ID: id.NewFormID(), Title: "Motion for Summary Judgment"},
		{ID: id.NewFormID(), Title: "Motion for Summary Judgement"},
		{ID: id.NewFormID(), Title: "Motion for Summary Judgments"},
		{ID: id.NewFormID(), Title: "Motion for Summary Judgmen"},
		{ID: id.NewFormID(), Title: "Motion for Summarry Judgment"},
		{ID: id.NewFormID(), Title: "Motion for a Summary Judgment"},
	}
	s.index.byNumber = []Candidate{{ID: id.NewFormID(), Title: "MC-030"}}

	sub := s.submission()
	sub.FormNumber = "MC-030"
	result, err := s.detector.Detect(s.ctx, sub)
	s.Require().NoError(err)

	s.Len(result.Matches, 5)
	for i := 1; i < len(result.Matches); i++ {
		s.GreaterOrEqual(result.Matches[i-1].Confidence, result.Matches[i].Confidence)
	}
	s.True(result.IsDuplicate)
}

func (s *DetectorSuite) TestResubmissionExcludesSelf() {
	self := id.NewFormID()
	s.index.byHash["abc123"] = []Candidate{{ID: self, Title: "Motion for Summary Judgment"}}
	s.index.byDescriptor = []Candidate{{ID: self, Title: "Motion for Summary Judgment"}}

	sub := s.submission()
	sub.ExcludeFormID = self
	result, err := s.detector.Detect(s.ctx, sub)
	s.Require().NoError(err)

	s.False(result.IsDuplicate)
	s.Empty(result.Matches)
}

func (s *DetectorSuite) TestByteIdenticalResubmissionFlagged() {
	// Submitting identical content twice: the second pass sees the first
	// form in the hash index and reports a certain duplicate.
	first := id.NewFormID()
	s.index.byHash["abc123"] = []Candidate{{ID: first, Title: "Motion for Summary Judgment"}}

	result, err := s.detector.Detect(s.ctx, s.submission())
	s.Require().NoError(err)

	s.True(result.IsDuplicate)
	s.Equal(100, result.Matches[0].Confidence)
}
