//go:build integration

package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	dirmodels "github.com/Ghostmonday/Goldleaves-sub001/internal/directory/models"
	dirstore "github.com/Ghostmonday/Goldleaves-sub001/internal/directory/store"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/forms/models"
	"github.com/Ghostmonday/Goldleaves-sub001/internal/forms/store"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/testutil/containers"
)

var pgFormsTime = time.Date(2025, 7, 1, 9, 0, 0, 0, time.UTC)

type PostgresFormsSuite struct {
	suite.Suite
	pg           *containers.PostgresContainer
	store        *store.Postgres
	jurisdiction id.JurisdictionID
}

func TestPostgresFormsSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresFormsSuite))
}

func (s *PostgresFormsSuite) SetupSuite() {
	s.pg = containers.GetManager().GetPostgres(s.T())
	s.store = store.NewPostgres(s.pg.DB)
}

func (s *PostgresFormsSuite) SetupTest() {
	ctx := context.Background()
	s.Require().NoError(s.pg.TruncateTables(ctx, "form_feedback", "forms", "jurisdictions"))

	j, err := dirmodels.NewJurisdiction(id.NewJurisdictionID(), "California", "Alameda", "Superior", nil, pgFormsTime)
	s.Require().NoError(err)
	s.Require().NoError(dirstore.NewPostgres(s.pg.DB).CreateIfCodeAvailable(ctx, j))
	s.jurisdiction = j.ID
}

func (s *PostgresFormsSuite) draft(title string) models.Draft {
	return models.Draft{
		Title:          title,
		FormNumber:     "NC-100",
		FormType:       models.TypePetition,
		JurisdictionID: s.jurisdiction,
		PageCount:      3,
		Fields: []models.FormField{
			{Name: "petitioner_name", Label: "Petitioner full name", FieldType: models.FieldText, Required: true},
			{Name: "case_number", Label: "Case number", FieldType: models.FieldText, Required: false},
		},
	}
}

func (s *PostgresFormsSuite) newForm(title, hash string, at time.Time) *models.Form {
	form, err := models.NewForm(id.NewFormID(), id.NewContributorID(), s.draft(title), hash, "pg://"+title, at)
	s.Require().NoError(err)
	return form
}

func (s *PostgresFormsSuite) TestCreateAndFindRoundTrip() {
	ctx := context.Background()
	form := s.newForm("Name Change Petition", "hash-roundtrip", pgFormsTime)

	s.Require().NoError(s.store.Create(ctx, form))

	got, err := s.store.FindByID(ctx, form.ID)
	s.Require().NoError(err)
	s.Equal(form.Title, got.Title)
	s.Equal(models.StatusPending, got.Status)
	s.Equal(form.ContributorID, got.ContributorID)
	s.Equal(s.jurisdiction, got.JurisdictionID)
	s.Equal("hash-roundtrip", got.ContentHash)
	s.Equal(1, got.Version)
	s.Require().Len(got.Fields, 2)
	s.Equal("petitioner_name", got.Fields[0].Name)
	s.True(got.Fields[0].Required)
	s.Equal("case_number", got.Fields[1].Name)
	s.WithinDuration(form.CreatedAt, got.CreatedAt, time.Second)
}

func (s *PostgresFormsSuite) TestCreateConflict() {
	ctx := context.Background()
	form := s.newForm("Name Change Petition", "hash-conflict", pgFormsTime)

	s.Require().NoError(s.store.Create(ctx, form))
	s.ErrorIs(s.store.Create(ctx, form), sentinel.ErrConflict)
}

func (s *PostgresFormsSuite) TestFindMissing() {
	_, err := s.store.FindByID(context.Background(), id.NewFormID())
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresFormsSuite) TestExists() {
	ctx := context.Background()
	form := s.newForm("Name Change Petition", "hash-exists", pgFormsTime)
	s.Require().NoError(s.store.Create(ctx, form))

	ok, err := s.store.Exists(ctx, form.ID)
	s.Require().NoError(err)
	s.True(ok)

	ok, err = s.store.Exists(ctx, id.NewFormID())
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PostgresFormsSuite) TestExecutePersistsMutation() {
	ctx := context.Background()
	form := s.newForm("Name Change Petition", "hash-execute", pgFormsTime)
	s.Require().NoError(s.store.Create(ctx, form))

	reviewer := id.NewReviewerID()
	updated, err := s.store.Execute(ctx, form.ID,
		func(f *models.Form) error { return f.CanReview() },
		func(f *models.Form) error {
			f.ApplyClaim(reviewer, pgFormsTime.Add(time.Hour))
			f.ApplyApproval(models.ReviewChecklist{ContentVerified: true, FieldsValidated: true}, nil, pgFormsTime.Add(time.Hour))
			return nil
		})
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, updated.Status)
	s.True(updated.IsPublic)

	got, err := s.store.FindByID(ctx, form.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusApproved, got.Status)
	s.True(got.IsPublic)
	s.Require().NotNil(got.ReviewChecklist)
	s.True(got.ReviewChecklist.ContentVerified)
}

func (s *PostgresFormsSuite) TestExecuteValidateFailureKeepsRow() {
	ctx := context.Background()
	form := s.newForm("Name Change Petition", "hash-validate", pgFormsTime)
	s.Require().NoError(s.store.Create(ctx, form))

	_, err := s.store.Execute(ctx, form.ID,
		func(*models.Form) error { return sentinel.ErrInvalidState },
		func(f *models.Form) error {
			f.ApplyClaim(id.NewReviewerID(), pgFormsTime)
			return nil
		})
	s.ErrorIs(err, sentinel.ErrInvalidState)

	got, err := s.store.FindByID(ctx, form.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusPending, got.Status)
	s.True(got.ReviewerID.IsNil())
}

func (s *PostgresFormsSuite) TestExecuteMissing() {
	_, err := s.store.Execute(context.Background(), id.NewFormID(),
		func(*models.Form) error { return nil },
		func(*models.Form) error { return nil })
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresFormsSuite) TestListFiltersAndOrders() {
	ctx := context.Background()
	older := s.newForm("Motion to Continue", "hash-older", pgFormsTime)
	newer := s.newForm("Notice of Hearing", "hash-newer", pgFormsTime.Add(2*time.Hour))
	s.Require().NoError(s.store.Create(ctx, older))
	s.Require().NoError(s.store.Create(ctx, newer))

	_, err := s.store.Execute(ctx, older.ID,
		func(*models.Form) error { return nil },
		func(f *models.Form) error {
			f.ApplyClaim(id.NewReviewerID(), pgFormsTime.Add(time.Hour))
			f.ApplyApproval(models.ReviewChecklist{ContentVerified: true}, nil, pgFormsTime.Add(time.Hour))
			return nil
		})
	s.Require().NoError(err)

	all, err := s.store.List(ctx, models.ListFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal(newer.ID, all[0].ID, "newest first")

	approved := models.StatusApproved
	byStatus, err := s.store.List(ctx, models.ListFilter{Status: &approved})
	s.Require().NoError(err)
	s.Require().Len(byStatus, 1)
	s.Equal(older.ID, byStatus[0].ID)

	public, err := s.store.List(ctx, models.ListFilter{PublicOnly: true})
	s.Require().NoError(err)
	s.Require().Len(public, 1)
	s.Equal(older.ID, public[0].ID)

	paged, err := s.store.List(ctx, models.ListFilter{Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Require().Len(paged, 1)
	s.Equal(older.ID, paged[0].ID)
}

func (s *PostgresFormsSuite) TestIncrementUsage() {
	ctx := context.Background()
	form := s.newForm("Name Change Petition", "hash-usage", pgFormsTime)
	s.Require().NoError(s.store.Create(ctx, form))

	s.Require().NoError(s.store.IncrementUsage(ctx, form.ID, models.UsageView))
	s.Require().NoError(s.store.IncrementUsage(ctx, form.ID, models.UsageView))
	s.Require().NoError(s.store.IncrementUsage(ctx, form.ID, models.UsageDownload))

	got, err := s.store.FindByID(ctx, form.ID)
	s.Require().NoError(err)
	s.EqualValues(2, got.ViewCount)
	s.EqualValues(1, got.DownloadCount)

	s.ErrorIs(s.store.IncrementUsage(ctx, id.NewFormID(), models.UsageView), sentinel.ErrNotFound)
}

func (s *PostgresFormsSuite) TestDuplicateIndexQueries() {
	ctx := context.Background()
	a := s.newForm("Name Change Petition", "hash-shared", pgFormsTime)
	b := s.newForm("Petition for Change of Name", "hash-shared", pgFormsTime.Add(time.Minute))
	s.Require().NoError(s.store.Create(ctx, a))
	s.Require().NoError(s.store.Create(ctx, b))

	byHash, err := s.store.FindByContentHash(ctx, "hash-shared")
	s.Require().NoError(err)
	s.Len(byHash, 2)

	byHash, err = s.store.FindByContentHash(ctx, "hash-elsewhere")
	s.Require().NoError(err)
	s.Empty(byHash)

	candidates, err := s.store.FindCandidates(ctx, s.jurisdiction, models.TypePetition.String())
	s.Require().NoError(err)
	s.Len(candidates, 2)

	// Rejected forms drop out of the candidate pool.
	_, err = s.store.Execute(ctx, b.ID,
		func(*models.Form) error { return nil },
		func(f *models.Form) error {
			f.ApplyClaim(id.NewReviewerID(), pgFormsTime.Add(time.Hour))
			f.ApplyRejection(models.ReviewChecklist{}, nil, pgFormsTime.Add(time.Hour))
			return nil
		})
	s.Require().NoError(err)

	candidates, err = s.store.FindCandidates(ctx, s.jurisdiction, models.TypePetition.String())
	s.Require().NoError(err)
	s.Require().Len(candidates, 1)
	s.Equal(a.ID, candidates[0].ID)
}

func (s *PostgresFormsSuite) TestFindApprovedByNumber() {
	ctx := context.Background()
	form := s.newForm("Name Change Petition", "hash-number", pgFormsTime)
	s.Require().NoError(s.store.Create(ctx, form))

	// Pending forms do not match; only approved ones anchor a number claim.
	matches, err := s.store.FindApprovedByNumber(ctx, "NC-100", s.jurisdiction)
	s.Require().NoError(err)
	s.Empty(matches)

	_, err = s.store.Execute(ctx, form.ID,
		func(*models.Form) error { return nil },
		func(f *models.Form) error {
			f.ApplyClaim(id.NewReviewerID(), pgFormsTime.Add(time.Hour))
			f.ApplyApproval(models.ReviewChecklist{ContentVerified: true}, nil, pgFormsTime.Add(time.Hour))
			return nil
		})
	s.Require().NoError(err)

	matches, err = s.store.FindApprovedByNumber(ctx, "NC-100", s.jurisdiction)
	s.Require().NoError(err)
	s.Require().Len(matches, 1)
	s.Equal(form.ID, matches[0].ID)
}
