package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/directory/store"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

// =============================================================================
// Directory Service Test Suite
// =============================================================================

type DirectoryServiceSuite struct {
	suite.Suite
	store   *store.InMemory
	service *Service
	ctx     context.Context
}

func TestDirectoryServiceSuite(t *testing.T) {
	suite.Run(t, new(DirectoryServiceSuite))
}

func (s *DirectoryServiceSuite) SetupTest() {
	s.store = store.NewInMemory()
	s.service = New(s.store)
	s.ctx = requestcontext.WithTime(context.Background(), time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
}

// =============================================================================
// LookupOrCreate Tests
// =============================================================================

func (s *DirectoryServiceSuite) TestLookupOrCreate() {
	s.Run("creates on first use", func() {
		j, err := s.service.LookupOrCreate(s.ctx, "California", "Alameda", "Superior", nil)
		s.Require().NoError(err)
		s.Equal("CALIFORNIA-ALAMEDA-SUPERIOR", j.Code)
		s.False(j.ID.IsNil())
	})

	s.Run("same descriptor resolves to same record", func() {
		first, err := s.service.LookupOrCreate(s.ctx, "Texas", "Travis", "", nil)
		s.Require().NoError(err)

		second, err := s.service.LookupOrCreate(s.ctx, "  texas ", "TRAVIS", "", nil)
		s.Require().NoError(err)
		s.Equal(first.ID, second.ID)
	})

	s.Run("empty state rejected", func() {
		_, err := s.service.LookupOrCreate(s.ctx, "   ", "", "", nil)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeValidation))
	})

	s.Run("missing parent rejected", func() {
		missing := id.NewJurisdictionID()
		_, err := s.service.LookupOrCreate(s.ctx, "Nevada", "Clark", "", &missing)
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("child links to existing parent", func() {
		parent, err := s.service.LookupOrCreate(s.ctx, "Oregon", "", "", nil)
		s.Require().NoError(err)

		child, err := s.service.LookupOrCreate(s.ctx, "Oregon", "Multnomah", "", &parent.ID)
		s.Require().NoError(err)
		s.Require().NotNil(child.ParentID)
		s.Equal(parent.ID, *child.ParentID)

		children, err := s.service.Children(s.ctx, parent.ID)
		s.Require().NoError(err)
		s.Require().Len(children, 1)
		s.Equal(child.ID, children[0].ID)
	})
}

// =============================================================================
// Lookup Tests
// =============================================================================

func (s *DirectoryServiceSuite) TestGet() {
	s.Run("not found", func() {
		_, err := s.service.Get(s.ctx, id.NewJurisdictionID())
		s.Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("found by id and code", func() {
		created, err := s.service.LookupOrCreate(s.ctx, "Washington", "King", "Superior", nil)
		s.Require().NoError(err)

		byID, err := s.service.Get(s.ctx, created.ID)
		s.Require().NoError(err)
		s.Equal(created.Code, byID.Code)

		byCode, err := s.service.GetByCode(s.ctx, "washington-king-superior")
		s.Require().NoError(err)
		s.Equal(created.ID, byCode.ID)
	})
}

func (s *DirectoryServiceSuite) TestList() {
	_, err := s.service.LookupOrCreate(s.ctx, "Utah", "", "", nil)
	s.Require().NoError(err)
	_, err = s.service.LookupOrCreate(s.ctx, "Idaho", "", "", nil)
	s.Require().NoError(err)

	records, err := s.service.List(s.ctx)
	s.Require().NoError(err)
	s.Require().Len(records, 2)
	s.Equal("IDAHO", records[0].Code)
	s.Equal("UTAH", records[1].Code)
}
