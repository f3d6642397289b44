// Package service orchestrates the jurisdiction directory: descriptor
// normalization and lookup-or-create semantics over the canonical store.
package service

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/directory/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/platform/sentinel"
	"github.com/Ghostmonday/Goldleaves-sub001/pkg/requestcontext"
)

// Store persists jurisdiction records. Implementations return
// sentinel.ErrNotFound and sentinel.ErrConflict; the service translates them
// into coded domain errors.
type Store interface {
	CreateIfCodeAvailable(ctx context.Context, j *models.Jurisdiction) error
	FindByID(ctx context.Context, jurisdictionID id.JurisdictionID) (*models.Jurisdiction, error)
	FindByCode(ctx context.Context, code string) (*models.Jurisdiction, error)
	List(ctx context.Context) ([]*models.Jurisdiction, error)
	ListChildren(ctx context.Context, parentID id.JurisdictionID) ([]*models.Jurisdiction, error)
}

// Service is the jurisdiction directory.
type Service struct {
	store  Store
	logger *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{store: store, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// LookupOrCreate resolves a descriptor to its canonical record, creating it on
// first use. Two concurrent callers with the same descriptor both receive the
// committed record; the loser of the insert race re-reads the winner's row.
func (s *Service) LookupOrCreate(ctx context.Context, state, county, courtType string, parentID *id.JurisdictionID) (*models.Jurisdiction, error) {
	code := models.DeriveCode(state, county, courtType)
	if code == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "jurisdiction state is required")
	}

	existing, err := s.store.FindByCode(ctx, code)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to look up jurisdiction")
	}

	if parentID != nil {
		if _, err := s.store.FindByID(ctx, *parentID); err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, dErrors.New(dErrors.CodeNotFound, "parent jurisdiction not found")
			}
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load parent jurisdiction")
		}
	}

	j, err := models.NewJurisdiction(id.NewJurisdictionID(), state, county, courtType, parentID, requestcontext.Now(ctx))
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
			return nil, dErrors.New(dErrors.CodeValidation, err.Error())
		}
		return nil, err
	}

	if err := s.store.CreateIfCodeAvailable(ctx, j); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			// Lost the insert race: the code now exists, return the winner.
			winner, findErr := s.store.FindByCode(ctx, code)
			if findErr != nil {
				return nil, dErrors.Wrap(findErr, dErrors.CodeInternal, "failed to load jurisdiction after insert race")
			}
			return winner, nil
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create jurisdiction")
	}

	s.logger.InfoContext(ctx, "jurisdiction created",
		"jurisdiction_id", j.ID.String(),
		"code", j.Code,
	)
	return j, nil
}

// Get returns a jurisdiction by id.
func (s *Service) Get(ctx context.Context, jurisdictionID id.JurisdictionID) (*models.Jurisdiction, error) {
	if jurisdictionID.IsNil() {
		return nil, dErrors.New(dErrors.CodeValidation, "jurisdiction id is required")
	}
	j, err := s.store.FindByID(ctx, jurisdictionID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "jurisdiction not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load jurisdiction")
	}
	return j, nil
}

// GetByCode returns a jurisdiction by its canonical code. The input is
// normalized before lookup so callers may pass raw descriptor text.
func (s *Service) GetByCode(ctx context.Context, code string) (*models.Jurisdiction, error) {
	normalized := models.DeriveCode(code, "", "")
	if normalized == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "jurisdiction code is required")
	}
	j, err := s.store.FindByCode(ctx, normalized)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "jurisdiction not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load jurisdiction")
	}
	return j, nil
}

// List returns all directory records.
func (s *Service) List(ctx context.Context) ([]*models.Jurisdiction, error) {
	records, err := s.store.List(ctx)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list jurisdictions")
	}
	return records, nil
}

// Children returns the direct children of a jurisdiction.
func (s *Service) Children(ctx context.Context, parentID id.JurisdictionID) ([]*models.Jurisdiction, error) {
	if _, err := s.Get(ctx, parentID); err != nil {
		return nil, err
	}
	children, err := s.store.ListChildren(ctx, parentID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list child jurisdictions")
	}
	return children, nil
}
