package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
	dErrors "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain-errors"
)

func TestDeriveCode(t *testing.T) {
	tests := []struct {
		name      string
		state     string
		county    string
		courtType string
		want      string
	}{
		{"state only", "California", "", "", "CALIFORNIA"},
		{"state and county", "California", "Alameda", "", "CALIFORNIA-ALAMEDA"},
		{"full descriptor", "California", "Alameda", "Superior", "CALIFORNIA-ALAMEDA-SUPERIOR"},
		{"multi-word parts collapse", "New York", "Kings County", "civil court", "NEW-YORK-KINGS-COUNTY-CIVIL-COURT"},
		{"surrounding whitespace ignored", "  Texas ", " Travis  ", "", "TEXAS-TRAVIS"},
		{"court type without county", "Texas", "", "Probate", "TEXAS-PROBATE"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveCode(tt.state, tt.county, tt.courtType))
		})
	}
}

func TestNewJurisdiction(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	t.Run("derives code and trims parts", func(t *testing.T) {
		j, err := NewJurisdiction(id.NewJurisdictionID(), " California ", "Alameda", "Superior", nil, now)
		require.NoError(t, err)
		assert.Equal(t, "CALIFORNIA-ALAMEDA-SUPERIOR", j.Code)
		assert.Equal(t, "California", j.State)
		assert.Equal(t, now, j.CreatedAt)
	})

	t.Run("rejects empty state", func(t *testing.T) {
		_, err := NewJurisdiction(id.NewJurisdictionID(), "   ", "Alameda", "", nil, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})

	t.Run("rejects oversized parts", func(t *testing.T) {
		long := make([]byte, 65)
		for i := range long {
			long[i] = 'a'
		}
		_, err := NewJurisdiction(id.NewJurisdictionID(), string(long), "", "", nil, now)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvariantViolation))
	})
}
