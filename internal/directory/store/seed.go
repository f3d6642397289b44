package store

import (
	"context"
	"time"

	"github.com/Ghostmonday/Goldleaves-sub001/internal/directory/models"
	id "github.com/Ghostmonday/Goldleaves-sub001/pkg/domain"
)

// SeedBootstrapJurisdictions loads a starter set of directory records so a
// fresh deployment can accept submissions immediately.
func SeedBootstrapJurisdictions(ctx context.Context, s *InMemory) []*models.Jurisdiction {
	now := time.Now()
	descriptors := []struct {
		state     string
		county    string
		courtType string
	}{
		{"California", "", ""},
		{"California", "Alameda", "Superior"},
		{"California", "Los Angeles", "Superior"},
		{"New York", "", ""},
		{"New York", "Kings", "Civil"},
		{"Texas", "", ""},
		{"Texas", "Travis", "District"},
	}

	seeded := make([]*models.Jurisdiction, 0, len(descriptors))
	parents := make(map[string]id.JurisdictionID)
	for _, d := range descriptors {
		var parentID *id.JurisdictionID
		if d.county != "" || d.courtType != "" {
			if pid, ok := parents[models.DeriveCode(d.state, "", "")]; ok {
				parentID = &pid
			}
		}
		j, err := models.NewJurisdiction(id.NewJurisdictionID(), d.state, d.county, d.courtType, parentID, now)
		if err != nil {
			continue
		}
		if err := s.CreateIfCodeAvailable(ctx, j); err != nil {
			continue
		}
		if d.county == "" && d.courtType == "" {
			parents[j.Code] = j.ID
		}
		seeded = append(seeded, j)
	}
	return seeded
}
