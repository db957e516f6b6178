package ingest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/normalize"
	"github.com/sells-group/leads-cli/internal/store"
)

// conflictStore rejects every create with a uniqueness violation. Lookups
// miss on their first call and answer from the maps afterwards, modeling a
// lead inserted between the primary lookup and the create. Methods outside
// the resolver's reach stay on the embedded nil interface and panic if
// touched.
type conflictStore struct {
	store.Store
	byEmail     map[string]*model.Lead
	byDomainGeo map[string]*model.Lead

	emailCalls     int
	domainGeoCalls int
	updated        *model.Lead
}

func (s *conflictStore) GetOrCreateState(ctx context.Context, name string) (*model.State, error) {
	return &model.State{ID: 10, Name: name}, nil
}

func (s *conflictStore) GetOrCreateCity(ctx context.Context, name string, stateID int64) (*model.City, error) {
	return &model.City{ID: 20, Name: name, StateID: stateID}, nil
}

func (s *conflictStore) GetOrCreateCategory(ctx context.Context, name string) (*model.Category, error) {
	return &model.Category{ID: 1, Name: name}, nil
}

func (s *conflictStore) FindLeadByEmail(ctx context.Context, email string) (*model.Lead, error) {
	s.emailCalls++
	if s.emailCalls == 1 {
		return nil, nil
	}
	return s.byEmail[email], nil
}

func (s *conflictStore) FindLeadByDomainGeo(ctx context.Context, domain string, cityID, stateID int64) (*model.Lead, error) {
	s.domainGeoCalls++
	if s.domainGeoCalls == 1 {
		return nil, nil
	}
	return s.byDomainGeo[domain], nil
}

func (s *conflictStore) CreateLead(ctx context.Context, lead *model.Lead) error {
	return errors.New("constraint failed: UNIQUE constraint failed: leads.email")
}

func (s *conflictStore) UpdateLead(ctx context.Context, lead *model.Lead) error {
	s.updated = lead
	return nil
}

func TestResolveRowCreateConflictFallback(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	sf := &model.SourceFile{ID: 7}

	t.Run("conflict merges into the domain geo match", func(t *testing.T) {
		t.Parallel()
		existing := &model.Lead{ID: 3, BusinessName: "Old", Domain: "acme.com"}
		st := &conflictStore{byDomainGeo: map[string]*model.Lead{"acme.com": existing}}

		n := normalize.Normalized{
			BusinessName: "Acme", Website: "acme.com", Domain: "acme.com",
			City: "Springfield", State: "IL",
		}
		outcome, err := resolveRow(ctx, st, newRefCache(), n, 20, sf)
		require.NoError(t, err)
		assert.Equal(t, OutcomeMerged, outcome)
		assert.Equal(t, 2, st.domainGeoCalls)
		require.NotNil(t, st.updated)
		assert.Equal(t, int64(3), st.updated.ID)
		assert.Equal(t, "Acme", st.updated.BusinessName)
		assert.Equal(t, int64(7), *st.updated.SourceFileID)
	})

	t.Run("conflict falls back to the email match", func(t *testing.T) {
		t.Parallel()
		existing := &model.Lead{ID: 4, BusinessName: "Old", Email: "info@acme.com"}
		st := &conflictStore{byEmail: map[string]*model.Lead{"info@acme.com": existing}}

		n := normalize.Normalized{BusinessName: "Acme", Email: "info@acme.com"}
		outcome, err := resolveRow(ctx, st, newRefCache(), n, 40, sf)
		require.NoError(t, err)
		assert.Equal(t, OutcomeMerged, outcome)
		assert.Equal(t, 2, st.emailCalls)
		require.NotNil(t, st.updated)
		assert.Equal(t, int64(4), st.updated.ID)
	})

	t.Run("conflict with no matching lead is fatal", func(t *testing.T) {
		t.Parallel()
		st := &conflictStore{}

		n := normalize.Normalized{BusinessName: "Acme", Phone: "555-0100"}
		_, err := resolveRow(ctx, st, newRefCache(), n, 20, sf)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "conflicting lead not found")
	})
}

func TestMergeLead(t *testing.T) {
	t.Parallel()

	catA, catB := int64(1), int64(2)
	stateA := int64(10)
	cityA := int64(20)

	t.Run("name follows the latest file", func(t *testing.T) {
		t.Parallel()
		lead := &model.Lead{BusinessName: "Old Name"}
		mergeLead(lead, normalize.Normalized{BusinessName: "New Name"}, 0, nil, nil, nil, 5)
		assert.Equal(t, "New Name", lead.BusinessName)
	})

	t.Run("contact fields fill only when empty", func(t *testing.T) {
		t.Parallel()
		lead := &model.Lead{BusinessName: "Acme", Email: "kept@acme.com", Phone: ""}
		mergeLead(lead, normalize.Normalized{
			BusinessName: "Acme", Email: "new@acme.com", Phone: "555-0100",
		}, 0, nil, nil, nil, 5)
		assert.Equal(t, "kept@acme.com", lead.Email)
		assert.Equal(t, "555-0100", lead.Phone)
	})

	t.Run("geography and category are first-write-wins", func(t *testing.T) {
		t.Parallel()
		lead := &model.Lead{BusinessName: "Acme", CategoryID: &catA}
		mergeLead(lead, normalize.Normalized{BusinessName: "Acme"}, 0, &catB, &stateA, &cityA, 5)
		assert.Equal(t, catA, *lead.CategoryID)
		assert.Equal(t, stateA, *lead.StateID)
		assert.Equal(t, cityA, *lead.CityID)
	})

	t.Run("domain is first-write-wins", func(t *testing.T) {
		t.Parallel()
		lead := &model.Lead{BusinessName: "Acme", Domain: "acme.com"}
		mergeLead(lead, normalize.Normalized{BusinessName: "Acme", Domain: "other.com"}, 0, nil, nil, nil, 5)
		assert.Equal(t, "acme.com", lead.Domain)
	})

	t.Run("score never decreases", func(t *testing.T) {
		t.Parallel()
		lead := &model.Lead{BusinessName: "Acme", QualityScore: 90}
		mergeLead(lead, normalize.Normalized{BusinessName: "Acme"}, 40, nil, nil, nil, 5)
		assert.Equal(t, 90, lead.QualityScore)

		mergeLead(lead, normalize.Normalized{BusinessName: "Acme"}, 100, nil, nil, nil, 5)
		assert.Equal(t, 100, lead.QualityScore)
	})

	t.Run("source file pointer always advances", func(t *testing.T) {
		t.Parallel()
		old := int64(3)
		lead := &model.Lead{BusinessName: "Acme", SourceFileID: &old}
		mergeLead(lead, normalize.Normalized{BusinessName: "Acme"}, 0, nil, nil, nil, 9)
		assert.Equal(t, int64(9), *lead.SourceFileID)
	})
}
