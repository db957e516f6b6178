package ingest

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leads-cli/internal/model"
	"github.com/sells-group/leads-cli/internal/normalize"
	"github.com/sells-group/leads-cli/internal/store"
)

// Outcome classifies what the resolver did with one row.
type Outcome int

const (
	OutcomeCreated Outcome = iota
	OutcomeMerged
)

// refCache memoizes reference get-or-creates within one file pass to avoid
// a round trip per row for the common case of one geography per file.
type refCache struct {
	states     map[string]int64
	cities     map[cityKey]int64
	categories map[string]int64
}

type cityKey struct {
	name    string
	stateID int64
}

func newRefCache() *refCache {
	return &refCache{
		states:     make(map[string]int64),
		cities:     make(map[cityKey]int64),
		categories: make(map[string]int64),
	}
}

func (c *refCache) state(ctx context.Context, st store.Store, name string) (int64, error) {
	if id, ok := c.states[name]; ok {
		return id, nil
	}
	s, err := st.GetOrCreateState(ctx, name)
	if err != nil {
		return 0, err
	}
	c.states[name] = s.ID
	return s.ID, nil
}

func (c *refCache) city(ctx context.Context, st store.Store, name string, stateID int64) (int64, error) {
	key := cityKey{name: name, stateID: stateID}
	if id, ok := c.cities[key]; ok {
		return id, nil
	}
	ct, err := st.GetOrCreateCity(ctx, name, stateID)
	if err != nil {
		return 0, err
	}
	c.cities[key] = ct.ID
	return ct.ID, nil
}

func (c *refCache) category(ctx context.Context, st store.Store, name string) (int64, error) {
	if id, ok := c.categories[name]; ok {
		return id, nil
	}
	cat, err := st.GetOrCreateCategory(ctx, name)
	if err != nil {
		return 0, err
	}
	c.categories[name] = cat.ID
	return cat.ID, nil
}

// resolveRow upserts one normalized row against the store. Identity matching
// is layered: case-insensitive email first, then (domain, city, state), then
// create. A create rejected by a uniqueness constraint falls back to a second
// lookup pass and merges into the conflicting record.
func resolveRow(ctx context.Context, st store.Store, refs *refCache, n normalize.Normalized, score int, sf *model.SourceFile) (Outcome, error) {
	// Reference rows are find-or-created eagerly, before lead resolution.
	var categoryID, stateID, cityID *int64
	if n.Category != "" {
		id, err := refs.category(ctx, st, n.Category)
		if err != nil {
			return 0, err
		}
		categoryID = &id
	}
	if n.State != "" {
		sid, err := refs.state(ctx, st, n.State)
		if err != nil {
			return 0, err
		}
		stateID = &sid
		if n.City != "" {
			cid, err := refs.city(ctx, st, n.City, sid)
			if err != nil {
				return 0, err
			}
			cityID = &cid
		}
	}

	lead, err := findLead(ctx, st, n, cityID, stateID)
	if err != nil {
		return 0, err
	}

	if lead != nil {
		mergeLead(lead, n, score, categoryID, stateID, cityID, sf.ID)
		if err := st.UpdateLead(ctx, lead); err != nil {
			return 0, err
		}
		return OutcomeMerged, nil
	}

	sfID := sf.ID
	fresh := &model.Lead{
		BusinessName: n.BusinessName,
		Website:      n.Website,
		Email:        n.Email,
		Phone:        n.Phone,
		Address:      n.Address,
		CategoryID:   categoryID,
		StateID:      stateID,
		CityID:       cityID,
		Domain:       n.Domain,
		QualityScore: score,
		Extra:        n.Extra,
		SourceFileID: &sfID,
	}

	err = st.CreateLead(ctx, fresh)
	if err == nil {
		return OutcomeCreated, nil
	}
	if !store.IsConflict(err) {
		return 0, err
	}

	// Another row already claimed this identity. Find it and merge instead;
	// the conflicting row may match by domain+geo even when ours had no
	// email hit, so that lookup runs first.
	existing, lookupErr := findConflicting(ctx, st, n, cityID, stateID)
	if lookupErr != nil {
		return 0, lookupErr
	}
	if existing == nil {
		return 0, eris.Wrap(err, "ingest: conflicting lead not found after uniqueness violation")
	}

	mergeLead(existing, n, score, categoryID, stateID, cityID, sf.ID)
	if err := st.UpdateLead(ctx, existing); err != nil {
		return 0, err
	}
	return OutcomeMerged, nil
}

// findLead performs the primary identity lookup.
func findLead(ctx context.Context, st store.Store, n normalize.Normalized, cityID, stateID *int64) (*model.Lead, error) {
	if n.Email != "" {
		lead, err := st.FindLeadByEmail(ctx, n.Email)
		if err != nil || lead != nil {
			return lead, err
		}
	}
	if n.Domain != "" && cityID != nil && stateID != nil {
		return st.FindLeadByDomainGeo(ctx, n.Domain, *cityID, *stateID)
	}
	return nil, nil
}

// findConflicting is the post-conflict lookup: domain+geo first, then email.
func findConflicting(ctx context.Context, st store.Store, n normalize.Normalized, cityID, stateID *int64) (*model.Lead, error) {
	if n.Domain != "" && cityID != nil && stateID != nil {
		lead, err := st.FindLeadByDomainGeo(ctx, n.Domain, *cityID, *stateID)
		if err != nil || lead != nil {
			return lead, err
		}
	}
	if n.Email != "" {
		return st.FindLeadByEmail(ctx, n.Email)
	}
	return nil, nil
}

// mergeLead applies the merge policy: the display name follows the latest
// file, contact fields fill only when previously empty, geography and domain
// are first-write-wins, the score never decreases, and the source file
// pointer always advances.
func mergeLead(lead *model.Lead, n normalize.Normalized, score int, categoryID, stateID, cityID *int64, sourceFileID int64) {
	lead.BusinessName = n.BusinessName
	if lead.Website == "" {
		lead.Website = n.Website
	}
	if lead.Email == "" {
		lead.Email = n.Email
	}
	if lead.Phone == "" {
		lead.Phone = n.Phone
	}
	if lead.Address == "" {
		lead.Address = n.Address
	}
	if lead.CategoryID == nil {
		lead.CategoryID = categoryID
	}
	if lead.StateID == nil {
		lead.StateID = stateID
	}
	if lead.CityID == nil {
		lead.CityID = cityID
	}
	if lead.Domain == "" {
		lead.Domain = n.Domain
	}
	if score > lead.QualityScore {
		lead.QualityScore = score
	}
	lead.SourceFileID = &sourceFileID
}
