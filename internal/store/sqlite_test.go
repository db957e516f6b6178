package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leads-cli/internal/model"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	st, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

func TestGetOrCreateReferenceData(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	t.Run("state is idempotent", func(t *testing.T) {
		a, err := st.GetOrCreateState(ctx, "IL")
		require.NoError(t, err)
		b, err := st.GetOrCreateState(ctx, "IL")
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)

		c, err := st.GetOrCreateState(ctx, "CA")
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, c.ID)
	})

	t.Run("city is unique per state", func(t *testing.T) {
		il, err := st.GetOrCreateState(ctx, "IL")
		require.NoError(t, err)
		mo, err := st.GetOrCreateState(ctx, "MO")
		require.NoError(t, err)

		a, err := st.GetOrCreateCity(ctx, "springfield", il.ID)
		require.NoError(t, err)
		b, err := st.GetOrCreateCity(ctx, "springfield", il.ID)
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)

		c, err := st.GetOrCreateCity(ctx, "springfield", mo.ID)
		require.NoError(t, err)
		assert.NotEqual(t, a.ID, c.ID)
	})

	t.Run("category and source", func(t *testing.T) {
		a, err := st.GetOrCreateCategory(ctx, "Dentists")
		require.NoError(t, err)
		b, err := st.GetOrCreateCategory(ctx, "Dentists")
		require.NoError(t, err)
		assert.Equal(t, a.ID, b.ID)

		s1, err := st.GetOrCreateSource(ctx, "local", model.SourceLocalFolder, "/data")
		require.NoError(t, err)
		s2, err := st.GetOrCreateSource(ctx, "local", model.SourceLocalFolder, "/data")
		require.NoError(t, err)
		assert.Equal(t, s1.ID, s2.ID)
	})
}

func TestSourceFileLifecycle(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	src, err := st.GetOrCreateSource(ctx, "local", model.SourceLocalFolder, "/data")
	require.NoError(t, err)

	t.Run("unknown file is nil", func(t *testing.T) {
		sf, err := st.GetSourceFile(ctx, src.ID, "missing.csv")
		require.NoError(t, err)
		assert.Nil(t, sf)
	})

	t.Run("insert, finish, reload", func(t *testing.T) {
		sf := &model.SourceFile{
			SourceID:     src.ID,
			Path:         "Dentists/dentists_in_springfield_IL.csv",
			Hash:         "abc123",
			Size:         1024,
			ModifiedTime: time.Now().UTC(),
		}
		require.NoError(t, st.SaveSourceFile(ctx, sf))
		assert.NotZero(t, sf.ID)

		require.NoError(t, st.FinishSourceFile(ctx, sf.ID, 42, time.Now().UTC()))

		got, err := st.GetSourceFile(ctx, src.ID, sf.Path)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "abc123", got.Hash)
		assert.Equal(t, 42, got.RowCount)
		require.NotNil(t, got.LastIngestedAt)

		// update in place keeps the same row but resets the ingestion
		// marker until the file is finished again
		got.Hash = "def456"
		require.NoError(t, st.SaveSourceFile(ctx, got))
		again, err := st.GetSourceFile(ctx, src.ID, sf.Path)
		require.NoError(t, err)
		assert.Equal(t, sf.ID, again.ID)
		assert.Equal(t, "def456", again.Hash)
		assert.Nil(t, again.LastIngestedAt)

		require.NoError(t, st.FinishSourceFile(ctx, sf.ID, 40, time.Now().UTC()))
		done, err := st.GetSourceFile(ctx, src.ID, sf.Path)
		require.NoError(t, err)
		assert.NotNil(t, done.LastIngestedAt)
	})

	t.Run("finish unknown id fails", func(t *testing.T) {
		assert.Error(t, st.FinishSourceFile(ctx, 99999, 1, time.Now().UTC()))
	})
}

func TestLeadCRUD(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	il, err := st.GetOrCreateState(ctx, "IL")
	require.NoError(t, err)
	spr, err := st.GetOrCreateCity(ctx, "springfield", il.ID)
	require.NoError(t, err)

	lead := &model.Lead{
		BusinessName: "Acme Dental",
		Email:        "Info@Acme.com",
		Domain:       "acme.com",
		StateID:      &il.ID,
		CityID:       &spr.ID,
		QualityScore: 70,
		Extra:        model.Extra{"Reviews": "12"},
	}
	require.NoError(t, st.CreateLead(ctx, lead))
	require.NotZero(t, lead.ID)

	t.Run("find by email is case-insensitive", func(t *testing.T) {
		got, err := st.FindLeadByEmail(ctx, "info@ACME.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, lead.ID, got.ID)
		assert.Equal(t, model.Extra{"Reviews": "12"}, got.Extra)
	})

	t.Run("find by domain and geography", func(t *testing.T) {
		got, err := st.FindLeadByDomainGeo(ctx, "ACME.COM", spr.ID, il.ID)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, lead.ID, got.ID)

		none, err := st.FindLeadByDomainGeo(ctx, "other.com", spr.ID, il.ID)
		require.NoError(t, err)
		assert.Nil(t, none)
	})

	t.Run("duplicate email is a conflict", func(t *testing.T) {
		dup := &model.Lead{BusinessName: "Other", Email: "INFO@acme.com"}
		err := st.CreateLead(ctx, dup)
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("duplicate domain geo is a conflict", func(t *testing.T) {
		dup := &model.Lead{
			BusinessName: "Other",
			Domain:       "Acme.com",
			StateID:      &il.ID,
			CityID:       &spr.ID,
		}
		err := st.CreateLead(ctx, dup)
		require.Error(t, err)
		assert.True(t, IsConflict(err))
	})

	t.Run("same domain in another city is fine", func(t *testing.T) {
		chi, err := st.GetOrCreateCity(ctx, "chicago", il.ID)
		require.NoError(t, err)
		other := &model.Lead{
			BusinessName: "Acme Chicago",
			Domain:       "acme.com",
			StateID:      &il.ID,
			CityID:       &chi.ID,
		}
		assert.NoError(t, st.CreateLead(ctx, other))
	})

	t.Run("empty emails never collide", func(t *testing.T) {
		a := &model.Lead{BusinessName: "No Contact A"}
		b := &model.Lead{BusinessName: "No Contact B"}
		assert.NoError(t, st.CreateLead(ctx, a))
		assert.NoError(t, st.CreateLead(ctx, b))
	})

	t.Run("update persists merged fields", func(t *testing.T) {
		lead.Phone = "555-0100"
		lead.QualityScore = 90
		require.NoError(t, st.UpdateLead(ctx, lead))

		got, err := st.FindLeadByEmail(ctx, "info@acme.com")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "555-0100", got.Phone)
		assert.Equal(t, 90, got.QualityScore)
	})

	t.Run("update unknown lead fails", func(t *testing.T) {
		assert.Error(t, st.UpdateLead(ctx, &model.Lead{ID: 99999, BusinessName: "x"}))
	})
}

func TestWithTx(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	t.Run("commit persists", func(t *testing.T) {
		err := st.WithTx(ctx, func(tx Store) error {
			return tx.CreateLead(ctx, &model.Lead{BusinessName: "Committed", Email: "c@x.com"})
		})
		require.NoError(t, err)

		got, err := st.FindLeadByEmail(ctx, "c@x.com")
		require.NoError(t, err)
		assert.NotNil(t, got)
	})

	t.Run("error rolls back", func(t *testing.T) {
		err := st.WithTx(ctx, func(tx Store) error {
			if err := tx.CreateLead(ctx, &model.Lead{BusinessName: "Doomed", Email: "d@x.com"}); err != nil {
				return err
			}
			return assert.AnError
		})
		require.Error(t, err)

		got, err := st.FindLeadByEmail(ctx, "d@x.com")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("conflict inside tx does not poison later writes", func(t *testing.T) {
		err := st.WithTx(ctx, func(tx Store) error {
			if err := tx.CreateLead(ctx, &model.Lead{BusinessName: "First", Email: "p@x.com"}); err != nil {
				return err
			}
			err := tx.CreateLead(ctx, &model.Lead{BusinessName: "Second", Email: "P@X.COM"})
			if !IsConflict(err) {
				return err
			}
			// tx still usable after the constraint error
			return tx.CreateLead(ctx, &model.Lead{BusinessName: "Third", Email: "q@x.com"})
		})
		require.NoError(t, err)

		got, err := st.FindLeadByEmail(ctx, "q@x.com")
		require.NoError(t, err)
		assert.NotNil(t, got)
	})
}

func TestListAndExportLeads(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	il, err := st.GetOrCreateState(ctx, "IL")
	require.NoError(t, err)
	ca, err := st.GetOrCreateState(ctx, "CA")
	require.NoError(t, err)
	spr, err := st.GetOrCreateCity(ctx, "springfield", il.ID)
	require.NoError(t, err)
	dent, err := st.GetOrCreateCategory(ctx, "Dentists")
	require.NoError(t, err)

	seed := []*model.Lead{
		{BusinessName: "Acme Dental", Email: "a@acme.com", Domain: "acme.com", Website: "acme.com",
			StateID: &il.ID, CityID: &spr.ID, CategoryID: &dent.ID, QualityScore: 70},
		{BusinessName: "Bolt Plumbing", Phone: "555", StateID: &ca.ID, QualityScore: 20},
		{BusinessName: "Zen Dental", Email: "z@zen.io", Domain: "zen.io",
			StateID: &il.ID, CategoryID: &dent.ID, QualityScore: 40},
	}
	for _, l := range seed {
		require.NoError(t, st.CreateLead(ctx, l))
	}

	t.Run("free text matches name domain and email", func(t *testing.T) {
		page, err := st.ListLeads(ctx, LeadFilter{Query: "acme"})
		require.NoError(t, err)
		assert.Equal(t, int64(1), page.Total)
		require.Len(t, page.Leads, 1)
		assert.Equal(t, "Acme Dental", page.Leads[0].BusinessName)
		assert.Equal(t, "IL", page.Leads[0].StateName)
		assert.Equal(t, "Dentists", page.Leads[0].CategoryName)
	})

	t.Run("state and category filters", func(t *testing.T) {
		page, err := st.ListLeads(ctx, LeadFilter{StateID: il.ID, CategoryID: dent.ID})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
	})

	t.Run("has email filter", func(t *testing.T) {
		page, err := st.ListLeads(ctx, LeadFilter{HasEmail: true})
		require.NoError(t, err)
		assert.Equal(t, int64(2), page.Total)
	})

	t.Run("sort by score ascending", func(t *testing.T) {
		page, err := st.ListLeads(ctx, LeadFilter{Sort: SortScore})
		require.NoError(t, err)
		require.Len(t, page.Leads, 3)
		assert.Equal(t, 20, page.Leads[0].QualityScore)
		assert.Equal(t, 70, page.Leads[2].QualityScore)
	})

	t.Run("page size is clamped", func(t *testing.T) {
		page, err := st.ListLeads(ctx, LeadFilter{PageSize: 5})
		require.NoError(t, err)
		assert.Equal(t, MinPageSize, page.PageSize)

		page, err = st.ListLeads(ctx, LeadFilter{PageSize: 9999})
		require.NoError(t, err)
		assert.Equal(t, MaxPageSize, page.PageSize)
	})

	t.Run("export honors filter and limit", func(t *testing.T) {
		leads, err := st.ExportLeads(ctx, LeadFilter{HasEmail: true}, 1)
		require.NoError(t, err)
		assert.Len(t, leads, 1)
	})
}

func TestStatsAndReferenceLists(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	il, err := st.GetOrCreateState(ctx, "IL")
	require.NoError(t, err)
	_, err = st.GetOrCreateCity(ctx, "springfield", il.ID)
	require.NoError(t, err)
	dent, err := st.GetOrCreateCategory(ctx, "Dentists")
	require.NoError(t, err)

	require.NoError(t, st.CreateLead(ctx, &model.Lead{
		BusinessName: "Acme", Email: "a@acme.com", CategoryID: &dent.ID,
	}))
	require.NoError(t, st.CreateLead(ctx, &model.Lead{
		BusinessName: "NoMail", CategoryID: &dent.ID,
	}))

	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), stats.TotalLeads)
	assert.Equal(t, int64(1), stats.LeadsWithEmail)
	require.Len(t, stats.TopCategories, 1)
	assert.Equal(t, "Dentists", stats.TopCategories[0].Name)
	assert.Equal(t, int64(2), stats.TopCategories[0].Count)

	states, err := st.ListStates(ctx)
	require.NoError(t, err)
	assert.Len(t, states, 1)

	cities, err := st.ListCities(ctx, il.ID, 10)
	require.NoError(t, err)
	assert.Len(t, cities, 1)

	cats, err := st.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, 1)
}

func TestSavedViewsAndTags(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	t.Run("saved views round trip", func(t *testing.T) {
		v, err := st.CreateSavedView(ctx, "dentists in IL", map[string]string{"state": "1", "category": "2"})
		require.NoError(t, err)
		assert.NotEmpty(t, v.ID)

		views, err := st.ListSavedViews(ctx, 10)
		require.NoError(t, err)
		require.Len(t, views, 1)
		assert.Equal(t, "dentists in IL", views[0].Name)
		assert.Equal(t, "1", views[0].Filters["state"])
	})

	t.Run("tagging", func(t *testing.T) {
		lead := &model.Lead{BusinessName: "Tagged Co", Email: "t@x.com"}
		require.NoError(t, st.CreateLead(ctx, lead))

		tag, err := st.GetOrCreateTag(ctx, "hot")
		require.NoError(t, err)
		again, err := st.GetOrCreateTag(ctx, "hot")
		require.NoError(t, err)
		assert.Equal(t, tag.ID, again.ID)

		require.NoError(t, st.TagLead(ctx, lead.ID, tag.ID))
		require.NoError(t, st.TagLead(ctx, lead.ID, tag.ID)) // idempotent

		tags, err := st.ListLeadTags(ctx, lead.ID)
		require.NoError(t, err)
		require.Len(t, tags, 1)
		assert.Equal(t, "hot", tags[0].Name)

		require.NoError(t, st.UntagLead(ctx, lead.ID, "hot"))
		tags, err = st.ListLeadTags(ctx, lead.ID)
		require.NoError(t, err)
		assert.Empty(t, tags)
	})
}
