package persistence

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vozlocal/pkg/proto"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	dbPath := filepath.Join(t.TempDir(), "test.db")
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?_foreign_keys=ON&_journal_mode=WAL", dbPath))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, initializeSchemaWithMigrations(db))
	return NewStore(db)
}

func createCitizen(t *testing.T, store *Store, hash, city, group string) *Citizen {
	t.Helper()
	citizen, err := store.GetOrCreateCitizen(hash, "", city, group)
	require.NoError(t, err)
	return citizen
}

func TestSchemaVersion(t *testing.T) {
	store := newTestStore(t)

	version, err := GetSchemaVersion(store.db)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, version)

	// Re-initialization is a no-op at the current version.
	require.NoError(t, initializeSchemaWithMigrations(store.db))
}

func TestGetOrCreateCitizen(t *testing.T) {
	store := newTestStore(t)

	first, err := store.GetOrCreateCitizen("hash-1", "Maria", "Recife", "")
	require.NoError(t, err)
	require.NotEmpty(t, first.ID)

	// Same hash returns the same citizen.
	second, err := store.GetOrCreateCitizen("hash-1", "", "", "")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Maria", second.DisplayName, "empty display name must not overwrite")

	other, err := store.GetOrCreateCitizen("hash-2", "", "", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, other.ID)

	_, err = store.GetOrCreateCitizen("", "", "", "")
	assert.Error(t, err)
}

func TestInsertInteractionValidation(t *testing.T) {
	store := newTestStore(t)
	citizen := createCitizen(t, store, "hash-1", "", "")

	require.NoError(t, store.InsertInteraction(&Interaction{
		CitizenID: citizen.ID,
		Kind:      proto.InteractionOpinion,
		Opinion:   proto.OpinionFor,
	}))

	assert.Error(t, store.InsertInteraction(&Interaction{
		CitizenID: citizen.ID,
		Kind:      "curtida",
	}), "unknown kind must be rejected")

	assert.Error(t, store.InsertInteraction(&Interaction{
		CitizenID: citizen.ID,
		Kind:      proto.InteractionOpinion,
	}), "opinion kind requires an opinion value")

	assert.Error(t, store.InsertInteraction(&Interaction{
		Kind: proto.InteractionView,
	}), "interaction requires a citizen")

	// Views carry no opinion.
	require.NoError(t, store.InsertInteraction(&Interaction{
		CitizenID: citizen.ID,
		Kind:      proto.InteractionView,
	}))
}

func TestInsertProposalValidation(t *testing.T) {
	store := newTestStore(t)
	citizen := createCitizen(t, store, "hash-1", "", "")

	require.NoError(t, store.InsertProposal(&Proposal{
		CitizenID:       citizen.ID,
		Content:         "mais ciclovias",
		ContentKind:     proto.ContentText,
		PrimaryTheme:    proto.ThemeTransport,
		SecondaryThemes: []proto.Theme{proto.ThemeEnvironment},
		Confidence:      0.9,
	}))

	assert.Error(t, store.InsertProposal(&Proposal{
		CitizenID:   citizen.ID,
		Content:     "   ",
		ContentKind: proto.ContentText,
	}), "blank content must be rejected")

	assert.Error(t, store.InsertProposal(&Proposal{
		CitizenID:   citizen.ID,
		Content:     "texto",
		ContentKind: "video",
	}), "unknown content kind must be rejected")
}

func TestBillsByThemeAndRandom(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertBill(&Bill{
		ExternalID:   "pl-1",
		Title:        "PL 1",
		PrimaryTheme: proto.ThemeHealth,
		Status:       proto.BillInTramitation,
	}))
	require.NoError(t, store.UpsertBill(&Bill{
		ExternalID:   "pl-2",
		Title:        "PL 2",
		PrimaryTheme: proto.ThemeHealth,
		Status:       proto.BillArchived,
	}))
	require.NoError(t, store.UpsertBill(&Bill{
		ExternalID:   "pl-3",
		Title:        "PL 3",
		PrimaryTheme: proto.ThemeTransport,
		Status:       proto.BillInTramitation,
	}))

	health, err := store.BillsByTheme(proto.ThemeHealth, 10)
	require.NoError(t, err)
	require.Len(t, health, 1, "archived bills must not be curated")
	assert.Equal(t, "PL 1", health[0].Title)

	all, err := store.BillsByTheme("", 10)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	random, err := store.RandomBillInTramitation()
	require.NoError(t, err)
	assert.Equal(t, proto.BillInTramitation, random.Status)
}

func TestRandomBillEmptyStore(t *testing.T) {
	store := newTestStore(t)

	_, err := store.RandomBillInTramitation()
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpsertBillByExternalID(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.UpsertBill(&Bill{
		ExternalID: "pl-1",
		Title:      "PL 1",
		Status:     proto.BillInTramitation,
	}))
	require.NoError(t, store.UpsertBill(&Bill{
		ExternalID: "pl-1",
		Title:      "PL 1 (emendado)",
		Status:     proto.BillApproved,
	}))

	bills, err := store.BillsByTheme("", 10)
	require.NoError(t, err)
	assert.Empty(t, bills, "the approved update must replace the in-tramitation row")
}

func TestDemandAndBillCounts(t *testing.T) {
	store := newTestStore(t)
	recife := createCitizen(t, store, "hash-1", "Recife", "juventude")
	olinda := createCitizen(t, store, "hash-2", "Olinda", "")

	insert := func(citizen *Citizen, theme proto.Theme) {
		require.NoError(t, store.InsertProposal(&Proposal{
			CitizenID:      citizen.ID,
			Content:        "proposta",
			ContentKind:    proto.ContentText,
			City:           citizen.City,
			InclusionGroup: citizen.InclusionGroup,
			PrimaryTheme:   theme,
		}))
	}
	insert(recife, proto.ThemeHealth)
	insert(recife, proto.ThemeHealth)
	insert(olinda, proto.ThemeTransport)

	require.NoError(t, store.UpsertBill(&Bill{
		ExternalID:   "pl-1",
		Title:        "PL 1",
		PrimaryTheme: proto.ThemeHealth,
		Status:       proto.BillInTramitation,
	}))

	demand, err := store.DemandCounts(proto.DimensionTheme)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{
		string(proto.ThemeHealth):    2,
		string(proto.ThemeTransport): 1,
	}, demand)

	cities, err := store.DemandCounts(proto.DimensionCity)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"Recife": 2, "Olinda": 1}, cities)

	// Only the citizen with an inclusion group shows up on that axis.
	groups, err := store.DemandCounts(proto.DimensionGroup)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"juventude": 2}, groups)

	bills, err := store.BillCounts(proto.DimensionTheme)
	require.NoError(t, err)
	assert.Equal(t, map[string]int{string(proto.ThemeHealth): 1}, bills)

	groupBills, err := store.BillCounts(proto.DimensionGroup)
	require.NoError(t, err)
	assert.Empty(t, groupBills)
}

func TestReplaceGapMetrics(t *testing.T) {
	store := newTestStore(t)

	first := []*GapMetric{
		{DimensionKind: string(proto.DimensionTheme), DimensionKey: string(proto.ThemeHealth),
			DemandCount: 10, BillCount: 3, GapPercent: 70, Severity: "alta"},
		{DimensionKind: string(proto.DimensionTheme), DimensionKey: string(proto.ThemeTransport),
			DemandCount: 4, BillCount: 0, GapPercent: 100, Severity: "alta"},
	}
	require.NoError(t, store.ReplaceGapMetrics(proto.DimensionTheme, first))

	// A rewrite drops stale keys.
	second := []*GapMetric{
		{DimensionKind: string(proto.DimensionTheme), DimensionKey: string(proto.ThemeHealth),
			DemandCount: 10, BillCount: 10, GapPercent: 0, Severity: "baixa"},
	}
	require.NoError(t, store.ReplaceGapMetrics(proto.DimensionTheme, second))

	metrics, err := store.GapMetrics(proto.DimensionTheme)
	require.NoError(t, err)
	require.Len(t, metrics, 1)
	assert.Equal(t, string(proto.ThemeHealth), metrics[0].DimensionKey)
	assert.Equal(t, "baixa", metrics[0].Severity)
}

func TestGapMetricsOrdering(t *testing.T) {
	store := newTestStore(t)

	require.NoError(t, store.ReplaceGapMetrics(proto.DimensionCity, []*GapMetric{
		{DimensionKind: string(proto.DimensionCity), DimensionKey: "Olinda",
			DemandCount: 2, BillCount: 1, GapPercent: 50, Severity: "media"},
		{DimensionKind: string(proto.DimensionCity), DimensionKey: "Recife",
			DemandCount: 8, BillCount: 0, GapPercent: 100, Severity: "alta"},
		{DimensionKind: string(proto.DimensionCity), DimensionKey: "Caruaru",
			DemandCount: 3, BillCount: 0, GapPercent: 100, Severity: "alta"},
	}))

	metrics, err := store.GapMetrics(proto.DimensionCity)
	require.NoError(t, err)
	require.Len(t, metrics, 3)
	assert.Equal(t, "Recife", metrics[0].DimensionKey, "widest gap with most demand first")
	assert.Equal(t, "Caruaru", metrics[1].DimensionKey)
	assert.Equal(t, "Olinda", metrics[2].DimensionKey)
}

func TestAggregateCounts(t *testing.T) {
	store := newTestStore(t)
	citizen := createCitizen(t, store, "hash-1", "", "")

	require.NoError(t, store.InsertInteraction(&Interaction{
		CitizenID: citizen.ID,
		Kind:      proto.InteractionView,
	}))
	require.NoError(t, store.InsertProposal(&Proposal{
		CitizenID:   citizen.ID,
		Content:     "proposta",
		ContentKind: proto.ContentText,
	}))

	citizens, interactions, proposals, err := store.AggregateCounts()
	require.NoError(t, err)
	assert.Equal(t, 1, citizens)
	assert.Equal(t, 1, interactions)
	assert.Equal(t, 1, proposals)
}

func TestProposalsNeedingReview(t *testing.T) {
	store := newTestStore(t)
	citizen := createCitizen(t, store, "hash-1", "", "")

	require.NoError(t, store.InsertProposal(&Proposal{
		CitizenID:       citizen.ID,
		Content:         "primeira",
		ContentKind:     proto.ContentText,
		PrimaryTheme:    proto.ThemeOther,
		SecondaryThemes: []proto.Theme{},
		NeedsReview:     true,
	}))
	require.NoError(t, store.InsertProposal(&Proposal{
		CitizenID:    citizen.ID,
		Content:      "segunda",
		ContentKind:  proto.ContentText,
		PrimaryTheme: proto.ThemeHealth,
		Confidence:   0.95,
	}))

	flagged, err := store.ProposalsNeedingReview(10)
	require.NoError(t, err)
	require.Len(t, flagged, 1)
	assert.Equal(t, "primeira", flagged[0].Content)
	assert.True(t, flagged[0].NeedsReview)
}
