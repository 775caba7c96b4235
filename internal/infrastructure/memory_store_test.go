package infrastructure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"leadsync/internal/domain"
)

func TestMemoryStore_RoundTrip(t *testing.T) {
	log, _ := testDeps()
	store := NewMemoryStore(log)
	ctx := context.Background()

	empty, err := store.ReadAll(ctx, "ga_sf_mapped")
	require.NoError(t, err)
	assert.Zero(t, empty.Len())

	require.NoError(t, store.EnsureTable(ctx, "ga_sf_mapped", []string{"City"}))
	require.NoError(t, store.EnsureTable(ctx, "ga_sf_mapped", []string{"City", "Owner"}))

	data := &domain.MappedTable{
		ExtraColumns: []string{"City"},
		Records: []domain.MappedRecord{{
			CanonicalLead: domain.CanonicalLead{Mobile: "9876543210"},
			Month:         3,
			Year:          2024,
			Extra:         map[string]string{"City": "Pune"},
		}},
	}
	require.NoError(t, store.ReplaceAll(ctx, "ga_sf_mapped", data))

	// stored data is a copy
	data.Records[0].Extra["City"] = "Delhi"

	got, err := store.ReadAll(ctx, "ga_sf_mapped")
	require.NoError(t, err)
	require.Len(t, got.Records, 1)
	assert.Equal(t, "Pune", got.Records[0].Extra["City"])

	require.NoError(t, store.ResetTable(ctx, "ga_sf_mapped"))
	got, err = store.ReadAll(ctx, "ga_sf_mapped")
	require.NoError(t, err)
	assert.Zero(t, got.Len())
}

func TestMemoryStore_EnsureKeepsColumnOrder(t *testing.T) {
	log, _ := testDeps()
	store := NewMemoryStore(log)
	ctx := context.Background()

	require.NoError(t, store.EnsureTable(ctx, "t", []string{"B", "A"}))
	require.NoError(t, store.EnsureTable(ctx, "t", []string{"A", "C"}))

	got, err := store.ReadAll(ctx, "t")
	require.NoError(t, err)
	assert.Equal(t, []string{"B", "A", "C"}, got.ExtraColumns)
}
