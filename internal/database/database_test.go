package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) (Service, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data", "user_data.json")
	store, err := NewService(path)
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return store, path
}

func strPtr(s string) *string { return &s }

func sampleProfile(name string) Profile {
	return Profile{
		Name:            name,
		Age:             27,
		CyclePhase:      PhaseLuteal,
		Cravings:        "chocolate",
		LastInteraction: "2026-01-02T03:04:05Z",
	}
}

func TestLoadMissingFileIsEmpty(t *testing.T) {
	store, _ := newTestStore(t)

	profiles, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profiles)
	assert.NotNil(t, profiles)
}

func TestLoadEmptyFileIsEmpty(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("  \n"), 0o644))

	profiles, err := store.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestLoadCorruptFileReportsStoreIO(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := store.Load(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrStoreIO))
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	withPlan := sampleProfile("Ada")
	withPlan.DietarySpecs = strPtr("vegan")
	withPlan.Cuisine = strPtr("no preference")
	withPlan.Allergies = strPtr("none")

	want := Profiles{
		"u1": sampleProfile("Grace"),
		"u2": withPlan,
	}
	require.NoError(t, store.Save(ctx, want))

	first, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, want, first)

	require.NoError(t, store.Save(ctx, first))
	second, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestLoadReadsUnsetMealFieldsAsNil(t *testing.T) {
	store, path := newTestStore(t)
	raw := `{
    "abc": {
        "name": "Mia",
        "age": 16,
        "cycle_phase": "follicular",
        "cravings": "",
        "dietary_specs": null,
        "cuisine": null,
        "allergies": null,
        "last_interaction": "2024-05-01T10:11:12.123456"
    }
}`
	require.NoError(t, os.WriteFile(path, []byte(raw), 0o644))

	got, err := store.Get(context.Background(), "abc")
	require.NoError(t, err)
	assert.Equal(t, "Mia", got.Name)
	assert.Equal(t, PhaseFollicular, got.CyclePhase)
	assert.Nil(t, got.DietarySpecs)
	assert.Nil(t, got.Cuisine)
	assert.Nil(t, got.Allergies)
	assert.Equal(t, "2024-05-01T10:11:12.123456", got.LastInteraction)
}

func TestGetUnknownIdentity(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.Get(context.Background(), "u1")
	assert.ErrorIs(t, err, ErrProfileNotFound)
}

func TestUpdate(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "u1", sampleProfile("Ada")))

	updated, err := store.Update(ctx, "u1", func(p *Profile) error {
		p.Cuisine = strPtr("Italian")
		return nil
	})
	require.NoError(t, err)
	require.NotNil(t, updated.Cuisine)
	assert.Equal(t, "Italian", *updated.Cuisine)

	stored, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, updated, stored)
}

func TestUpdateUnknownIdentityWritesNothing(t *testing.T) {
	store, path := newTestStore(t)

	called := false
	_, err := store.Update(context.Background(), "ghost", func(*Profile) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, ErrProfileNotFound)
	assert.False(t, called)
	_, statErr := os.Stat(path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestUpdateCallbackErrorAborts(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, store.Put(ctx, "u1", sampleProfile("Ada")))

	boom := errors.New("boom")
	_, err := store.Update(ctx, "u1", func(p *Profile) error {
		p.Name = "changed"
		return boom
	})
	assert.ErrorIs(t, err, boom)

	stored, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, "Ada", stored.Name)
}

func TestConcurrentPutsKeepEveryProfile(t *testing.T) {
	store, _ := newTestStore(t)
	ctx := context.Background()

	const writers = 20
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("user-%d", i)
			assert.NoError(t, store.Put(ctx, id, sampleProfile(id)))
		}(i)
	}
	wg.Wait()

	profiles, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, profiles, writers)
}

func TestHealth(t *testing.T) {
	store, path := newTestStore(t)
	require.NoError(t, store.Put(context.Background(), "u1", sampleProfile("Ada")))

	stats := store.Health()
	assert.Equal(t, "up", stats["status"])
	assert.Equal(t, "1", stats["profiles"])
	assert.Equal(t, path, stats["path"])
	assert.NotEmpty(t, stats["size_bytes"])

	require.NoError(t, os.WriteFile(path, []byte("[]x"), 0o644))
	stats = store.Health()
	assert.Equal(t, "down", stats["status"])
	assert.NotEmpty(t, stats["error"])
}

func TestCyclePhaseValid(t *testing.T) {
	for _, p := range CyclePhases {
		assert.True(t, p.Valid(), p)
	}
	assert.False(t, CyclePhase("winter").Valid())
	assert.False(t, CyclePhase("").Valid())
}
