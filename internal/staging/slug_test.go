package staging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ummahlocal/scout-cli/internal/model"
)

func TestSlugify(t *testing.T) {
	cases := []struct {
		name string
		city string
		want string
	}{
		{"Al-Madina Grill", "Dearborn", "al-madina-grill-dearborn"},
		{"Sufi's Kitchen & Grill", "Atlanta", "sufi-s-kitchen-grill-atlanta"},
		{"Café Istanbul", "Houston", "cafe-istanbul-houston"},
		{"Shahi  Nihari   House", "", "shahi-nihari-house"},
		{"   ", "", ""},
		{"99 Halal Deli", "New York", "99-halal-deli-new-york"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, slugify(tc.name, tc.city), "slugify(%q, %q)", tc.name, tc.city)
	}
}

func TestUniqueSlug_CollisionGetsSuffix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Seed a published business holding the bare slug.
	rec := &model.StagedRecord{
		ID:            "22222222-2222-2222-2222-222222222222",
		Establishment: sampleEstablishment(),
		Status:        model.StatusApproved,
	}
	require.NoError(t, store.CreateStaged(ctx, rec))
	require.NoError(t, store.CreateBusiness(ctx, &model.Business{
		ID:                "33333333-3333-3333-3333-333333333333",
		Slug:              "al-madina-grill-dearborn",
		Name:              "Al-Madina Grill",
		City:              "Dearborn",
		ScrapedBusinessID: rec.ID,
	}))

	slug, err := uniqueSlug(ctx, store, "Al-Madina Grill", "Dearborn")
	require.NoError(t, err)
	assert.NotEqual(t, "al-madina-grill-dearborn", slug)
	assert.Contains(t, slug, "al-madina-grill-dearborn-")
	// 3 random bytes hex encoded.
	assert.Len(t, slug, len("al-madina-grill-dearborn-")+6)
}

func TestUniqueSlug_EmptyNameFallsBack(t *testing.T) {
	store := newTestStore(t)
	slug, err := uniqueSlug(context.Background(), store, "!!!", "")
	require.NoError(t, err)
	assert.Equal(t, "business", slug)
}
