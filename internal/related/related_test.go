package related

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nammakumta/directory/internal/domain"
)

func shop(id, sub string) *domain.Shop {
	return &domain.Shop{ID: id, Name: "shop " + id, SubcategoryID: domain.NewRef(sub)}
}

func ids(shops []*domain.Shop) []string {
	out := make([]string, len(shops))
	for i, s := range shops {
		out[i] = s.ID
	}
	return out
}

func TestSelectPrefersSameGroup(t *testing.T) {
	t.Parallel()

	current := shop("x", "A")
	pool := []*domain.Shop{shop("x", "A"), shop("y", "A"), shop("z", "B")}

	got := Select(current, pool, domain.GroupSubcategory, 8)
	assert.Equal(t, []string{"y"}, ids(got))
}

func TestSelectFallsBackToEveryOtherItem(t *testing.T) {
	t.Parallel()

	current := shop("x", "A")
	pool := []*domain.Shop{shop("x", "A"), shop("y", "B"), shop("z", "C")}

	got := Select(current, pool, domain.GroupSubcategory, 8)
	assert.Equal(t, []string{"y", "z"}, ids(got))
}

func TestSelectRespectsLimitAndOrder(t *testing.T) {
	t.Parallel()

	current := shop("current", "A")
	pool := make([]*domain.Shop, 0, 20)
	for i := 0; i < 20; i++ {
		pool = append(pool, shop(fmt.Sprintf("s%02d", i), "A"))
	}

	got := Select(current, pool, domain.GroupSubcategory, 8)
	require.Len(t, got, 8)
	assert.Equal(t, []string{"s00", "s01", "s02", "s03", "s04", "s05", "s06", "s07"}, ids(got))
}

func TestSelectDefaultLimit(t *testing.T) {
	t.Parallel()

	current := shop("current", "A")
	pool := make([]*domain.Shop, 0, 12)
	for i := 0; i < 12; i++ {
		pool = append(pool, shop(fmt.Sprintf("s%02d", i), "B"))
	}

	assert.Len(t, Select(current, pool, domain.GroupSubcategory, 0), DefaultLimit)
	assert.Len(t, Select(current, pool, domain.GroupSubcategory, -3), DefaultLimit)
}

func TestSelectNilCurrent(t *testing.T) {
	t.Parallel()

	pool := []*domain.Shop{shop("y", "A"), shop("z", "B")}

	got := Select[*domain.Shop](nil, pool, domain.GroupSubcategory, 8)
	assert.NotNil(t, got)
	assert.Empty(t, got)

	assert.Empty(t, Select(&domain.Shop{Name: "no id"}, pool, domain.GroupSubcategory, 8))
}

func TestSelectNormalizesReferenceShapes(t *testing.T) {
	t.Parallel()

	var pool []*domain.Shop
	require.NoError(t, json.Unmarshal([]byte(`[
		{"_id":"y","subCategoryId":{"_id":"A","name":"Tailors"}},
		{"_id":"z","subCategoryId":"B"},
		{"_id":"w","subCategoryId":{"_id":7}}
	]`), &pool))

	current := shop("x", "A")
	assert.Equal(t, []string{"y"}, ids(Select(current, pool, domain.GroupSubcategory, 8)))

	numeric := shop("x", "7")
	assert.Equal(t, []string{"w"}, ids(Select(numeric, pool, domain.GroupSubcategory, 8)))
}

func TestSelectExcludesByIdentifierNotReference(t *testing.T) {
	t.Parallel()

	current := shop("x", "A")
	refetched := shop("x", "A")
	pool := []*domain.Shop{refetched, shop("y", "A")}

	assert.Equal(t, []string{"y"}, ids(Select(current, pool, domain.GroupSubcategory, 8)))
}

func TestSelectSkipsMalformedCandidates(t *testing.T) {
	t.Parallel()

	current := shop("x", "A")
	pool := []*domain.Shop{nil, {Name: "missing id", SubcategoryID: domain.NewRef("A")}, shop("y", "A")}

	assert.Equal(t, []string{"y"}, ids(Select(current, pool, domain.GroupSubcategory, 8)))
}

func TestSelectMissingGroupFieldFallsBack(t *testing.T) {
	t.Parallel()

	current := &domain.Shop{ID: "x"}
	pool := []*domain.Shop{{ID: "a"}, shop("b", "A"), current}

	assert.Equal(t, []string{"a", "b"}, ids(Select(current, pool, domain.GroupSubcategory, 8)))
}

func TestSelectWorksForAdvertisements(t *testing.T) {
	t.Parallel()

	current := &domain.Advertisement{ID: "ad1", CategoryID: domain.NewRef("c1")}
	pool := []*domain.Advertisement{
		{ID: "ad2", CategoryID: domain.NewRef("c2")},
		{ID: "ad3", CategoryID: domain.NewRef("c1")},
		current,
	}

	got := Select(current, pool, domain.GroupCategory, 8)
	require.Len(t, got, 1)
	assert.Equal(t, "ad3", got[0].ID)
}

func TestResolveGroupKey(t *testing.T) {
	t.Parallel()

	s := &domain.Shop{ID: "x", CategoryID: domain.NewRef(" c1 ")}
	assert.Equal(t, "c1", ResolveGroupKey(s, domain.GroupCategory))
	assert.Equal(t, "", ResolveGroupKey(s, domain.GroupSubcategory))
	assert.Equal(t, "", ResolveGroupKey(nil, domain.GroupCategory))
}
