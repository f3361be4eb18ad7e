package entity_test

import (
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/botcsync/internal/entity"
	"github.com/roach88/botcsync/internal/testutil"
)

func TestMarshalPublicList_Golden(t *testing.T) {
	data, err := entity.MarshalPublicList(testutil.Dataset())
	require.NoError(t, err)

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "characters", data)
}

func TestMarshalPublicList_NoInternalFields(t *testing.T) {
	e := testutil.Washerwoman()
	e.ImageURL = "https://example.test/ww.png"

	data, err := entity.MarshalPublicList([]*entity.Entity{e})
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"_`)
	assert.NotContains(t, string(data), "example.test")
}

func TestRecord_RoundTrip(t *testing.T) {
	in := testutil.Spy()

	data, err := entity.MarshalRecord(in)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"_fetched": {`)

	out, err := entity.UnmarshalRecord(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestRecord_NoFlagsOmitsNamespace(t *testing.T) {
	e := testutil.Scraped(testutil.Imp())[0]

	data, err := entity.MarshalRecord(e)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "_fetched")
}

func TestUnmarshalRecord_LegacyFlags(t *testing.T) {
	tests := []struct {
		name      string
		json      string
		reminders bool
		flavor    bool
	}{
		{"none", `{"id":"x"}`, false, false},
		{"legacy reminders", `{"id":"x","_remindersFetched":true}`, true, false},
		{"legacy flavor", `{"id":"x","_flavorValid":true}`, false, true},
		{"typed", `{"id":"x","_fetched":{"flavor":true,"reminders":true}}`, true, true},
		{"typed false", `{"id":"x","_fetched":{"flavor":false}}`, false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := entity.UnmarshalRecord([]byte(tt.json))
			require.NoError(t, err)
			assert.Equal(t, tt.reminders, e.Fetched.Has(entity.Reminders))
			assert.Equal(t, tt.flavor, e.Fetched.Has(entity.Flavor))
			assert.NotNil(t, e.Reminders)
		})
	}
}

func TestUnmarshalRecord_Errors(t *testing.T) {
	_, err := entity.UnmarshalRecord([]byte(`{"name":"no id"}`))
	assert.Error(t, err)

	_, err = entity.UnmarshalRecord([]byte(`{`))
	assert.Error(t, err)
}

func TestDecodeScraped(t *testing.T) {
	input := `[
  {"id": "Imp", "name": "Imp", "edition": "tb", "team": "demon", "ability": "kill",
   "flavor": "should be dropped", "reminders": ["Dead"], "_imageUrl": "https://example.test/imp.png",
   "_fetched": {"flavor": true}},
  {"id": "spy", "name": "Spy", "edition": "tb", "team": "minion", "ability": "see",
   "jinxes": [{"id": "magician", "reason": "r"}]}
]`

	got, err := entity.DecodeScraped(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 2)

	imp := got[0]
	assert.Equal(t, "imp", imp.ID)
	assert.Equal(t, "", imp.Flavor)
	assert.Equal(t, []string{}, imp.Reminders)
	assert.Equal(t, entity.FetchFlags(0), imp.Fetched)
	assert.Equal(t, "https://example.test/imp.png", imp.ImageURL)

	assert.Equal(t, []entity.Jinx{{ID: "magician", Reason: "r"}}, got[1].Jinxes)
}

func TestDecodeScraped_MissingID(t *testing.T) {
	_, err := entity.DecodeScraped(strings.NewReader(`[{"name":"anon"}]`))
	assert.Error(t, err)
}

func TestPublic_OmitsEmptyJinxes(t *testing.T) {
	pub := testutil.Imp().Public()
	_, ok := pub["jinxes"]
	assert.False(t, ok)

	pub = testutil.Spy().Public()
	assert.Len(t, pub["jinxes"], 1)
}

func TestStripInternal(t *testing.T) {
	in := map[string]any{"id": "x", "_fetched": true, "_imageUrl": "u"}
	out := entity.StripInternal(in)

	assert.Equal(t, map[string]any{"id": "x"}, out)
	assert.Len(t, in, 3)
}

func TestSort(t *testing.T) {
	ds := testutil.Dataset()
	shuffled := []*entity.Entity{ds[2], ds[0], ds[3], ds[1]}

	entity.Sort(shuffled)

	ids := make([]string, len(shuffled))
	for i, e := range shuffled {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"magician", "imp", "spy", "washerwoman"}, ids)
}

func TestClone_IsDeep(t *testing.T) {
	e := testutil.Spy()
	c := e.Clone()
	c.Jinxes[0].Reason = "changed"
	c.Reminders = append(c.Reminders, "x")

	assert.NotEqual(t, "changed", e.Jinxes[0].Reason)
	assert.Empty(t, e.Reminders)
}

func TestFetchFlags(t *testing.T) {
	var f entity.FetchFlags
	assert.False(t, f.Has(entity.Flavor))

	f.Set(entity.Flavor, true)
	assert.True(t, f.Has(entity.Flavor))
	assert.False(t, f.Has(entity.Reminders))

	f = f.With(entity.Reminders).Without(entity.Flavor)
	assert.True(t, f.Has(entity.Reminders))
	assert.False(t, f.Has(entity.Flavor))

	assert.False(t, f.Has(entity.AuxCategory("images")))
}

func TestParseCategory(t *testing.T) {
	c, err := entity.ParseCategory("flavor")
	require.NoError(t, err)
	assert.Equal(t, entity.Flavor, c)

	_, err = entity.ParseCategory("images")
	assert.Error(t, err)
}

func TestAux_SetAndClear(t *testing.T) {
	e := &entity.Entity{ID: "x"}

	e.SetAux(entity.Reminders, entity.AuxValue{Reminders: []string{"A"}})
	assert.True(t, e.HasAux(entity.Reminders))
	assert.Equal(t, []string{}, e.RemindersGlobal)

	e.ClearAux(entity.Reminders)
	assert.False(t, e.HasAux(entity.Reminders))
	assert.NotNil(t, e.Reminders)
}

func TestNormalize_ComposesUnicode(t *testing.T) {
	const composed, decomposed = "Caf\u00e9", "Cafe\u0301"

	shared := []string{decomposed}
	e := &entity.Entity{
		ID:        "cafe",
		Name:      decomposed,
		Ability:   "Serve the " + decomposed + ".",
		Reminders: shared,
		Jinxes:    []entity.Jinx{{ID: "imp", Reason: decomposed}},
	}
	e.Normalize()

	assert.Equal(t, composed, e.Name)
	assert.Equal(t, "Serve the "+composed+".", e.Ability)
	assert.Equal(t, []string{composed}, e.Reminders)
	assert.Equal(t, composed, e.Jinxes[0].Reason)
	assert.Equal(t, decomposed, shared[0], "caller's slice must not be rewritten")
}

func TestMarshalPublicList_StoresComposedForm(t *testing.T) {
	nfd := testutil.Imp()
	nfd.Name = "Cafe\u0301"
	nfc := testutil.Imp()
	nfc.Name = "Caf\u00e9"

	a, err := entity.MarshalPublicList([]*entity.Entity{nfd})
	require.NoError(t, err)
	b, err := entity.MarshalPublicList([]*entity.Entity{nfc})
	require.NoError(t, err)

	assert.Equal(t, string(b), string(a))
	assert.NotContains(t, string(a), "e\u0301")
	assert.Equal(t, "Cafe\u0301", nfd.Name, "input entity is not modified")
}

func TestDecodeScraped_KeepsUnknownFields(t *testing.T) {
	input := `[{"id": "imp", "name": "Imp", "edition": "tb", "team": "demon", "ability": "kill",
  "bogus": "x", "_imageUrl": "https://example.test/imp.png"}]`

	got, err := entity.DecodeScraped(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, map[string]any{"bogus": "x"}, got[0].Extra)
	assert.NotContains(t, got[0].Public(), "bogus")
}

func TestDecodePublicList(t *testing.T) {
	data, err := entity.MarshalPublicList(testutil.Dataset())
	require.NoError(t, err)

	got, err := entity.DecodePublicList(data)
	require.NoError(t, err)
	require.Len(t, got, 4)
	for _, e := range got {
		assert.Nil(t, e.Extra, e.ID)
	}

	got, err = entity.DecodePublicList([]byte(`[{"id": "x", "legacyField": 3}]`))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"legacyField": float64(3)}, got[0].Extra)
}

func TestGroup(t *testing.T) {
	assert.Equal(t, entity.UnknownGroup, (&entity.Entity{ID: "x"}).Group())
	assert.Equal(t, "tb", testutil.Imp().Group())
}
