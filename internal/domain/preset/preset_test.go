package preset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goose-osm/goose/internal/domain"
)

func TestParseFeatureKeys(t *testing.T) {
	keys, err := ParseFeatureKeys("\"shop\"=\"bakery\"\n\n\"diet:vegan\"=\"only\"\n")
	require.NoError(t, err)
	assert.Equal(t, []FeatureKey{{Key: "shop", Value: "bakery"}, {Key: "diet:vegan", Value: "only"}}, keys)
	assert.Equal(t, `["shop"="bakery"]`, keys[0].Selector())
}

func TestParseFeatureKeys_Rejects(t *testing.T) {
	for _, tt := range []struct {
		text string
		line int
	}{
		{`shop=bakery`, 1},
		{"\"shop\"=\"bakery\"\n\"amenity\" = \"cafe\"", 2},
		{`"shop"="bakery"]`, 1},
		{`"shop"=""`, 1},
	} {
		_, err := ParseFeatureKeys(tt.text)
		require.ErrorIs(t, err, domain.ErrInvalidInput, tt.text)

		var verr *domain.ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, tt.line, verr.Line)
	}
}

func parkingDefinition() (Definition, map[string]FilterDefinition) {
	def := Definition{
		ID:          "parking",
		Name:        "Parking",
		FeatureKeys: `"amenity"="parking"`,
		RenderRules: "\"fee\" \"Payant\":[\"yes\":\"Oui\"|\"no\":\"Non\"]\nDISPLAY \"Places\":\"capacity\"",
		Filters:     []string{"fee"},
	}
	filters := map[string]FilterDefinition{
		"fee": {Name: "Tarif", Rules: "fee=yes == paying == Payant\nfee=no == free == Gratuit\n* == fee_unknown == Prix inconnu"},
	}
	return def, filters
}

func TestCompile(t *testing.T) {
	def, filters := parkingDefinition()
	p, err := Compile(def, filters)
	require.NoError(t, err)

	assert.Equal(t, "parking", p.ID)
	assert.Len(t, p.FeatureKeys, 1)
	assert.Len(t, p.Render, 2)
	require.Len(t, p.Filters, 1)
	assert.Equal(t, "Tarif", p.Filters[0].Name)

	tags := p.FilterTags(map[string]string{"fee": "no"})
	require.Len(t, tags, 1)
	assert.Equal(t, "free", tags[0].Slug)
	assert.Equal(t, "D000001", tags[0].Priority)

	tags = p.FilterTags(nil)
	require.Len(t, tags, 1)
	assert.Equal(t, "fee_unknown", tags[0].Slug)
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name       string
		mutate     func(*Definition)
		validation bool
	}{
		{"missing id", func(d *Definition) { d.ID = "" }, false},
		{"missing name", func(d *Definition) { d.Name = " " }, false},
		{"empty keys", func(d *Definition) { d.FeatureKeys = "" }, false},
		{"bad keys", func(d *Definition) { d.FeatureKeys = "amenity=parking" }, true},
		{"bad render", func(d *Definition) { d.RenderRules = `DISPLAY "Nom" "name"` }, true},
		{"unknown filter", func(d *Definition) { d.Filters = []string{"nope"} }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			def, filters := parkingDefinition()
			tt.mutate(&def)

			_, err := Compile(def, filters)
			require.ErrorIs(t, err, domain.ErrInvalidInput)
			assert.Equal(t, tt.validation, IsValidation(err))
		})
	}
}

func TestCompile_BadFilter(t *testing.T) {
	def, filters := parkingDefinition()
	filters["fee"] = FilterDefinition{Name: "Tarif", Rules: "key==val==tag==extra"}

	_, err := Compile(def, filters)
	require.ErrorIs(t, err, domain.ErrInvalidInput)
	assert.Contains(t, err.Error(), `filter "fee"`)
	assert.Contains(t, err.Error(), "line 1")
}
