package ai

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ailedger/internal/core"
)

var today = core.NewDate(2024, 5, 17)

func TestDecodeDraft_EmptyObjectUsesDefaults(t *testing.T) {
	d, err := ParseReply("{}", today)
	require.NoError(t, err)

	assert.True(t, d.Amount.IsZero())
	assert.Equal(t, core.CategoryOthers, d.Category)
	assert.Equal(t, core.TypeExpense, d.Type)
	assert.Equal(t, core.DraftNotePlaceholder, d.Note)
	assert.Equal(t, "2024-05-17", d.Date.String())
}

func TestDecodeDraft_FullReply(t *testing.T) {
	d, err := ParseReply(`{"amount": 35.5, "category": "餐饮", "type": "EXPENSE", "note": "午饭", "date": "2024-05-16"}`, today)
	require.NoError(t, err)

	assert.Equal(t, "35.50", d.Amount.String())
	assert.Equal(t, core.CategoryFood, d.Category)
	assert.Equal(t, core.TypeExpense, d.Type)
	assert.Equal(t, "午饭", d.Note)
	assert.Equal(t, "2024-05-16", d.Date.String())
}

func TestDecodeDraft_Coercions(t *testing.T) {
	tests := []struct {
		name string
		raw  map[string]any
		want func(t *testing.T, d core.Draft)
	}{
		{
			name: "string amount becomes zero",
			raw:  map[string]any{"amount": "12"},
			want: func(t *testing.T, d core.Draft) { assert.True(t, d.Amount.IsZero()) },
		},
		{
			name: "negative amount becomes zero",
			raw:  map[string]any{"amount": -3.0},
			want: func(t *testing.T, d core.Draft) { assert.True(t, d.Amount.IsZero()) },
		},
		{
			name: "lowercase income stays expense",
			raw:  map[string]any{"type": "income"},
			want: func(t *testing.T, d core.Draft) { assert.Equal(t, core.TypeExpense, d.Type) },
		},
		{
			name: "exact INCOME",
			raw:  map[string]any{"type": "INCOME"},
			want: func(t *testing.T, d core.Draft) { assert.Equal(t, core.TypeIncome, d.Type) },
		},
		{
			name: "custom category kept",
			raw:  map[string]any{"category": "宠物"},
			want: func(t *testing.T, d core.Draft) {
				assert.Equal(t, core.Category("宠物"), d.Category)
				assert.True(t, d.Category.IsCustom())
			},
		},
		{
			name: "non string category ignored",
			raw:  map[string]any{"category": 7.0},
			want: func(t *testing.T, d core.Draft) { assert.Equal(t, core.CategoryOthers, d.Category) },
		},
		{
			name: "blank note replaced",
			raw:  map[string]any{"note": "   "},
			want: func(t *testing.T, d core.Draft) { assert.Equal(t, core.DraftNotePlaceholder, d.Note) },
		},
		{
			name: "bad date is today",
			raw:  map[string]any{"date": "17/05/2024"},
			want: func(t *testing.T, d core.Draft) { assert.Equal(t, today, d.Date) },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.want(t, DecodeDraft(tt.raw, today))
		})
	}
}

func TestParseReply(t *testing.T) {
	d, err := ParseReply("```json\n{\"amount\": 8}\n```", today)
	require.NoError(t, err)
	assert.Equal(t, "8.00", d.Amount.String())

	d, err = ParseReply("", today)
	require.NoError(t, err)
	assert.Equal(t, core.DraftNotePlaceholder, d.Note)

	_, err = ParseReply("not json", today)
	assert.ErrorIs(t, err, ErrMalformedReply)
}

func TestDecodeImage(t *testing.T) {
	payload := base64.StdEncoding.EncodeToString([]byte("fake-jpeg"))

	b, mime, err := DecodeImage("data:image/png;base64," + payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-jpeg"), b)
	assert.Equal(t, "image/png", mime)

	b, mime, err = DecodeImage(payload)
	require.NoError(t, err)
	assert.Equal(t, []byte("fake-jpeg"), b)
	assert.Empty(t, mime)

	_, _, err = DecodeImage("data:image/png;base64")
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, _, err = DecodeImage("%%%")
	assert.ErrorIs(t, err, ErrInvalidImage)

	_, _, err = DecodeImage("")
	assert.ErrorIs(t, err, ErrInvalidImage)
}
