package wire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mark3labs/specdash/internal/workitem"
)

func bug(slug string) workitem.WorkItem {
	return workitem.WorkItem{
		Kind:         workitem.KindBug,
		Slug:         slug,
		DisplayName:  workitem.FormatSlug(slug),
		Status:       workitem.StatusFixing,
		LastModified: time.Date(2026, 10, 3, 12, 0, 0, 0, time.UTC),
	}
}

func TestEncodeDecode_Update(t *testing.T) {
	item := bug("crash")
	data, err := Encode(Update("api", workitem.KindBug, workitem.ChangeChanged, "crash", &item))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"type":"update"`)
	assert.Contains(t, string(data), `"lastModified":"2026-10-03T12:00:00Z"`)

	m, err := Decode(data)
	require.NoError(t, err)
	require.NotNil(t, m.Item)
	assert.Equal(t, item, *m.Item)
}

func TestSnapshot_EmptyItemsAreAnArray(t *testing.T) {
	m := Snapshot("api", workitem.KindSpec, nil)
	assert.NotNil(t, m.Items)
	_, err := Encode(m)
	require.NoError(t, err)
}

func TestDecode_Malformed(t *testing.T) {
	removal := Update("api", workitem.KindBug, workitem.ChangeRemoved, "gone", nil)
	_, err := Encode(removal)
	require.NoError(t, err, "removals carry no item")

	tests := map[string]string{
		"not json":           `{"type":`,
		"no type":            `{}`,
		"unknown type":       `{"type":"shout"}`,
		"hello without id":   `{"type":"hello"}`,
		"snapshot bad kind":  `{"type":"snapshot","project":"api","kind":"epic"}`,
		"snapshot plural":    `{"type":"snapshot","project":"api","kind":"specs","items":[]}`,
		"update plural":      `{"type":"update","project":"api","kind":"bugs","change":"removed","slug":"x"}`,
		"snapshot mixed":     `{"type":"snapshot","project":"api","kind":"spec","items":[{"kind":"bug","slug":"x"}]}`,
		"update no item":     `{"type":"update","project":"api","kind":"bug","change":"changed","slug":"x"}`,
		"update bad change":  `{"type":"update","project":"api","kind":"bug","change":"moved","slug":"x"}`,
		"update wrong item":  `{"type":"update","project":"api","kind":"bug","change":"added","slug":"x","item":{"kind":"bug","slug":"y"}}`,
		"error without text": `{"type":"error"}`,
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Decode([]byte(raw))
			assert.ErrorIs(t, err, ErrMalformed)
		})
	}
}

func TestClientMessages(t *testing.T) {
	m, err := Decode([]byte(`{"type":"subscribe","subscribe":["api","web"]}`))
	require.NoError(t, err)
	assert.Equal(t, SubscribeTo("api", "web"), m)

	data, err := Encode(Resync())
	require.NoError(t, err)
	assert.JSONEq(t, `{"type":"resync"}`, string(data))
}
