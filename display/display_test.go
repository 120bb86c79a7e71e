package display

import (
	"bytes"
	"testing"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/softwaremap/kb"
	"github.com/teranos/softwaremap/store"
)

func init() {
	pterm.DisableStyling()
}

func sampleRecords() []store.Record {
	blurb := "A   tile-matching\npuzzle video game originally designed and programmed by Alexey Pajitnov"
	source := kb.BlurbManual
	date := time.Date(1984, 6, 6, 0, 0, 0, 0, time.UTC)
	kind := kb.KindPublication
	return []store.Record{
		{
			Entity: kb.Entity{ID: "Q71910", Label: "Tetris"},
			Annotation: store.Annotation{
				EntityID: "Q71910", CurationEnabled: true,
				Blurb: &blurb, BlurbSource: &source,
				CanonicalDate: &date, CanonicalDateKind: &kind, CanonicalDateDisputed: true,
			},
			Genres: []kb.Entity{{ID: "Q1143", Label: "puzzle video game"}},
		},
		{
			Entity:     kb.Entity{ID: "Q2", Label: "ed"},
			Annotation: store.Annotation{EntityID: "Q2", CurationEnabled: false},
		},
	}
}

func TestRecordRows(t *testing.T) {
	rows := RecordRows(sampleRecords())
	require.Len(t, rows, 3)
	assert.Equal(t, []string{"ID", "Label", "Date", "Kind", "Curated", "Blurb"}, rows[0])
	assert.Equal(t, "1984-06-06 (disputed)", rows[1][2])
	assert.Equal(t, "publication", rows[1][3])
	assert.Equal(t, "yes", rows[1][4])
	assert.LessOrEqual(t, len([]rune(rows[1][5])), maxBlurbWidth)
	assert.Equal(t, []string{"Q2", "ed", "-", "-", "no", "-"}, rows[2])
}

func TestRenderRecord(t *testing.T) {
	r := sampleRecords()[0]
	var buf bytes.Buffer
	require.NoError(t, RenderRecord(&buf, &r))
	out := buf.String()
	assert.Contains(t, out, "Tetris")
	assert.Contains(t, out, "puzzle video game (Q1143)")
	assert.Contains(t, out, "manual")
}

func TestRenderStats(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderStats(&buf, &store.Stats{Entities: 7, Disputed: 2}))
	assert.Contains(t, buf.String(), "Disputed dates")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "a b", Truncate("a\n\tb", 10))
	assert.Equal(t, "abcd…", Truncate("abcdefgh", 5))
	assert.Equal(t, "a", Truncate("abc", 1))
}

func TestShouldOutputJSON(t *testing.T) {
	root := &cobra.Command{Use: "swmap"}
	root.PersistentFlags().Bool("json", false, "")
	child := &cobra.Command{Use: "ls"}
	root.AddCommand(child)

	assert.False(t, ShouldOutputJSON(child))
	require.NoError(t, root.PersistentFlags().Set("json", "true"))
	assert.True(t, ShouldOutputJSON(child))
	assert.False(t, ShouldOutputJSON(nil))
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteJSON(&buf, map[string]int{"entities": 3}))
	assert.Equal(t, "{\n  \"entities\": 3\n}\n", buf.String())
}
