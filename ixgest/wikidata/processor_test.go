package wikidata

import (
	"context"
	"fmt"
	"iter"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/teranos/softwaremap/errors"
	swtest "github.com/teranos/softwaremap/internal/testing"
	"github.com/teranos/softwaremap/internal/httpclient"
	"github.com/teranos/softwaremap/kb"
	kbwd "github.com/teranos/softwaremap/kb/wikidata"
	"github.com/teranos/softwaremap/pulse/schedule"
	"github.com/teranos/softwaremap/reconcile"
	"github.com/teranos/softwaremap/store"
)

type item[T any] struct {
	row T
	err error
}

func seqOf[T any](items []item[T], after func()) iter.Seq2[T, error] {
	return func(yield func(T, error) bool) {
		for _, it := range items {
			if !yield(it.row, it.err) {
				return
			}
		}
		if after != nil {
			after()
		}
	}
}

// fakeSource serves canned rows per query
type fakeSource struct {
	dates        map[kb.PropertyKind][]item[kbwd.DateRow]
	software     []item[kbwd.SoftwareRow]
	classes      []item[kbwd.ClassRow]
	genres       []item[kbwd.GenreRow]
	descriptions map[string]string
	afterDates   func()
	describedIDs [][]string
}

func (f *fakeSource) Dates(_ context.Context, kind kb.PropertyKind) iter.Seq2[kbwd.DateRow, error] {
	return seqOf(f.dates[kind], f.afterDates)
}

func (f *fakeSource) Software(context.Context) iter.Seq2[kbwd.SoftwareRow, error] {
	return seqOf(f.software, nil)
}

func (f *fakeSource) Classes(context.Context) iter.Seq2[kbwd.ClassRow, error] {
	return seqOf(f.classes, nil)
}

func (f *fakeSource) Genres(context.Context) iter.Seq2[kbwd.GenreRow, error] {
	return seqOf(f.genres, nil)
}

func (f *fakeSource) Descriptions(_ context.Context, ids []string) iter.Seq2[kbwd.DescriptionRow, error] {
	f.describedIDs = append(f.describedIDs, append([]string(nil), ids...))
	var items []item[kbwd.DescriptionRow]
	for _, id := range ids {
		if d, ok := f.descriptions[id]; ok {
			items = append(items, item[kbwd.DescriptionRow]{row: kbwd.DescriptionRow{EntityID: id, Description: d}})
		}
	}
	return seqOf(items, nil)
}

func dateRow(id, label, raw string) item[kbwd.DateRow] {
	return item[kbwd.DateRow]{row: kbwd.DateRow{Entity: kb.Entity{ID: id, Label: label}, Raw: raw}}
}

func newProcessor(t *testing.T, src Source, opts Options) (*Processor, *store.Store) {
	t.Helper()
	st := store.New(swtest.CreateTestDB(t))
	opts.Logger = zap.NewNop().Sugar()
	if opts.DisputeThresholdYears == 0 {
		opts.DisputeThresholdYears = reconcile.DefaultDisputeThresholdYears
	}
	return NewProcessor(st, src, opts), st
}

func canonical(t *testing.T, st *store.Store, id string) (string, kb.PropertyKind) {
	t.Helper()
	a, err := st.Get(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, a, "annotation for %s", id)
	require.NotNil(t, a.CanonicalDate, "canonical date for %s", id)
	return reconcile.FormatDate(*a.CanonicalDate), *a.CanonicalDateKind
}

func TestRunDates_ReconcilesAcrossKinds(t *testing.T) {
	src := &fakeSource{dates: map[kb.PropertyKind][]item[kbwd.DateRow]{
		kb.KindPublication: {dateRow("Q1", "Alpha", "1995-01-01T00:00:00Z")},
		kb.KindInception: {
			dateRow("Q1", "Alpha", "1990-06-01T00:00:00Z"),
			dateRow("Q2", "Beta", "1980-01-01T00:00:00Z"),
		},
	}}
	p, st := newProcessor(t, src, Options{})

	res, err := p.RunDates(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowsFetched)
	assert.Equal(t, 2, res.EntitiesCreated)
	assert.Equal(t, 3, res.Observations)

	date, kind := canonical(t, st, "Q1")
	assert.Equal(t, "1995-01-01", date)
	assert.Equal(t, kb.KindPublication, kind)

	date, kind = canonical(t, st, "Q2")
	assert.Equal(t, "1980-01-01", date)
	assert.Equal(t, kb.KindInception, kind)

	e, err := st.GetEntity(context.Background(), "Q1")
	require.NoError(t, err)
	assert.Equal(t, "Alpha", e.Label)
}

func TestRunDates_RerunIsIdempotent(t *testing.T) {
	src := &fakeSource{dates: map[kb.PropertyKind][]item[kbwd.DateRow]{
		kb.KindInception: {dateRow("Q7", "Gamma", "1970-01-01T00:00:00Z")},
	}}
	p, st := newProcessor(t, src, Options{})
	ctx := context.Background()

	_, err := p.RunDates(ctx, nil)
	require.NoError(t, err)
	before, err := st.Get(ctx, "Q7")
	require.NoError(t, err)

	res, err := p.RunDates(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, res.EntitiesCreated)
	assert.Zero(t, res.Observations)

	after, err := st.Get(ctx, "Q7")
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestRunDates_EndpointFailureAbandonsKind(t *testing.T) {
	down := errors.Wrap(errors.ErrEndpointUnreachable, "503 after 3 attempts")
	src := &fakeSource{dates: map[kb.PropertyKind][]item[kbwd.DateRow]{
		kb.KindPublication: {dateRow("Q1", "Alpha", "1995-01-01T00:00:00Z")},
		kb.KindInception: {
			dateRow("Q2", "Beta", "1980-01-01T00:00:00Z"),
			{err: down},
		},
		kb.KindPointInTime: {dateRow("Q3", "Gamma", "2001-01-01T00:00:00Z")},
	}}
	p, st := newProcessor(t, src, Options{})
	ctx := context.Background()

	res, err := p.RunDates(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrEndpointUnreachable))
	assert.Len(t, res.Errors, 1)

	exists, err := st.EntityExists(ctx, "Q2")
	require.NoError(t, err)
	assert.False(t, exists, "rows of the failed kind are not committed")

	for _, id := range []string{"Q1", "Q3"} {
		exists, err := st.EntityExists(ctx, id)
		require.NoError(t, err)
		assert.True(t, exists, "%s from a healthy kind is committed", id)
	}
}

func TestRunDates_SkipsBadRows(t *testing.T) {
	src := &fakeSource{dates: map[kb.PropertyKind][]item[kbwd.DateRow]{
		kb.KindPublication: {
			{err: errors.NewMalformedResultError("row without ?item")},
			dateRow("Q5", "Epsilon", "not a date"),
		},
		kb.KindInception: {dateRow("Q5", "Epsilon", "1977-05-01T00:00:00Z")},
	}}
	p, st := newProcessor(t, src, Options{})

	res, err := p.RunDates(context.Background(), nil)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.RowsSkipped, 2)

	date, kind := canonical(t, st, "Q5")
	assert.Equal(t, "1977-05-01", date)
	assert.Equal(t, kb.KindInception, kind)
}

func TestRunDates_Disputed(t *testing.T) {
	src := &fakeSource{dates: map[kb.PropertyKind][]item[kbwd.DateRow]{
		kb.KindPublication: {
			dateRow("Q9", "Iota", "1960-01-01T00:00:00Z"),
			dateRow("Q9", "Iota", "1985-01-01T00:00:00Z"),
		},
	}}
	p, st := newProcessor(t, src, Options{})

	res, err := p.RunDates(context.Background(), []kb.PropertyKind{kb.KindPublication})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Disputed)

	a, err := st.Get(context.Background(), "Q9")
	require.NoError(t, err)
	assert.True(t, a.CanonicalDateDisputed)
	assert.Equal(t, "1960-01-01", reconcile.FormatDate(*a.CanonicalDate))
}

func TestRunDates_CancelStopsBeforeCommit(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	src := &fakeSource{
		dates: map[kb.PropertyKind][]item[kbwd.DateRow]{
			kb.KindPublication: {dateRow("Q1", "Alpha", "1995"), dateRow("Q2", "Beta", "1996")},
		},
		afterDates: cancel,
	}
	p, st := newProcessor(t, src, Options{})

	res, err := p.RunDates(ctx, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, res.EntitiesCommitted)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Entities)
}

func TestRunDates_DryRun(t *testing.T) {
	src := &fakeSource{dates: map[kb.PropertyKind][]item[kbwd.DateRow]{
		kb.KindInception: {dateRow("Q1", "Alpha", "1990")},
	}}
	p, st := newProcessor(t, src, Options{DryRun: true})

	res, err := p.RunDates(context.Background(), nil)
	require.NoError(t, err)
	assert.True(t, res.DryRun)
	assert.Equal(t, 1, res.CanonicalDates)

	stats, err := st.Stats(context.Background())
	require.NoError(t, err)
	assert.Zero(t, stats.Entities)
}

func TestRunDates_UnknownKind(t *testing.T) {
	p, _ := newProcessor(t, &fakeSource{}, Options{})
	_, err := p.RunDates(context.Background(), []kb.PropertyKind{"release"})
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
}

func TestRunSoftware(t *testing.T) {
	software := kb.Entity{ID: "Q7397", Label: "software"}
	game := kb.Entity{ID: "Q7889", Label: "video game"}
	src := &fakeSource{
		software: []item[kbwd.SoftwareRow]{
			{row: kbwd.SoftwareRow{Entity: kb.Entity{ID: "Q10", Label: "Tetris"}, Class: game}},
			{row: kbwd.SoftwareRow{Entity: kb.Entity{ID: "Q11", Label: "ed"}, Class: software}},
			{err: errors.NewMalformedResultError("bad class")},
			{row: kbwd.SoftwareRow{Entity: kb.Entity{ID: "Q10", Label: "Tetris"}, Class: software}},
		},
		classes: []item[kbwd.ClassRow]{
			{row: kbwd.ClassRow{Class: game, Parent: software}},
		},
	}
	p, st := newProcessor(t, src, Options{BatchSize: 2})
	ctx := context.Background()

	_, err := st.UpsertEntity(ctx, kb.Entity{ID: "Q11", Label: "ed (text editor)"})
	require.NoError(t, err)

	res, err := p.RunSoftware(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, res.RowsFetched)
	assert.Equal(t, 1, res.RowsSkipped)
	assert.Equal(t, 1, res.EntitiesCreated)
	assert.Equal(t, 4, res.Relations, "three memberships and one class edge")

	e, err := st.GetEntity(ctx, "Q11")
	require.NoError(t, err)
	assert.Equal(t, "ed (text editor)", e.Label, "discovery leaves known labels alone")

	classes, err := st.Classes(ctx, "Q10")
	require.NoError(t, err)
	assert.Len(t, classes, 2)
}

func TestRunGenres_OnlyKnownEntities(t *testing.T) {
	puzzle := kb.Entity{ID: "Q1143", Label: "puzzle video game"}
	src := &fakeSource{genres: []item[kbwd.GenreRow]{
		{row: kbwd.GenreRow{EntityID: "Q10", Genre: puzzle}},
		{row: kbwd.GenreRow{EntityID: "Q99", Genre: puzzle}},
	}}
	p, st := newProcessor(t, src, Options{})
	ctx := context.Background()
	_, err := st.UpsertEntity(ctx, kb.Entity{ID: "Q10", Label: "Tetris"})
	require.NoError(t, err)

	res, err := p.RunGenres(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Relations)
	assert.Equal(t, 1, res.RowsSkipped)

	exists, err := st.EntityExists(ctx, "Q99")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestRunBlurbs(t *testing.T) {
	src := &fakeSource{descriptions: map[string]string{
		"Q1": "1984 puzzle video game",
		"Q2": "line-oriented text editor",
		"Q3": "disabled entity description",
	}}
	p, st := newProcessor(t, src, Options{})
	ctx := context.Background()
	for _, id := range []string{"Q1", "Q2", "Q3"} {
		_, err := st.UpsertEntity(ctx, kb.Entity{ID: id})
		require.NoError(t, err)
	}
	require.NoError(t, st.SetBlurb(ctx, "Q2", "Written by hand.", kb.BlurbManual))
	require.NoError(t, st.SetCuration(ctx, "Q3", false))

	res, err := p.RunBlurbs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Blurbs)
	assert.Equal(t, [][]string{{"Q1"}}, src.describedIDs)

	a, err := st.Get(ctx, "Q2")
	require.NoError(t, err)
	assert.Equal(t, "Written by hand.", *a.Blurb)

	a, err = st.Get(ctx, "Q1")
	require.NoError(t, err)
	assert.Equal(t, kb.BlurbScraped, *a.BlurbSource)
}

func TestRunBlurbs_OverwriteManual(t *testing.T) {
	src := &fakeSource{descriptions: map[string]string{"Q2": "line-oriented text editor"}}
	p, st := newProcessor(t, src, Options{OverwriteManual: true})
	ctx := context.Background()
	_, err := st.UpsertEntity(ctx, kb.Entity{ID: "Q2"})
	require.NoError(t, err)
	require.NoError(t, st.SetBlurb(ctx, "Q2", "Written by hand.", kb.BlurbManual))

	res, err := p.RunBlurbs(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Blurbs)

	a, err := st.Get(ctx, "Q2")
	require.NoError(t, err)
	assert.Equal(t, "line-oriented text editor", *a.Blurb)
}

func TestRunBlurbs_Chunks(t *testing.T) {
	src := &fakeSource{descriptions: map[string]string{}}
	p, st := newProcessor(t, src, Options{BatchSize: 2})
	ctx := context.Background()
	for _, id := range []string{"Q1", "Q2", "Q3"} {
		_, err := st.UpsertEntity(ctx, kb.Entity{ID: id})
		require.NoError(t, err)
	}

	_, err := p.RunBlurbs(ctx)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"Q1", "Q2"}, {"Q3"}}, src.describedIDs)
}

func TestRun_TasksAndUnknown(t *testing.T) {
	src := &fakeSource{
		software: []item[kbwd.SoftwareRow]{
			{row: kbwd.SoftwareRow{Entity: kb.Entity{ID: "Q10", Label: "Tetris"}, Class: kb.Entity{ID: "Q7889"}}},
		},
		dates: map[kb.PropertyKind][]item[kbwd.DateRow]{
			kb.KindPublication: {dateRow("Q10", "", "1984-06-06T00:00:00Z")},
		},
	}
	p, st := newProcessor(t, src, Options{})

	results, err := p.Run(context.Background(), []string{TaskDates, TaskSoftware, "bogus"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrInvalidRequest))
	require.Len(t, results, 2)
	assert.Equal(t, TaskSoftware, results[0].Task, "software runs before dates")
	assert.Equal(t, TaskDates, results[1].Task)

	date, _ := canonical(t, st, "Q10")
	assert.Equal(t, "1984-06-06", date)
	e, err := st.GetEntity(context.Background(), "Q10")
	require.NoError(t, err)
	assert.Equal(t, "Tetris", e.Label, "an empty label never erases a known one")
}

func TestTaskFunc_RecordsRuns(t *testing.T) {
	src := &fakeSource{dates: map[kb.PropertyKind][]item[kbwd.DateRow]{
		kb.KindInception: {
			dateRow("Q1", "Alpha", "1990-06-01T00:00:00Z"),
			dateRow("Q2", "Beta", "sometime"),
		},
	}}
	p, st := newProcessor(t, src, Options{})
	runs := schedule.NewRunStore(st.DB())
	runner := schedule.NewRunner(runs, p.TaskFunc(), zap.NewNop().Sugar())

	recorded, err := runner.RunOnce(context.Background(), []string{TaskDates, "bogus"})
	require.Error(t, err)
	require.Len(t, recorded, 2)

	assert.Equal(t, schedule.RunStatusCompleted, recorded[0].Status)
	assert.Equal(t, 2, recorded[0].Processed)
	assert.Equal(t, 1, recorded[0].Skipped)
	assert.Equal(t, schedule.RunStatusFailed, recorded[1].Status)
	assert.Equal(t, schedule.Counts{}, (*Result)(nil).Counts())
}

// TestRunDates_AgainstEndpoint drives the real query executor through an
// httptest SPARQL endpoint that answers per property.
func TestRunDates_AgainstEndpoint(t *testing.T) {
	bodies := map[string]string{
		"P577": `{"head":{"vars":["item","itemLabel","date"]},"results":{"bindings":[
			{"item":{"type":"uri","value":"http://www.wikidata.org/entity/Q42"},"itemLabel":{"type":"literal","value":"Spacewar!"},"date":{"type":"literal","value":"1962-04-01T00:00:00Z"}}]}}`,
		"P571": `{"head":{"vars":["item","itemLabel","date"]},"results":{"bindings":[
			{"item":{"type":"uri","value":"http://www.wikidata.org/entity/Q42"},"itemLabel":{"type":"literal","value":"Spacewar!"},"date":{"type":"literal","value":"1961-01-01T00:00:00Z"}},
			{"item":{"type":"uri","value":"http://www.wikidata.org/entity/Q43"},"itemLabel":{"type":"literal","value":"Tennis for Two"},"date":{"type":"literal","value":"1958-10-18T00:00:00Z"}}]}}`,
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		q := r.Form.Get("query")
		for pid, body := range bodies {
			if strings.Contains(q, "wdt:"+pid+" ") {
				fmt.Fprint(w, body)
				return
			}
		}
		fmt.Fprint(w, `{"head":{"vars":[]},"results":{"bindings":[]}}`)
	}))
	defer server.Close()

	client := kbwd.NewClient(kbwd.Config{
		Endpoint:    server.URL,
		HTTPClient:  httpclient.WrapClient(server.Client(), "softwaremap-test/1.0"),
		MaxAttempts: 1,
	})
	p, st := newProcessor(t, client, Options{})

	res, err := p.RunDates(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 3, res.RowsFetched)

	date, kind := canonical(t, st, "Q42")
	assert.Equal(t, "1962-04-01", date)
	assert.Equal(t, kb.KindPublication, kind)

	date, kind = canonical(t, st, "Q43")
	assert.Equal(t, "1958-10-18", date)
	assert.Equal(t, kb.KindInception, kind)
}
