package memstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/ogm/pkg/graph"
)

func newTestSession(t *testing.T, classes ...string) *Session {
	t.Helper()
	s := New().Open()
	ctx := context.Background()
	for _, c := range classes {
		require.NoError(t, s.Schema().CreateClass(ctx, c, graph.BaseVertex))
	}
	return s
}

func TestSaveAndLoad(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "Person")

	v := s.NewVertex("Person")
	v.SetProperty("name", "Ann")
	v.SetProperty("age", int64(30))
	require.NoError(t, s.Save(ctx, v))

	assert.False(t, v.IsNew())
	assert.Equal(t, int64(1), v.Version())

	res, err := s.Load(ctx, v.Identity())
	require.NoError(t, err)
	loaded, ok := res.(*graph.Vertex)
	require.True(t, ok)
	assert.Equal(t, "Person", loaded.ClassName())
	assert.Equal(t, "Ann", loaded.Property("name"))
	assert.Equal(t, int64(30), loaded.Property("age"))
}

func TestSaveUnknownClass(t *testing.T) {
	s := newTestSession(t)
	err := s.Save(context.Background(), s.NewVertex("Ghost"))
	assert.ErrorIs(t, err, graph.ErrClassNotFound)
}

func TestVersionBumpsOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "Person")

	v := s.NewVertex("Person")
	v.SetProperty("name", "Ann")
	require.NoError(t, s.Save(ctx, v))

	require.NoError(t, s.Save(ctx, v))
	assert.Equal(t, int64(1), v.Version())

	v.SetProperty("name", "Bea")
	require.NoError(t, s.Save(ctx, v))
	assert.Equal(t, int64(2), v.Version())

	v.SetProperty("name", nil)
	require.NoError(t, s.Save(ctx, v))
	res, err := s.Load(ctx, v.Identity())
	require.NoError(t, err)
	assert.False(t, res.(*graph.Vertex).HasProperty("name"))
}

func TestSaveCascadesPendingEdges(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "A", "B")

	a := s.NewVertex("A")
	b := s.NewVertex("B")
	e, err := s.NewEdge(ctx, a, b, "AToB")
	require.NoError(t, err)

	edges, err := s.Edges(ctx, a, graph.Out, "AToB")
	require.NoError(t, err)
	assert.Equal(t, []*graph.Edge{e}, edges)

	require.NoError(t, s.Save(ctx, a))
	assert.False(t, b.IsNew())
	assert.False(t, e.IsNew())
	assert.Empty(t, a.Pending())

	res, err := s.Load(ctx, a.Identity())
	require.NoError(t, err)
	bag, ok := res.(*graph.Vertex).Property("out_AToB").(*graph.Bag)
	require.True(t, ok)
	assert.Equal(t, []graph.RID{e.Identity()}, bag.RIDs())

	res, err = s.Load(ctx, b.Identity())
	require.NoError(t, err)
	bag, ok = res.(*graph.Vertex).Property("in_AToB").(*graph.Bag)
	require.True(t, ok)
	assert.Equal(t, graph.In, bag.Direction())

	res, err = s.Load(ctx, e.Identity())
	require.NoError(t, err)
	loadedEdge := res.(*graph.Edge)
	assert.Equal(t, a.Identity(), loadedEdge.Out())
	assert.Equal(t, b.Identity(), loadedEdge.In())

	exists, err := s.Schema().ExistsClass(ctx, "AToB")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestDeleteVertexRemovesEdges(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "A", "B")

	a := s.NewVertex("A")
	b := s.NewVertex("B")
	_, err := s.NewEdge(ctx, a, b, "AToB")
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, a))

	require.NoError(t, s.Delete(ctx, b.Identity()))

	edges, err := s.Edges(ctx, a, graph.Out, "")
	require.NoError(t, err)
	assert.Empty(t, edges)

	_, err = s.Load(ctx, b.Identity())
	assert.True(t, graph.IsNotFound(err))
	assert.True(t, graph.IsNotFound(s.Delete(ctx, b.Identity())))
}

func TestUniqueIndex(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "Person")
	require.NoError(t, s.Schema().CreateIndex(ctx, "Person", "Person.name", graph.IndexUnique, "name"))

	first := s.NewVertex("Person")
	first.SetProperty("name", "Ann")
	require.NoError(t, s.Save(ctx, first))

	second := s.NewVertex("Person")
	second.SetProperty("name", "Ann")
	assert.ErrorIs(t, s.Save(ctx, second), graph.ErrDuplicateKey)

	info, ok, err := s.Schema().Class(ctx, "Person")
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, info.Indexes, 1)
	assert.Equal(t, graph.IndexUnique, info.Indexes[0].Kind)
}

func TestSchemaCreateClassTwice(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "Person")
	assert.ErrorIs(t, s.Schema().CreateClass(ctx, "Person", graph.BaseVertex), graph.ErrClassExists)

	require.NoError(t, s.Schema().CreateProperty(ctx, "Person", "age", graph.TypeLong))
	require.NoError(t, s.Schema().CreateProperty(ctx, "Person", "age", graph.TypeString))
	info, _, err := s.Schema().Class(ctx, "Person")
	require.NoError(t, err)
	assert.Equal(t, graph.TypeLong, info.Properties["age"])

	assert.ErrorIs(t, s.Schema().CreateProperty(ctx, "Ghost", "x", graph.TypeAny), graph.ErrClassNotFound)
}

func seedPeople(t *testing.T, s *Session, names ...string) []*graph.Vertex {
	t.Helper()
	var out []*graph.Vertex
	for i, n := range names {
		v := s.NewVertex("Person")
		v.SetProperty("name", n)
		v.SetProperty("age", int64(20+i))
		require.NoError(t, s.Save(context.Background(), v))
		out = append(out, v)
	}
	return out
}

func TestQuerySubset(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "Person")
	people := seedPeople(t, s, "Ann", "Bob", "Cid")

	tests := []struct {
		name  string
		query string
		args  []any
		want  []string
	}{
		{"all", "SELECT FROM Person", nil, []string{"Ann", "Bob", "Cid"}},
		{"star", "select * from Person", nil, []string{"Ann", "Bob", "Cid"}},
		{"positional", "SELECT FROM Person WHERE name = ?", []any{"Bob"}, []string{"Bob"}},
		{"named", "SELECT FROM Person WHERE age >= :min", []any{graph.Params{"min": 21}}, []string{"Bob", "Cid"}},
		{"literal and", "SELECT FROM Person WHERE age > 19 AND name <> 'Ann'", nil, []string{"Bob", "Cid"}},
		{"order limit", "SELECT FROM Person ORDER BY age DESC LIMIT 2", nil, []string{"Cid", "Bob"}},
		{"rid target", "SELECT FROM " + string(people[0].Identity()), nil, []string{"Ann"}},
		{"is null", "SELECT FROM Person WHERE nick IS NULL AND name = 'Cid'", nil, []string{"Cid"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows, err := s.Query(ctx, tt.query, tt.args...)
			require.NoError(t, err)
			var names []string
			for _, r := range rows {
				v, ok := r.(*graph.Vertex)
				require.True(t, ok)
				names = append(names, v.Property("name").(string))
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestQueryProjections(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "Person")
	seedPeople(t, s, "Ann", "Bob")

	rows, err := s.Query(ctx, s.Dialect().CountAll("Person"))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].(graph.Projection).GetInt64(graph.CountColumn))

	rows, err = s.Query(ctx, "SELECT name AS who, @class FROM Person WHERE age = 21")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	p := rows[0].(graph.Projection)
	assert.Equal(t, []string{"who", "@class"}, p.Columns())
	assert.Equal(t, "Bob", p.GetString("who"))
	assert.Equal(t, "Person", p.GetString("@class"))
}

func TestCommands(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "Person")
	seedPeople(t, s, "Ann", "Bob")

	_, err := s.Query(ctx, "DELETE VERTEX Person")
	assert.ErrorIs(t, err, graph.ErrUnsupportedQuery)

	rows, err := s.Command(ctx, "UPDATE Person SET nick = ? WHERE name = ?", "A", "Ann")
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows[0].(graph.Projection).GetInt64("count"))

	rows, err = s.Query(ctx, "SELECT FROM Person WHERE nick = 'A'")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, int64(2), rows[0].(*graph.Vertex).Version())

	rows, err = s.Command(ctx, "DELETE VERTEX Person WHERE name = :n", graph.Params{"n": "Bob"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows[0].(graph.Projection).GetInt64("count"))

	rows, err = s.Query(ctx, s.Dialect().SelectAll("Person"))
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestQueryErrors(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "Person")
	seedPeople(t, s, "Ann")

	for _, q := range []string{
		"MATCH (n) RETURN n",
		"SELECT FROM Person WHERE name = ?",
		"SELECT FROM Person WHERE name ~ 'x'",
		"SELECT FROM Person LIMIT x",
		"SELECT FROM Person trailing",
	} {
		_, err := s.Query(ctx, q)
		assert.ErrorIs(t, err, graph.ErrUnsupportedQuery, q)
	}

	_, err := s.Query(ctx, "SELECT FROM Ghost")
	assert.ErrorIs(t, err, graph.ErrClassNotFound)
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "Person")

	assert.ErrorIs(t, s.Commit(ctx), graph.ErrNoTransaction)

	require.NoError(t, s.Begin(ctx))
	assert.ErrorIs(t, s.Begin(ctx), graph.ErrTxActive)
	seedPeople(t, s, "Ann")
	require.NoError(t, s.Rollback(ctx))

	rows, err := s.Query(ctx, "SELECT FROM Person")
	require.NoError(t, err)
	assert.Empty(t, rows)

	require.NoError(t, s.Begin(ctx))
	seedPeople(t, s, "Bob")
	require.NoError(t, s.Commit(ctx))

	rows, err = s.Query(ctx, "SELECT FROM Person")
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestSessionsShareStore(t *testing.T) {
	ctx := context.Background()
	store := New()
	first := store.Open()
	require.NoError(t, first.Schema().CreateClass(ctx, "Person", graph.BaseVertex))
	v := first.NewVertex("Person")
	require.NoError(t, first.Save(ctx, v))

	second := store.Open()
	assert.NotEqual(t, first.ID(), second.ID())
	_, err := second.Load(ctx, v.Identity())
	assert.NoError(t, err)
}

func TestClosedSession(t *testing.T) {
	ctx := context.Background()
	s := newTestSession(t, "Person")
	require.NoError(t, s.Begin(ctx))
	seedPeople(t, s, "Ann")
	require.NoError(t, s.Close(ctx))

	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Activate(), graph.ErrSessionClosed)
	assert.ErrorIs(t, s.Close(ctx), graph.ErrSessionClosed)
	_, err := s.Query(ctx, "SELECT FROM Person")
	assert.ErrorIs(t, err, graph.ErrSessionClosed)

	rows, err := s.store.Open().Query(ctx, "SELECT FROM Person")
	require.NoError(t, err)
	assert.Empty(t, rows, "open transaction is rolled back on close")
}
