package ogm

import (
	"context"
	"fmt"
	"math/big"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joss/ogm/pkg/graph"
)

func outEdges(t *testing.T, s graph.Session, class string, rid graph.RID, label string) []*graph.Edge {
	t.Helper()
	edges, err := s.Edges(context.Background(), graph.RestoreVertex(rid, class, 0, nil), graph.Out, label)
	require.NoError(t, err)
	return edges
}

func TestPersonScenario(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)
	require.NoError(t, api.RegisterEntityClass(ctx, Person{}, "Person"))

	rid, err := api.Save(ctx, &Person{Name: "Ann", Age: 30})
	require.NoError(t, err)
	require.False(t, rid.IsZero())

	got, err := LoadAs[Person](ctx, api, rid)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Ann", got.Name)
	assert.Equal(t, 30, got.Age)
	assert.Equal(t, rid, got.ID)
	assert.Equal(t, int64(1), got.Version)

	n, err := Count[Person](ctx, api)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSaveWritesBackIdentity(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	p := &Person{Name: "Ann"}
	rid, err := api.Save(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, rid, p.ID)
	assert.Equal(t, int64(1), p.Version)

	again, err := api.Save(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, rid, again)

	n, err := api.Count(ctx, Person{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), n, "saving a persisted object updates it in place")
}

func TestWriteSuppression(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	p := &Palette{
		Primary:  Green,
		Favorite: ptr(Blue),
		Used:     map[Color]struct{}{Red: {}, Blue: {}},
		Weights:  []int{3, 1, 3},
		Born:     graph.Date{Year: 1990, Month: time.May, Day: 4},
		Seen:     time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC),
		Balance:  big.NewRat(7, 2),
	}
	_, err := api.Save(ctx, p)
	require.NoError(t, err)

	v, err := api.ToDocument(ctx, p)
	require.NoError(t, err)
	assert.Empty(t, v.Dirty(), "unchanged fields must not be rewritten")

	_, err = api.Save(ctx, p)
	require.NoError(t, err)

	p.Weights = append(p.Weights, 4)
	v, err = api.ToDocument(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, []string{"Weights"}, v.Dirty())
}

func TestVersionBumpsOnlyOnChange(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	p := &Player{Name: "Cy"}
	_, err := api.Save(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)

	_, err = api.Save(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 1, p.Version)

	p.Name = "Cyd"
	_, err = api.Save(ctx, p)
	require.NoError(t, err)
	assert.Equal(t, 2, p.Version)
}

func TestRoundTrip(t *testing.T) {
	ctx := context.Background()
	api, s := newTestAPI(t)

	in := &Palette{
		Primary:  Green,
		Favorite: ptr(Blue),
		Used:     map[Color]struct{}{Red: {}, Blue: {}},
		Weights:  []int{3, 1, 3},
		Born:     graph.Date{Year: 1990, Month: time.May, Day: 4},
		Seen:     time.Date(2024, time.January, 2, 3, 4, 5, 0, time.UTC),
		Balance:  big.NewRat(7, 2),
		Created:  "today",
	}
	rid, err := api.Save(ctx, in)
	require.NoError(t, err)

	got, err := LoadAs[Palette](ctx, api, rid)
	require.NoError(t, err)

	assert.Equal(t, Green, got.Primary)
	require.NotNil(t, got.Favorite)
	assert.Equal(t, Blue, *got.Favorite)
	assert.Equal(t, in.Used, got.Used)
	assert.Equal(t, []int{3, 1, 3}, got.Weights)
	assert.Equal(t, in.Born, got.Born)
	assert.True(t, in.Seen.Equal(got.Seen))
	require.NotNil(t, got.Balance)
	assert.Equal(t, 0, in.Balance.Cmp(got.Balance))

	assert.Empty(t, got.Created, "read-only fields are not overwritten on load")
	res, err := s.Load(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, "today", res.(*graph.Vertex).Property("Created"))
	assert.Equal(t, "GREEN", res.(*graph.Vertex).Property("Primary"))
}

func TestUnknownEnumNameReadsAsNull(t *testing.T) {
	ctx := context.Background()
	api, s := newTestAPI(t)
	require.NoError(t, api.RegisterEntityClass(ctx, Palette{}))

	v := s.NewVertex("Palette")
	v.SetProperty("Primary", "PURPLE")
	v.SetProperty("Favorite", "PURPLE")
	v.SetProperty("Used", []any{"RED", "PURPLE"})
	require.NoError(t, s.Save(ctx, v))

	got, err := LoadAs[Palette](ctx, api, v.Identity())
	require.NoError(t, err)
	assert.Equal(t, Color(0), got.Primary)
	assert.Nil(t, got.Favorite)
	assert.Equal(t, map[Color]struct{}{Red: {}}, got.Used)
}

func TestScalarRelationReconciles(t *testing.T) {
	ctx := context.Background()
	api, s := newTestAPI(t)

	first := &Address{Street: "First St"}
	second := &Address{Street: "Second St"}
	r := &Resident{Name: "Bo", Home: first}
	_, err := api.Save(ctx, r)
	require.NoError(t, err)
	require.False(t, first.ID.IsZero(), "cascade insert saves the target")

	edges := outEdges(t, s, "Resident", r.ID, "LivesAt")
	require.Len(t, edges, 1)
	assert.Equal(t, first.ID, edges[0].In())

	r.Home = second
	_, err = api.Save(ctx, r)
	require.NoError(t, err)

	edges = outEdges(t, s, "Resident", r.ID, "LivesAt")
	require.Len(t, edges, 1)
	assert.Equal(t, second.ID, edges[0].In())

	r.Home = nil
	_, err = api.Save(ctx, r)
	require.NoError(t, err)
	assert.Empty(t, outEdges(t, s, "Resident", r.ID, "LivesAt"))
}

func TestCollectionRelationIsAdditive(t *testing.T) {
	ctx := context.Background()
	api, s := newTestAPI(t)

	a := &Resident{Name: "A"}
	b := &Resident{Name: "B"}
	r := &Resident{Name: "R", Friends: []*Resident{a, b}}
	_, err := api.Save(ctx, r)
	require.NoError(t, err)
	assert.Len(t, outEdges(t, s, "Resident", r.ID, "Knows"), 2)

	_, err = api.Save(ctx, r)
	require.NoError(t, err)
	assert.Len(t, outEdges(t, s, "Resident", r.ID, "Knows"), 2, "no duplicate edges")

	r.Friends = r.Friends[:1]
	_, err = api.Save(ctx, r)
	require.NoError(t, err)
	assert.Len(t, outEdges(t, s, "Resident", r.ID, "Knows"), 2, "removed elements keep their edges")

	got, err := LoadAs[Resident](ctx, api, r.ID)
	require.NoError(t, err)
	names := []string{got.Friends[0].Name, got.Friends[1].Name}
	assert.ElementsMatch(t, []string{"A", "B"}, names)
}

func TestCascadePolicy(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	lead := &Player{Name: "Lead"}
	coach := &Player{Name: "Coach"}
	member := &Player{Name: "Member"}
	team := &Team{Name: "Blue", Lead: lead, Coach: coach, Members: []*Player{member}}
	_, err := api.Save(ctx, team)
	require.NoError(t, err)

	for _, p := range []*Player{lead, coach, member} {
		assert.False(t, p.ID.IsZero(), p.Name)
	}

	lead.Name = "Lead 2"
	coach.Name = "Coach 2"
	member.Name = "Member 2"
	_, err = api.Save(ctx, team)
	require.NoError(t, err)
	assert.Equal(t, 1, team.Version)

	got, err := LoadAs[Team](ctx, api, team.ID)
	require.NoError(t, err)
	assert.Equal(t, "Lead 2", got.Lead.Name, "cascade update saves persisted targets")
	assert.Equal(t, 2, got.Lead.Version)
	assert.Equal(t, "Coach", got.Coach.Name)
	require.Len(t, got.Members, 1)
	assert.Equal(t, "Member", got.Members[0].Name)
}

func TestIncomingRelation(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	home := &Address{Street: "Elm"}
	_, err := api.Save(ctx, &Resident{Name: "Bo", Home: home})
	require.NoError(t, err)
	_, err = api.Save(ctx, &Resident{Name: "Cy", Home: home})
	require.NoError(t, err)

	got, err := LoadAs[Address](ctx, api, home.ID)
	require.NoError(t, err)
	require.Len(t, got.Residents, 2)
	names := []string{got.Residents[0].Name, got.Residents[1].Name}
	assert.ElementsMatch(t, []string{"Bo", "Cy"}, names)
	assert.Same(t, got, got.Residents[0].Home, "a vertex reached twice is one instance")
}

func TestReferenceCycle(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	a := &Resident{Name: "A"}
	b := &Resident{Name: "B", Friends: []*Resident{a}}
	a.Friends = []*Resident{b}
	_, err := api.Save(ctx, a)
	require.NoError(t, err)
	require.False(t, a.ID.IsZero())
	require.False(t, b.ID.IsZero())

	got, err := LoadAs[Resident](ctx, api, a.ID)
	require.NoError(t, err)
	require.Len(t, got.Friends, 1)
	assert.Equal(t, "B", got.Friends[0].Name)
	require.Len(t, got.Friends[0].Friends, 1)
	assert.Same(t, got, got.Friends[0].Friends[0])
}

func TestUnregisteredClass(t *testing.T) {
	ctx := context.Background()
	api, s := newTestAPI(t)
	require.NoError(t, s.Schema().CreateClass(ctx, "Ghost", graph.BaseVertex))
	v := s.NewVertex("Ghost")
	require.NoError(t, s.Save(ctx, v))

	_, err := api.Load(ctx, v.Identity())
	require.Error(t, err)
	assert.True(t, IsNotRegistered(err))
	assert.Contains(t, err.Error(), "Ghost")
}

func TestUnsupportedShapes(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	_, err := api.Save(ctx, &Knows{Since: 2020})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = api.Save(ctx, &struct{ X int }{X: 1})
	assert.ErrorIs(t, err, ErrUnsupported)

	_, err = api.Save(ctx, 42)
	assert.ErrorIs(t, err, ErrInvalidObject)

	_, err = api.Save(ctx, (*Person)(nil))
	assert.ErrorIs(t, err, ErrInvalidObject)
}

func TestEdgeClassWithRelationsRejected(t *testing.T) {
	type Likes struct {
		EdgeClass
		Who *Person `ogm:",out"`
	}
	api, _ := newTestAPI(t)
	err := api.RegisterEntityClass(context.Background(), Likes{})
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestToObjectVariants(t *testing.T) {
	ctx := context.Background()
	api, s := newTestAPI(t)

	r := &Resident{Name: "Bo", Home: &Address{Street: "Elm"}}
	_, err := api.Save(ctx, r)
	require.NoError(t, err)

	edges := outEdges(t, s, "Resident", r.ID, "LivesAt")
	require.Len(t, edges, 1)
	obj, err := api.ToObject(ctx, edges[0])
	require.NoError(t, err)
	assert.Equal(t, "Elm", obj.(*Address).Street)

	obj, err = api.ToObject(ctx, graph.NewProjection([]string{"n"}, []any{"x"}))
	require.NoError(t, err)
	assert.Equal(t, "x", obj)

	obj, err = api.ToObject(ctx, graph.NewProjection(nil, nil))
	require.NoError(t, err)
	assert.Nil(t, obj)

	obj, err = api.ToObject(ctx, graph.NewBag(graph.Out, "LivesAt", "#99:1", r.ID))
	require.NoError(t, err)
	list := obj.([]any)
	require.Len(t, list, 1, "missing bag elements are skipped")
	assert.Equal(t, "Bo", list[0].(*Resident).Name)

	obj, err = api.ToObject(ctx, graph.RID(""))
	require.NoError(t, err)
	assert.Nil(t, obj)
}

func TestQueryAndCommand(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	for _, name := range []string{"Ann", "Bob"} {
		_, err := api.Save(ctx, &Person{Name: name, Age: len(name)})
		require.NoError(t, err)
	}

	people, err := QueryAs[Person](ctx, api, "SELECT FROM Person WHERE name = ?", "Ann")
	require.NoError(t, err)
	require.Len(t, people, 1)
	assert.Equal(t, "Ann", people[0].Name)

	rows, err := api.QueryNamed(ctx, "SELECT FROM Person WHERE name = :name", graph.Params{"name": "Bob"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "Bob", rows[0].(*Person).Name)

	rows, err = api.Query(ctx, "SELECT name FROM Person ORDER BY name")
	require.NoError(t, err)
	assert.Equal(t, []any{"Ann", "Bob"}, rows)

	_, err = api.Query(ctx, "DELETE VERTEX Person")
	assert.ErrorIs(t, err, graph.ErrUnsupportedQuery)

	_, err = api.Command(ctx, "DELETE VERTEX Person WHERE name = ?", "Ann")
	require.NoError(t, err)
	_, err = api.CommandNamed(ctx, "DELETE VERTEX Person WHERE name = :name", graph.Params{"name": "Bob"})
	require.NoError(t, err)

	all, err := FindAll[Person](ctx, api)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestLoadMany(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	a, err := api.Save(ctx, &Person{Name: "A"})
	require.NoError(t, err)
	b, err := api.Save(ctx, &Person{Name: "B"})
	require.NoError(t, err)

	got, err := LoadManyAs[Person](ctx, api, []graph.RID{a, "", "#99:99", b})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, "B", got[1].Name)

	none, err := LoadAs[Person](ctx, api, "")
	require.NoError(t, err)
	assert.Nil(t, none)

	_, err = api.Load(ctx, "#99:99")
	assert.True(t, graph.IsNotFound(err))
}

func TestFindAllAndDelete(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	p := &Person{Name: "A"}
	_, err := api.Save(ctx, p)
	require.NoError(t, err)
	_, err = api.Save(ctx, &Person{Name: "B"})
	require.NoError(t, err)

	all, err := FindAll[Person](ctx, api)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	require.NoError(t, api.Delete(ctx, p))
	require.NoError(t, api.Delete(ctx, &Person{Name: "transient"}))

	n, err := Count[Person](ctx, api)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestSaveAndReturn(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	p := &Person{Name: "Ann", Age: 30}
	got, err := SaveAndReturnAs(ctx, api, p)
	require.NoError(t, err)
	assert.NotSame(t, p, got)
	assert.Equal(t, p.ID, got.ID)
	assert.Equal(t, p.Name, got.Name)
	assert.Equal(t, p.Age, got.Age)
}

func TestGetIdentity(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	_, ok := api.GetIdentity(&Person{Name: "new"})
	assert.False(t, ok)

	rid, ok := api.GetIdentity(graph.RID("#9:1"))
	assert.True(t, ok)
	assert.Equal(t, graph.RID("#9:1"), rid)

	_, ok = api.GetIdentity(graph.RID(""))
	assert.False(t, ok)

	p := &Person{Name: "Ann"}
	saved, err := api.Save(ctx, p)
	require.NoError(t, err)
	rid, ok = api.GetIdentity(*p)
	assert.True(t, ok)
	assert.Equal(t, saved, rid)

	_, ok = api.GetIdentity(7)
	assert.False(t, ok)
}

func TestRegisterEntityClassCreatesSchema(t *testing.T) {
	ctx := context.Background()
	api, s := newTestAPI(t)
	require.NoError(t, api.RegisterEntityClass(ctx, &Person{}))

	info, ok, err := s.Schema().Class(ctx, "Person")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, graph.BaseVertex, info.Base)
	assert.Equal(t, graph.TypeString, info.Properties["name"])
	assert.Equal(t, graph.TypeLong, info.Properties["Age"])
	assert.NotContains(t, info.Properties, "Scratch")
	assert.NotContains(t, info.Properties, "ID")
	require.Len(t, info.Indexes, 1)
	assert.Equal(t, "Person.name", info.Indexes[0].Name)
	assert.Equal(t, graph.IndexUnique, info.Indexes[0].Kind)

	_, err = api.Save(ctx, &Person{Name: "Ann"})
	require.NoError(t, err)
	_, err = api.Save(ctx, &Person{Name: "Ann"})
	assert.ErrorIs(t, err, graph.ErrDuplicateKey)
}

func TestRegisterEntityClassExplicitName(t *testing.T) {
	ctx := context.Background()
	api, s := newTestAPI(t)
	require.NoError(t, api.RegisterEntityClass(ctx, Player{}, "Athlete"))

	rid, err := api.Save(ctx, &Player{Name: "Cy"})
	require.NoError(t, err)
	res, err := s.Load(ctx, rid)
	require.NoError(t, err)
	assert.Equal(t, "Athlete", res.(*graph.Vertex).ClassName())

	exists, err := s.Schema().ExistsClass(ctx, "Player")
	require.NoError(t, err)
	assert.False(t, exists)

	assert.ErrorIs(t, api.RegisterEntityClass(ctx, 3), ErrInvalidObject)
}

func TestRegisterEntityPackage(t *testing.T) {
	ctx := context.Background()
	api, s := newTestAPI(t)

	n, err := api.RegisterEntityPackage(ctx, reflect.TypeOf(Person{}).PkgPath())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, 2)

	for _, class := range []string{"Person", "Address"} {
		exists, err := s.Schema().ExistsClass(ctx, class)
		require.NoError(t, err)
		assert.True(t, exists, class)
	}

	n, err = api.RegisterEntityPackage(ctx, "example.com/nothing/**")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestTransactions(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)
	require.NoError(t, api.RegisterEntityClass(ctx, Person{}))

	require.NoError(t, api.Begin(ctx))
	_, err := api.Save(ctx, &Person{Name: "Gone"})
	require.NoError(t, err)
	require.NoError(t, api.Rollback(ctx))

	n, err := Count[Person](ctx, api)
	require.NoError(t, err)
	assert.Zero(t, n)

	require.NoError(t, api.Begin(ctx))
	_, err = api.Save(ctx, &Person{Name: "Kept"})
	require.NoError(t, err)
	require.NoError(t, api.Commit(ctx))

	n, err = Count[Person](ctx, api)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	assert.ErrorIs(t, api.Commit(ctx), graph.ErrNoTransaction)
}

func TestClose(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)

	require.NoError(t, api.Close(ctx))
	assert.NoError(t, api.Close(ctx), "closing twice is logged, not returned")

	_, err := api.Save(ctx, &Person{Name: "late"})
	assert.ErrorIs(t, err, graph.ErrSessionClosed)
}

func TestValueRelationInFirstField(t *testing.T) {
	ctx := context.Background()
	api, s := newTestAPI(t)

	crate := &Crate{Sticker: Sticker{Text: "fragile"}, Name: "books"}
	rid, err := api.Save(ctx, crate)
	require.NoError(t, err)
	require.False(t, crate.Sticker.ID.IsZero())
	assert.NotEqual(t, rid, crate.Sticker.ID)

	edges := outEdges(t, s, "Crate", rid, "Labeled")
	require.Len(t, edges, 1)
	assert.Equal(t, rid, edges[0].Out())
	assert.Equal(t, crate.Sticker.ID, edges[0].In())

	n, err := Count[Sticker](ctx, api)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	got, err := LoadAs[Crate](ctx, api, rid)
	require.NoError(t, err)
	assert.Equal(t, "fragile", got.Sticker.Text)
	assert.Equal(t, "books", got.Name)
}

func TestZeroValueRelationHasNoTarget(t *testing.T) {
	ctx := context.Background()
	api, s := newTestAPI(t)

	crate := &Crate{Name: "empty"}
	rid, err := api.Save(ctx, crate)
	require.NoError(t, err)
	assert.Empty(t, outEdges(t, s, "Crate", rid, "Labeled"))
	n, err := Count[Sticker](ctx, api)
	require.NoError(t, err)
	assert.Zero(t, n)

	crate.Sticker = Sticker{Text: "urgent"}
	_, err = api.Save(ctx, crate)
	require.NoError(t, err)
	require.Len(t, outEdges(t, s, "Crate", rid, "Labeled"), 1)

	crate.Sticker = Sticker{}
	_, err = api.Save(ctx, crate)
	require.NoError(t, err)
	assert.Empty(t, outEdges(t, s, "Crate", rid, "Labeled"))

	got, err := LoadAs[Crate](ctx, api, rid)
	require.NoError(t, err)
	assert.Equal(t, Sticker{}, got.Sticker)
}

func TestDefaultInRelationWithExplicitName(t *testing.T) {
	tests := []struct {
		name  string
		first any
	}{
		{"owner registered first", Landowner{}},
		{"house registered first", House{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			api, s := newTestAPI(t)
			if _, ok := tt.first.(House); ok {
				require.NoError(t, api.RegisterEntityClass(ctx, House{}))
			}
			require.NoError(t, api.RegisterEntityClass(ctx, Landowner{}, "Landlord"))

			owner := &Landowner{Name: "Ann", House: &House{Street: "Main"}}
			rid, err := api.Save(ctx, owner)
			require.NoError(t, err)
			require.Len(t, outEdges(t, s, "Landlord", rid, "LandlordToHouse"), 1)

			house, err := LoadAs[House](ctx, api, owner.House.ID)
			require.NoError(t, err)
			require.Len(t, house.Owners, 1)
			assert.Equal(t, "Ann", house.Owners[0].Name)
			assert.Equal(t, rid, house.Owners[0].ID)
		})
	}
}

func TestLoadWithNilSample(t *testing.T) {
	ctx := context.Background()
	api, _ := newTestAPI(t)
	rid, err := api.Save(ctx, &Person{Name: "Ann"})
	require.NoError(t, err)

	_, err = api.Load(ctx, rid, nil)
	assert.ErrorIs(t, err, ErrInvalidObject)
	_, err = api.LoadMany(ctx, []graph.RID{rid}, nil)
	assert.ErrorIs(t, err, ErrInvalidObject)
	_, err = LoadAs[fmt.Stringer](ctx, api, rid)
	assert.ErrorIs(t, err, ErrInvalidObject)
}
