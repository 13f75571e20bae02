package ogm

import (
	"context"
	"math/big"
	"testing"
	"time"

	"github.com/joss/ogm/internal/logging"
	"github.com/joss/ogm/pkg/graph"
	"github.com/joss/ogm/pkg/graph/memstore"
)

type Color int

const (
	Red Color = iota + 1
	Green
	Blue
)

func (c Color) String() string {
	switch c {
	case Red:
		return "RED"
	case Green:
		return "GREEN"
	case Blue:
		return "BLUE"
	}
	return "Color(?)"
}

func init() {
	RegisterEnum(Red, Green, Blue)
	Declare(Person{}, Address{})
}

type Person struct {
	ID      graph.RID `ogm:",id"`
	Version int64     `ogm:",version"`
	Name    string    `ogm:"name,index=unique"`
	Age     int
	Scratch string `ogm:"-"`
	secret  string
}

type Address struct {
	ID        graph.RID `ogm:",id"`
	Street    string
	Residents []*Resident `ogm:",in=LivesAt"`
}

type Resident struct {
	ID      graph.RID `ogm:",id"`
	Name    string
	Home    *Address    `ogm:",out=LivesAt"`
	Friends []*Resident `ogm:",out=Knows"`
}

type Palette struct {
	ID       graph.RID `ogm:",id"`
	Primary  Color
	Favorite *Color
	Used     map[Color]struct{}
	Weights  []int
	Born     graph.Date
	Seen     time.Time
	Balance  *big.Rat
	Created  string `ogm:",readonly"`
}

type Team struct {
	ID      graph.RID `ogm:",id"`
	Version int       `ogm:",version"`
	Name    string
	Lead    *Player   `ogm:",out=LedBy,cascade=insert|update"`
	Coach   *Player   `ogm:",out=CoachedBy,cascade=none"`
	Members []*Player `ogm:",out=Has"`
}

type Player struct {
	ID      graph.RID `ogm:",id"`
	Version int       `ogm:",version"`
	Name    string
}

type Knows struct {
	EdgeClass
	Since int
}

type Named struct {
	ID   graph.RID `ogm:",id"`
	Name string
}

func (Named) EntityName() string { return "Renamed" }

// Crate holds its sticker by value, as its first field.
type Crate struct {
	Sticker Sticker   `ogm:",out=Labeled"`
	ID      graph.RID `ogm:",id"`
	Name    string
}

type Sticker struct {
	ID   graph.RID `ogm:",id"`
	Text string
}

type House struct {
	ID     graph.RID `ogm:",id"`
	Street string
	Owners []*Landowner `ogm:",in"`
}

type Landowner struct {
	ID    graph.RID `ogm:",id"`
	Name  string
	House *House `ogm:",out"`
}

func newTestAPI(t *testing.T) (*ObjectAPI, *memstore.Session) {
	t.Helper()
	s := memstore.New().Open()
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return New(s, WithRegistry(NewRegistry()), WithLogger(logging.Nop())), s
}
