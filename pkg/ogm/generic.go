package ogm

import (
	"context"
	"fmt"
	"reflect"

	"github.com/joss/ogm/pkg/graph"
)

// LoadAs loads the record at rid as a *T, registering T first. A zero rid
// yields nil.
func LoadAs[T any](ctx context.Context, api *ObjectAPI, rid graph.RID) (*T, error) {
	var zero T
	obj, err := api.Load(ctx, rid, zero)
	if err != nil || obj == nil {
		return nil, err
	}
	return cast[T](obj)
}

// LoadManyAs loads the records at rids as []*T.
func LoadManyAs[T any](ctx context.Context, api *ObjectAPI, rids []graph.RID) ([]*T, error) {
	var zero T
	objs, err := api.LoadMany(ctx, rids, zero)
	if err != nil {
		return nil, err
	}
	return castAll[T](objs), nil
}

// QueryAs runs a query and returns the rows that reconstruct to T.
func QueryAs[T any](ctx context.Context, api *ObjectAPI, text string, args ...any) ([]*T, error) {
	var zero T
	if _, err := api.ensureRegistered(ctx, reflect.TypeOf(zero)); err != nil {
		return nil, err
	}
	objs, err := api.Query(ctx, text, args...)
	if err != nil {
		return nil, err
	}
	return castAll[T](objs), nil
}

// FindAll returns every stored T.
func FindAll[T any](ctx context.Context, api *ObjectAPI) ([]*T, error) {
	var zero T
	objs, err := api.FindAll(ctx, zero)
	if err != nil {
		return nil, err
	}
	return castAll[T](objs), nil
}

// Count returns the number of stored T.
func Count[T any](ctx context.Context, api *ObjectAPI) (int64, error) {
	var zero T
	return api.Count(ctx, zero)
}

// SaveAndReturnAs saves obj and reloads it as a fresh *T.
func SaveAndReturnAs[T any](ctx context.Context, api *ObjectAPI, obj *T) (*T, error) {
	out, err := api.SaveAndReturn(ctx, obj)
	if err != nil || out == nil {
		return nil, err
	}
	return cast[T](out)
}

func cast[T any](obj any) (*T, error) {
	p, ok := obj.(*T)
	if !ok {
		var zero T
		return nil, &UnsupportedError{What: fmt.Sprintf("result %T", obj), Subject: "expected *" + reflect.TypeOf(zero).String()}
	}
	return p, nil
}

// castAll keeps the results of type *T.
func castAll[T any](objs []any) []*T {
	out := make([]*T, 0, len(objs))
	for _, obj := range objs {
		if p, ok := obj.(*T); ok {
			out = append(out, p)
		}
	}
	return out
}
