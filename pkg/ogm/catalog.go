package ogm

import (
	"reflect"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
)

// Go cannot enumerate the types of a package at run time, so packages
// declare their entities once, usually from an init function:
//
//	func init() { ogm.Declare(Person{}, Address{}) }
//
// RegisterEntityPackage then registers every declared type whose package
// path matches.
var catalog struct {
	mu    sync.Mutex
	types []reflect.Type
	seen  map[reflect.Type]bool
}

// Declare adds the types of samples to the package catalog.
func Declare(samples ...any) {
	catalog.mu.Lock()
	defer catalog.mu.Unlock()
	if catalog.seen == nil {
		catalog.seen = make(map[reflect.Type]bool)
	}
	for _, s := range samples {
		t := structType(reflect.TypeOf(s))
		if t == nil || catalog.seen[t] {
			continue
		}
		catalog.seen[t] = true
		catalog.types = append(catalog.types, t)
	}
}

// declaredIn returns the declared types whose package path matches pattern.
// A pattern without glob characters matches the package and its
// subpackages; otherwise doublestar syntax applies ("github.com/acme/**").
func declaredIn(pattern string) []reflect.Type {
	catalog.mu.Lock()
	types := append([]reflect.Type(nil), catalog.types...)
	catalog.mu.Unlock()

	glob := strings.ContainsAny(pattern, "*?[{")
	var out []reflect.Type
	for _, t := range types {
		pkg := t.PkgPath()
		var ok bool
		if glob {
			ok, _ = doublestar.Match(pattern, pkg)
		} else {
			ok = pkg == pattern || strings.HasPrefix(pkg, pattern+"/")
		}
		if ok {
			out = append(out, t)
		}
	}
	return out
}
