package graph

import (
	"fmt"
	"strings"
)

// BaseClass is the root a schema class extends.
type BaseClass string

const (
	BaseVertex BaseClass = "V"
	BaseEdge   BaseClass = "E"
)

// PropertyType is the declared storage type of a schema property.
type PropertyType int

const (
	TypeAny PropertyType = iota
	TypeString
	TypeBoolean
	TypeByte
	TypeDate
	TypeDateTime
	TypeDecimal
	TypeDouble
	TypeFloat
	TypeInteger
	TypeLong
	TypeShort
	TypeEmbeddedList
	TypeEmbeddedSet
)

var propertyTypeNames = [...]string{
	TypeAny:          "ANY",
	TypeString:       "STRING",
	TypeBoolean:      "BOOLEAN",
	TypeByte:         "BYTE",
	TypeDate:         "DATE",
	TypeDateTime:     "DATETIME",
	TypeDecimal:      "DECIMAL",
	TypeDouble:       "DOUBLE",
	TypeFloat:        "FLOAT",
	TypeInteger:      "INTEGER",
	TypeLong:         "LONG",
	TypeShort:        "SHORT",
	TypeEmbeddedList: "EMBEDDEDLIST",
	TypeEmbeddedSet:  "EMBEDDEDSET",
}

func (t PropertyType) String() string {
	if t >= 0 && int(t) < len(propertyTypeNames) {
		return propertyTypeNames[t]
	}
	return fmt.Sprintf("PropertyType(%d)", int(t))
}

// ParsePropertyType is the inverse of PropertyType.String.
func ParsePropertyType(s string) (PropertyType, error) {
	for i, name := range propertyTypeNames {
		if strings.EqualFold(name, s) {
			return PropertyType(i), nil
		}
	}
	return TypeAny, fmt.Errorf("unknown property type %q", s)
}

// IndexKind is the kind of a schema index.
type IndexKind string

const (
	IndexUnique        IndexKind = "UNIQUE"
	IndexNotUnique     IndexKind = "NOTUNIQUE"
	IndexFullText      IndexKind = "FULLTEXT"
	IndexDictionary    IndexKind = "DICTIONARY"
	IndexUniqueHash    IndexKind = "UNIQUE_HASH_INDEX"
	IndexNotUniqueHash IndexKind = "NOTUNIQUE_HASH_INDEX"
)

var indexKindAliases = map[string]IndexKind{
	"unique":               IndexUnique,
	"notunique":            IndexNotUnique,
	"fulltext":             IndexFullText,
	"dictionary":           IndexDictionary,
	"unique_hash":          IndexUniqueHash,
	"unique_hash_index":    IndexUniqueHash,
	"notunique_hash":       IndexNotUniqueHash,
	"notunique_hash_index": IndexNotUniqueHash,
}

// ParseIndexKind accepts the short tag spelling ("unique_hash") as well as
// the full kind name ("UNIQUE_HASH_INDEX").
func ParseIndexKind(s string) (IndexKind, error) {
	if k, ok := indexKindAliases[strings.ToLower(strings.TrimSpace(s))]; ok {
		return k, nil
	}
	return "", fmt.Errorf("unknown index kind %q", s)
}

// Unique reports whether the index rejects duplicate keys.
func (k IndexKind) Unique() bool {
	return k == IndexUnique || k == IndexUniqueHash
}

// ClassInfo describes a schema class.
type ClassInfo struct {
	Name       string
	Base       BaseClass
	Properties map[string]PropertyType
	Indexes    []IndexInfo
}

// IndexInfo describes a schema index.
type IndexInfo struct {
	Name       string
	Kind       IndexKind
	Properties []string
}
