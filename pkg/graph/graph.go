// Package graph converts a graph of live, mutually referencing records into a
// flat, ID-keyed document and back.
//
// Struct fields are described with a `graph` tag:
//
//	Owner  *User            `graph:"owner,ref=users"`
//	Shares map[string]*Share `graph:"shares,ref=shares"`
//	Name   string           `graph:"name"`
//
// Fields carrying ref=<collection> are reference-tagged: every record they
// hold is replaced by its ID on Encode and resolved against the named
// top-level collection on Decode. All other fields are deep-copied. A `-`
// tag skips the field; an empty name defaults to the Go field name.
package graph

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"
)

// DocumentVersion is written to every encoded Document.
const DocumentVersion = 1

// KindKey is the record attribute that names the record's registered kind.
const KindKey = "$kind"

var (
	// ErrUnresolvableReference is returned when a reference-tagged value has no ID.
	ErrUnresolvableReference = errors.New("unresolvable reference")
	// ErrDanglingReference is returned when an ID is absent from its collection.
	ErrDanglingReference = errors.New("dangling reference")
	// ErrCyclicValue is returned when a container is reached again on its own path.
	ErrCyclicValue = errors.New("cyclic value")
	// ErrUnknownKind is returned when a record's kind is not registered.
	ErrUnknownKind = errors.New("unknown kind")
	// ErrUnsupportedType is returned for fields the codec can not represent.
	ErrUnsupportedType = errors.New("unsupported type")
	// ErrMalformed is returned when a document does not match the registered types.
	ErrMalformed = errors.New("malformed document")
)

// Node is a record stored in a top-level collection.
type Node interface {
	NodeID() string
	NodeKind() string
}

// Collections are the top-level record maps: collection name -> ID -> record.
type Collections map[string]map[string]Node

// Record is the flat form of one Node.
type Record map[string]any

// Ref is the flat form of a reference-tagged field.
type Ref struct {
	Collection string   `json:"$ref"`
	IDs        []string `json:"ids"`
}

// Document is the flat, acyclic form of a Collections graph.
type Document struct {
	Version     int                          `json:"version"`
	SavedAt     time.Time                    `json:"savedAt"`
	Collections map[string]map[string]Record `json:"collections"`
}

// Marshal encodes a document as JSON.
func Marshal(doc *Document) ([]byte, error) {
	return json.Marshal(doc)
}

// Unmarshal parses a JSON document. Numbers are kept as json.Number so
// integer amounts survive without float conversion.
func Unmarshal(data []byte) (*Document, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if doc.Collections == nil {
		doc.Collections = map[string]map[string]Record{}
	}
	return &doc, nil
}

// Registry maps record kinds to their concrete struct types.
type Registry struct {
	kinds map[string]reflect.Type
}

// NewRegistry returns a registry holding the given prototypes.
func NewRegistry(prototypes ...Node) *Registry {
	r := &Registry{kinds: make(map[string]reflect.Type)}
	for _, p := range prototypes {
		r.Register(p)
	}
	return r
}

// Register records the concrete type of prototype under its kind.
// prototype must be a pointer to a struct.
func (r *Registry) Register(prototype Node) {
	t := reflect.TypeOf(prototype)
	if t.Kind() != reflect.Pointer || t.Elem().Kind() != reflect.Struct {
		panic(fmt.Sprintf("graph: Register requires a pointer to struct, got %s", t))
	}
	kind := prototype.NodeKind()
	if prev, ok := r.kinds[kind]; ok && prev != t.Elem() {
		panic(fmt.Sprintf("graph: kind %q registered twice (%s, %s)", kind, prev, t.Elem()))
	}
	r.kinds[kind] = t.Elem()
}

func (r *Registry) lookup(kind string) (reflect.Type, bool) {
	t, ok := r.kinds[kind]
	return t, ok
}

type fieldInfo struct {
	index []int
	name  string
	ref   string
}

var fieldCache sync.Map // reflect.Type -> []fieldInfo

func fieldsOf(t reflect.Type) []fieldInfo {
	if f, ok := fieldCache.Load(t); ok {
		return f.([]fieldInfo)
	}
	var out []fieldInfo
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		tag := sf.Tag.Get("graph")
		if tag == "-" {
			continue
		}
		name, opts, _ := strings.Cut(tag, ",")
		if name == "" {
			name = sf.Name
		}
		fi := fieldInfo{index: sf.Index, name: name}
		for _, opt := range strings.Split(opts, ",") {
			if coll, ok := strings.CutPrefix(opt, "ref="); ok {
				fi.ref = coll
			}
		}
		out = append(out, fi)
	}
	f, _ := fieldCache.LoadOrStore(t, out)
	return f.([]fieldInfo)
}

var (
	marshalerType   = reflect.TypeFor[json.Marshaler]()
	unmarshalerType = reflect.TypeFor[json.Unmarshaler]()
)

// isLeaf reports whether values of t are copied as opaque JSON values.
func isLeaf(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		return false
	}
	if t.Implements(marshalerType) || reflect.PointerTo(t).Implements(unmarshalerType) {
		return true
	}
	switch t.Kind() {
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	}
	return false
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
