package graph

import (
	"fmt"
	"reflect"
)

// visit identifies a container on the current traversal path.
type visit struct {
	ptr uintptr
	typ reflect.Type
	len int
}

type encoder struct {
	onPath map[visit]struct{}
}

// Encode flattens every record of cols. The returned document shares no
// memory with the live graph.
func Encode(cols Collections) (*Document, error) {
	doc := &Document{
		Version:     DocumentVersion,
		Collections: make(map[string]map[string]Record, len(cols)),
	}
	for _, name := range sortedKeys(cols) {
		records := cols[name]
		out := make(map[string]Record, len(records))
		for _, id := range sortedKeys(records) {
			rec, err := EncodeNode(records[id])
			if err != nil {
				return nil, fmt.Errorf("%s/%s: %w", name, id, err)
			}
			out[id] = rec
		}
		doc.Collections[name] = out
	}
	return doc, nil
}

// EncodeNode flattens a single record.
func EncodeNode(n Node) (Record, error) {
	v := reflect.ValueOf(n)
	if v.Kind() != reflect.Pointer || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T is not a pointer to struct", ErrUnsupportedType, n)
	}
	e := &encoder{onPath: make(map[visit]struct{})}
	if err := e.enter(v); err != nil {
		return nil, err
	}
	m, err := e.structValue(v.Elem())
	if err != nil {
		return nil, err
	}
	m[KindKey] = n.NodeKind()
	return Record(m), nil
}

func (e *encoder) enter(v reflect.Value) error {
	k := visit{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		k.len = v.Len()
	}
	if _, ok := e.onPath[k]; ok {
		return fmt.Errorf("%w: %s", ErrCyclicValue, v.Type())
	}
	e.onPath[k] = struct{}{}
	return nil
}

func (e *encoder) leave(v reflect.Value) {
	k := visit{ptr: v.Pointer(), typ: v.Type()}
	if v.Kind() == reflect.Slice {
		k.len = v.Len()
	}
	delete(e.onPath, k)
}

func (e *encoder) value(v reflect.Value) (any, error) {
	switch v.Kind() {
	case reflect.Pointer:
		if v.IsNil() {
			return nil, nil
		}
		if err := e.enter(v); err != nil {
			return nil, err
		}
		defer e.leave(v)
		return e.value(v.Elem())
	case reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: interface %s", ErrUnsupportedType, v.Type())
	}

	if isLeaf(v.Type()) {
		return v.Interface(), nil
	}

	switch v.Kind() {
	case reflect.Struct:
		return e.structValue(v)
	case reflect.Slice:
		if v.IsNil() {
			return nil, nil
		}
		if v.Len() > 0 {
			if err := e.enter(v); err != nil {
				return nil, err
			}
			defer e.leave(v)
		}
		return e.elements(v)
	case reflect.Array:
		return e.elements(v)
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		if v.Type().Key().Kind() != reflect.String {
			return nil, fmt.Errorf("%w: map key %s", ErrUnsupportedType, v.Type().Key())
		}
		if err := e.enter(v); err != nil {
			return nil, err
		}
		defer e.leave(v)
		out := make(map[string]any, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			x, err := e.value(iter.Value())
			if err != nil {
				return nil, err
			}
			out[iter.Key().String()] = x
		}
		return out, nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, v.Type())
}

func (e *encoder) elements(v reflect.Value) ([]any, error) {
	out := make([]any, v.Len())
	for i := range out {
		x, err := e.value(v.Index(i))
		if err != nil {
			return nil, fmt.Errorf("[%d]: %w", i, err)
		}
		out[i] = x
	}
	return out, nil
}

func (e *encoder) structValue(v reflect.Value) (map[string]any, error) {
	fields := fieldsOf(v.Type())
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		fv := v.FieldByIndex(f.index)
		var (
			x   any
			err error
		)
		if f.ref != "" {
			x, err = reference(fv, f.ref)
		} else {
			x, err = e.value(fv)
		}
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f.name, err)
		}
		out[f.name] = x
	}
	return out, nil
}

// reference replaces the records held by a reference-tagged field with their IDs.
func reference(v reflect.Value, coll string) (any, error) {
	switch v.Kind() {
	case reflect.Pointer, reflect.Interface:
		if v.IsNil() {
			return nil, nil
		}
		id, err := nodeID(v)
		if err != nil {
			return nil, err
		}
		return Ref{Collection: coll, IDs: []string{id}}, nil
	case reflect.Slice, reflect.Array:
		if v.Kind() == reflect.Slice && v.IsNil() {
			return nil, nil
		}
		ids := make([]string, v.Len())
		for i := range ids {
			id, err := nodeID(v.Index(i))
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			ids[i] = id
		}
		return Ref{Collection: coll, IDs: ids}, nil
	case reflect.Map:
		if v.IsNil() {
			return nil, nil
		}
		byID := make(map[string]struct{}, v.Len())
		iter := v.MapRange()
		for iter.Next() {
			id, err := nodeID(iter.Value())
			if err != nil {
				return nil, fmt.Errorf("[%v]: %w", iter.Key(), err)
			}
			byID[id] = struct{}{}
		}
		return Ref{Collection: coll, IDs: sortedKeys(byID)}, nil
	}
	return nil, fmt.Errorf("%w: %s holds no record", ErrUnresolvableReference, v.Type())
}

func nodeID(v reflect.Value) (string, error) {
	if (v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface) && v.IsNil() {
		return "", fmt.Errorf("%w: nil record", ErrUnresolvableReference)
	}
	n, ok := v.Interface().(Node)
	if !ok {
		return "", fmt.Errorf("%w: %s has no id", ErrUnresolvableReference, v.Type())
	}
	id := n.NodeID()
	if id == "" {
		return "", fmt.Errorf("%w: %s has an empty id", ErrUnresolvableReference, v.Type())
	}
	return id, nil
}
