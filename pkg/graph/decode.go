package graph

import (
	"encoding/json"
	"fmt"
	"reflect"
)

type decoder struct {
	arena map[string]map[string]reflect.Value
}

// Decode rebuilds live records from doc. Every record is first allocated
// with the concrete type named by its kind, then its fields are filled and
// every reference is resolved against the allocated records, so aliasing
// in the decoded graph matches the encoded one. On error nothing is
// returned.
func Decode(doc *Document, reg *Registry) (Collections, error) {
	if doc == nil {
		return nil, fmt.Errorf("%w: nil document", ErrMalformed)
	}
	d := &decoder{arena: make(map[string]map[string]reflect.Value, len(doc.Collections))}

	for name, records := range doc.Collections {
		shells := make(map[string]reflect.Value, len(records))
		for id, rec := range records {
			kind, _ := rec[KindKey].(string)
			if kind == "" {
				return nil, fmt.Errorf("%s/%s: %w: missing %s", name, id, ErrMalformed, KindKey)
			}
			t, ok := reg.lookup(kind)
			if !ok {
				return nil, fmt.Errorf("%s/%s: %w: %q", name, id, ErrUnknownKind, kind)
			}
			shells[id] = reflect.New(t)
		}
		d.arena[name] = shells
	}

	out := make(Collections, len(doc.Collections))
	for name, records := range doc.Collections {
		nodes := make(map[string]Node, len(records))
		for id, rec := range records {
			shell := d.arena[name][id]
			if err := d.structValue(shell.Elem(), rec); err != nil {
				return nil, fmt.Errorf("%s/%s: %w", name, id, err)
			}
			n, ok := shell.Interface().(Node)
			if !ok {
				return nil, fmt.Errorf("%s/%s: %w: %s is not a Node", name, id, ErrMalformed, shell.Type())
			}
			if n.NodeID() != id {
				return nil, fmt.Errorf("%s/%s: %w: record id %q", name, id, ErrMalformed, n.NodeID())
			}
			nodes[id] = n
		}
		out[name] = nodes
	}
	return out, nil
}

func asMap(raw any) (map[string]any, bool) {
	switch m := raw.(type) {
	case map[string]any:
		return m, true
	case Record:
		return m, true
	}
	return nil, false
}

func (d *decoder) structValue(dst reflect.Value, raw any) error {
	m, ok := asMap(raw)
	if !ok {
		return fmt.Errorf("%w: want object for %s, got %T", ErrMalformed, dst.Type(), raw)
	}
	for _, f := range fieldsOf(dst.Type()) {
		x, present := m[f.name]
		if !present {
			continue
		}
		fv := dst.FieldByIndex(f.index)
		var err error
		if f.ref != "" {
			err = d.reference(fv, f.ref, x)
		} else {
			err = d.value(fv, x)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", f.name, err)
		}
	}
	return nil
}

func (d *decoder) value(dst reflect.Value, raw any) error {
	if raw == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	t := dst.Type()
	if t.Kind() == reflect.Pointer {
		p := reflect.New(t.Elem())
		if err := d.value(p.Elem(), raw); err != nil {
			return err
		}
		dst.Set(p)
		return nil
	}

	if isLeaf(t) {
		data, err := json.Marshal(raw)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if err := json.Unmarshal(data, dst.Addr().Interface()); err != nil {
			return fmt.Errorf("%w: %s: %v", ErrMalformed, t, err)
		}
		return nil
	}

	switch t.Kind() {
	case reflect.Struct:
		return d.structValue(dst, raw)
	case reflect.Slice, reflect.Array:
		items, ok := raw.([]any)
		if !ok {
			return fmt.Errorf("%w: want array for %s, got %T", ErrMalformed, t, raw)
		}
		if t.Kind() == reflect.Slice {
			dst.Set(reflect.MakeSlice(t, len(items), len(items)))
		} else if len(items) != t.Len() {
			return fmt.Errorf("%w: %s wants %d items, got %d", ErrMalformed, t, t.Len(), len(items))
		}
		for i, x := range items {
			if err := d.value(dst.Index(i), x); err != nil {
				return fmt.Errorf("[%d]: %w", i, err)
			}
		}
		return nil
	case reflect.Map:
		m, ok := asMap(raw)
		if !ok {
			return fmt.Errorf("%w: want object for %s, got %T", ErrMalformed, t, raw)
		}
		if t.Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map key %s", ErrUnsupportedType, t.Key())
		}
		mv := reflect.MakeMapWithSize(t, len(m))
		for k, x := range m {
			ev := reflect.New(t.Elem()).Elem()
			if err := d.value(ev, x); err != nil {
				return fmt.Errorf("[%s]: %w", k, err)
			}
			mv.SetMapIndex(reflect.ValueOf(k).Convert(t.Key()), ev)
		}
		dst.Set(mv)
		return nil
	}
	return fmt.Errorf("%w: %s", ErrUnsupportedType, t)
}

// asRef accepts a Ref produced by Encode or its JSON object form.
func asRef(raw any) (Ref, error) {
	switch r := raw.(type) {
	case Ref:
		return r, nil
	case *Ref:
		return *r, nil
	}
	m, ok := asMap(raw)
	if !ok {
		return Ref{}, fmt.Errorf("%w: want reference, got %T", ErrMalformed, raw)
	}
	coll, _ := m["$ref"].(string)
	var ref Ref
	ref.Collection = coll
	switch ids := m["ids"].(type) {
	case []string:
		ref.IDs = ids
	case []any:
		ref.IDs = make([]string, len(ids))
		for i, x := range ids {
			s, ok := x.(string)
			if !ok {
				return Ref{}, fmt.Errorf("%w: reference id %v", ErrMalformed, x)
			}
			ref.IDs[i] = s
		}
	case nil:
		ref.IDs = []string{}
	default:
		return Ref{}, fmt.Errorf("%w: reference ids %T", ErrMalformed, ids)
	}
	return ref, nil
}

func (d *decoder) lookup(coll, id string) (reflect.Value, error) {
	p, ok := d.arena[coll][id]
	if !ok {
		return reflect.Value{}, fmt.Errorf("%w: %s/%s", ErrDanglingReference, coll, id)
	}
	return p, nil
}

func assign(dst reflect.Value, src reflect.Value) error {
	if !src.Type().AssignableTo(dst.Type()) {
		return fmt.Errorf("%w: %s is not assignable to %s", ErrMalformed, src.Type(), dst.Type())
	}
	dst.Set(src)
	return nil
}

// reference resolves the IDs stored for a reference-tagged field.
func (d *decoder) reference(dst reflect.Value, tagColl string, raw any) error {
	if raw == nil {
		dst.Set(reflect.Zero(dst.Type()))
		return nil
	}
	ref, err := asRef(raw)
	if err != nil {
		return err
	}
	coll := ref.Collection
	if coll == "" {
		coll = tagColl
	}

	t := dst.Type()
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface:
		if len(ref.IDs) != 1 {
			return fmt.Errorf("%w: single reference holds %d ids", ErrMalformed, len(ref.IDs))
		}
		p, err := d.lookup(coll, ref.IDs[0])
		if err != nil {
			return err
		}
		return assign(dst, p)
	case reflect.Slice, reflect.Array:
		if t.Kind() == reflect.Slice {
			dst.Set(reflect.MakeSlice(t, len(ref.IDs), len(ref.IDs)))
		} else if len(ref.IDs) != t.Len() {
			return fmt.Errorf("%w: %s wants %d ids, got %d", ErrMalformed, t, t.Len(), len(ref.IDs))
		}
		for i, id := range ref.IDs {
			p, err := d.lookup(coll, id)
			if err != nil {
				return err
			}
			if err := assign(dst.Index(i), p); err != nil {
				return err
			}
		}
		return nil
	case reflect.Map:
		if t.Key().Kind() != reflect.String {
			return fmt.Errorf("%w: map key %s", ErrUnsupportedType, t.Key())
		}
		mv := reflect.MakeMapWithSize(t, len(ref.IDs))
		for _, id := range ref.IDs {
			p, err := d.lookup(coll, id)
			if err != nil {
				return err
			}
			if !p.Type().AssignableTo(t.Elem()) {
				return fmt.Errorf("%w: %s is not assignable to %s", ErrMalformed, p.Type(), t.Elem())
			}
			mv.SetMapIndex(reflect.ValueOf(id).Convert(t.Key()), p)
		}
		dst.Set(mv)
		return nil
	}
	return fmt.Errorf("%w: %s can not hold a reference", ErrUnsupportedType, t)
}
