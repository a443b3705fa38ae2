package metadata

import (
	"context"
	"errors"
	"strings"
)

// ErrSkip can be returned by a WalkFunc to skip the children of a container.
var ErrSkip = errors.New("skip children")

// WalkFunc is called for every object visited by Walk.
type WalkFunc func(obj Object) error

// Walk visits the descendants of c depth first. The context is checked
// before each child, so a cancelled walk stops with ErrCancelled after the
// objects already visited.
func Walk(ctx context.Context, c Container, fn WalkFunc) error {
	children, err := c.Children(ctx)
	if err != nil {
		return err
	}
	for _, child := range children {
		if err := CheckContext(ctx); err != nil {
			return err
		}
		err := fn(child)
		if errors.Is(err, ErrSkip) {
			continue
		}
		if err != nil {
			return err
		}
		if sub, ok := child.(Container); ok {
			if err := Walk(ctx, sub, fn); err != nil {
				return err
			}
		}
	}
	return nil
}

// Find resolves a dotted path below c.
func Find(ctx context.Context, c Container, path []string) (Object, error) {
	var cur Object = c
	for i, name := range path {
		container, ok := cur.(Container)
		if !ok {
			return nil, &ObjectNotFoundError{Parent: QualifiedName(cur), Name: strings.Join(path[i:], ".")}
		}
		next, err := container.Child(ctx, name)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

// FindFrom resolves path relative to start, then relative to each ancestor
// of start in turn. A table referenced as "customers" from a table in schema
// "public" is found as public.customers.
func FindFrom(ctx context.Context, start Object, path []string) (Object, error) {
	var lastErr error
	for cur := start; cur != nil; cur = cur.Parent() {
		c, ok := cur.(Container)
		if !ok {
			continue
		}
		obj, err := Find(ctx, c, path)
		if err == nil {
			return obj, nil
		}
		if !IsNotFound(err) {
			return nil, err
		}
		lastErr = err
	}
	if lastErr == nil {
		lastErr = &ObjectNotFoundError{Name: strings.Join(path, ".")}
	}
	return nil, lastErr
}

// ChildByName picks the child called name from children: an exact match
// first, then a unique case-insensitive match.
func ChildByName(parent Object, children []Object, name string) (Object, error) {
	for _, child := range children {
		if child.Name() == name {
			return child, nil
		}
	}
	var found Object
	for _, child := range children {
		if strings.EqualFold(child.Name(), name) {
			if found != nil {
				found = nil
				break
			}
			found = child
		}
	}
	if found != nil {
		return found, nil
	}
	return nil, &ObjectNotFoundError{Parent: QualifiedName(parent), Name: name}
}

// Tables lists the tables and views directly inside c.
func Tables(ctx context.Context, c Container) ([]Table, error) {
	children, err := c.Children(ctx)
	if err != nil {
		return nil, err
	}
	var out []Table
	for _, child := range children {
		if t, ok := child.(Table); ok {
			out = append(out, t)
		}
	}
	return out, nil
}
