package models

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestCreateGetRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	in := &Model{
		ID:          "gpt-4",
		Name:        "GPT-4",
		Description: "general model",
		Params:      map[string]any{"system": "be helpful"},
		Tags:        []string{"general", "default"},
		IsActive:    true,
	}
	if err := s.Create(ctx, in); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if in.CreatedAt == 0 || in.UpdatedAt == 0 {
		t.Error("timestamps not set on create")
	}

	got, err := s.Get(ctx, "gpt-4")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != in.Name || got.Description != in.Description || !got.IsActive {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.Params["system"] != "be helpful" {
		t.Errorf("params not preserved: %v", got.Params)
	}
	if len(got.Tags) != 2 {
		t.Errorf("tags not preserved: %v", got.Tags)
	}
}

func TestCreateValidation(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, &Model{ID: ""}); !errors.Is(err, ErrInvalidID) {
		t.Errorf("empty id: want ErrInvalidID, got %v", err)
	}
	if err := s.Create(ctx, &Model{ID: strings.Repeat("x", 257)}); !errors.Is(err, ErrInvalidID) {
		t.Errorf("long id: want ErrInvalidID, got %v", err)
	}

	if err := s.Create(ctx, &Model{ID: "dup", Name: "a"}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, &Model{ID: "dup", Name: "b"}); !errors.Is(err, ErrExists) {
		t.Errorf("duplicate id: want ErrExists, got %v", err)
	}
}

func TestUpdateAndDelete(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Update(ctx, &Model{ID: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("update missing: want ErrNotFound, got %v", err)
	}

	m := &Model{ID: "m1", Name: "old", IsActive: true}
	if err := s.Create(ctx, m); err != nil {
		t.Fatalf("Create: %v", err)
	}
	m.Name = "new"
	if err := s.Update(ctx, m); err != nil {
		t.Fatalf("Update: %v", err)
	}
	got, _ := s.Get(ctx, "m1")
	if got.Name != "new" {
		t.Errorf("want updated name, got %q", got.Name)
	}

	if err := s.Delete(ctx, "m1"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, "m1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: want ErrNotFound, got %v", err)
	}
	if err := s.Delete(ctx, "m1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("delete missing: want ErrNotFound, got %v", err)
	}
}

func TestToggle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, &Model{ID: "m1", Name: "m", IsActive: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	m, err := s.Toggle(ctx, "m1")
	if err != nil {
		t.Fatalf("Toggle: %v", err)
	}
	if m.IsActive {
		t.Error("first toggle should deactivate")
	}
	m, _ = s.Toggle(ctx, "m1")
	if !m.IsActive {
		t.Error("second toggle should reactivate")
	}
	if _, err := s.Toggle(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("toggle missing: want ErrNotFound, got %v", err)
	}
}

func TestTagsUnionSorted(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	seed := []*Model{
		{ID: "a", Name: "a", Tags: []string{"code", "general"}},
		{ID: "b", Name: "b", Tags: []string{"general", "vision"}},
		{ID: "c", Name: "c"},
	}
	for _, m := range seed {
		if err := s.Create(ctx, m); err != nil {
			t.Fatalf("Create %s: %v", m.ID, err)
		}
	}

	tags, err := s.Tags(ctx)
	if err != nil {
		t.Fatalf("Tags: %v", err)
	}
	want := []string{"code", "general", "vision"}
	if len(tags) != len(want) {
		t.Fatalf("want %v, got %v", want, tags)
	}
	for i := range want {
		if tags[i] != want[i] {
			t.Errorf("tag %d: want %q, got %q", i, want[i], tags[i])
		}
	}
}

func TestSearchPagingAndFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	for i := 0; i < PageSize+5; i++ {
		m := &Model{
			ID:       fmt.Sprintf("model-%02d", i),
			Name:     fmt.Sprintf("Model %02d", i),
			IsActive: true,
		}
		if i%2 == 0 {
			m.Tags = []string{"even"}
		}
		if err := s.Create(ctx, m); err != nil {
			t.Fatalf("Create: %v", err)
		}
	}

	page1, total, err := s.Search(ctx, Filter{Page: 1})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if total != PageSize+5 {
		t.Errorf("want total %d, got %d", PageSize+5, total)
	}
	if len(page1) != PageSize {
		t.Errorf("want full page of %d, got %d", PageSize, len(page1))
	}
	page2, _, err := s.Search(ctx, Filter{Page: 2})
	if err != nil {
		t.Fatalf("Search page 2: %v", err)
	}
	if len(page2) != 5 {
		t.Errorf("want 5 on page 2, got %d", len(page2))
	}
	if page1[0].ID != "model-00" {
		t.Errorf("default order should be name asc, got first %q", page1[0].ID)
	}

	desc, _, err := s.Search(ctx, Filter{OrderBy: "name", Direction: "desc", Page: 1})
	if err != nil {
		t.Fatalf("Search desc: %v", err)
	}
	if desc[0].ID != fmt.Sprintf("model-%02d", PageSize+4) {
		t.Errorf("desc order: got first %q", desc[0].ID)
	}

	byQuery, total, err := s.Search(ctx, Filter{Query: "model-03"})
	if err != nil {
		t.Fatalf("Search query: %v", err)
	}
	if total != 1 || len(byQuery) != 1 || byQuery[0].ID != "model-03" {
		t.Errorf("query filter: total=%d items=%v", total, byQuery)
	}

	_, evenTotal, err := s.Search(ctx, Filter{Tag: "even"})
	if err != nil {
		t.Fatalf("Search tag: %v", err)
	}
	if evenTotal != (PageSize+5+1)/2 {
		t.Errorf("tag filter: want %d, got %d", (PageSize+5+1)/2, evenTotal)
	}
}

func TestActiveAndResolve(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.Create(ctx, &Model{ID: "on", Name: "on", IsActive: true}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	if err := s.Create(ctx, &Model{ID: "off", Name: "off", IsActive: false}); err != nil {
		t.Fatalf("Create: %v", err)
	}

	active, err := s.Active(ctx)
	if err != nil {
		t.Fatalf("Active: %v", err)
	}
	if len(active) != 1 || active[0].ID != "on" {
		t.Errorf("want only active model, got %v", active)
	}

	for id, want := range map[string]bool{"on": true, "off": false, "missing": false} {
		ok, err := s.Resolve(ctx, id)
		if err != nil {
			t.Fatalf("Resolve(%q): %v", id, err)
		}
		if ok != want {
			t.Errorf("Resolve(%q): want %v, got %v", id, want, ok)
		}
	}
}
