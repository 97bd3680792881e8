package models

import (
	"errors"
	"reflect"
	"testing"
)

func TestNewEntities_AllCategories(t *testing.T) {
	e := NewEntities()
	if len(e) != 6 {
		t.Fatalf("len = %d, want 6", len(e))
	}
	for _, c := range EntityCategories {
		v, ok := e[c]
		if !ok {
			t.Errorf("missing %s", c)
		}
		if v == nil || len(v) != 0 {
			t.Errorf("%s = %v, want empty non-nil", c, v)
		}
	}
}

func TestEntities_Normalize(t *testing.T) {
	e := Entities{EntityPerson: {"Zoe", "Adam", "Zoe", "adam"}}
	e.Normalize()
	if want := []string{"Adam", "Zoe", "adam"}; !reflect.DeepEqual(e[EntityPerson], want) {
		t.Errorf("PERSON = %v, want %v", e[EntityPerson], want)
	}
	if _, ok := e[EntityConcept]; !ok {
		t.Error("Normalize should add missing categories")
	}
}

func TestEntities_Contains(t *testing.T) {
	e := NewEntities()
	e.Add(EntityLocation, "Paris", "")
	if !e.Contains("Paris") {
		t.Error("expected Paris")
	}
	if e.Contains("") {
		t.Error("empty strings are not added")
	}
}

func TestEntityCategory_Valid(t *testing.T) {
	if !EntityEvent.Valid() {
		t.Error("EVENT should be valid")
	}
	if EntityCategory("MONEY").Valid() {
		t.Error("MONEY is not a category")
	}
}

func TestErrors_Unwrap(t *testing.T) {
	if !IsNotFound(SourceNotFound("abc")) {
		t.Error("SourceNotFound should match ErrNotFound")
	}
	inner := errors.New("timeout")
	err := Collaborator("qdrant", "search", inner)
	if !IsCollaborator(err) || !errors.Is(err, inner) {
		t.Errorf("unexpected chain: %v", err)
	}
	if Collaborator("x", "y", nil) != nil {
		t.Error("nil stays nil")
	}
	if again := Collaborator("other", "op", err); again != err {
		t.Error("already wrapped errors are returned as is")
	}
}
