package models

import "sort"

// EntityCategory is one of the closed set of entity categories attached to chunks.
type EntityCategory string

const (
	EntityPerson       EntityCategory = "PERSON"
	EntityOrganization EntityCategory = "ORGANIZATION"
	EntityLocation     EntityCategory = "LOCATION"
	EntityDate         EntityCategory = "DATE"
	EntityEvent        EntityCategory = "EVENT"
	EntityConcept      EntityCategory = "CONCEPT"
)

// EntityCategories lists every category in declaration order.
var EntityCategories = []EntityCategory{
	EntityPerson,
	EntityOrganization,
	EntityLocation,
	EntityDate,
	EntityEvent,
	EntityConcept,
}

// Valid reports whether c belongs to the closed category set.
func (c EntityCategory) Valid() bool {
	for _, known := range EntityCategories {
		if c == known {
			return true
		}
	}
	return false
}

// Entities maps every category to its entity strings.
type Entities map[EntityCategory][]string

// NewEntities returns a mapping with every category present and empty.
func NewEntities() Entities {
	e := make(Entities, len(EntityCategories))
	for _, c := range EntityCategories {
		e[c] = []string{}
	}
	return e
}

// Add appends values to a category. Empty strings are ignored.
func (e Entities) Add(c EntityCategory, values ...string) {
	for _, v := range values {
		if v != "" {
			e[c] = append(e[c], v)
		}
	}
}

// Contains reports whether value is present in any category.
func (e Entities) Contains(value string) bool {
	for _, values := range e {
		for _, v := range values {
			if v == value {
				return true
			}
		}
	}
	return false
}

// Normalize deduplicates and sorts every category, adding missing keys.
func (e Entities) Normalize() {
	for _, c := range EntityCategories {
		values := e[c]
		seen := make(map[string]struct{}, len(values))
		out := make([]string, 0, len(values))
		for _, v := range values {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
		sort.Strings(out)
		e[c] = out
	}
}
