package entity

import (
	"fmt"
	"slices"
)

// AuxCategory names an independently fetchable group of auxiliary fields.
type AuxCategory string

const (
	// Reminders covers both Reminders and RemindersGlobal.
	Reminders AuxCategory = "reminders"
	Flavor    AuxCategory = "flavor"
)

// Categories lists every category in processing order.
var Categories = []AuxCategory{Reminders, Flavor}

// ParseCategory validates a category name.
func ParseCategory(s string) (AuxCategory, error) {
	c := AuxCategory(s)
	if !slices.Contains(Categories, c) {
		return "", fmt.Errorf("unknown auxiliary category %q", s)
	}
	return c, nil
}

func (c AuxCategory) bit() FetchFlags {
	switch c {
	case Reminders:
		return 1 << 0
	case Flavor:
		return 1 << 1
	}
	return 0
}

// FetchFlags is the set of categories that have been successfully fetched.
type FetchFlags uint8

// Has reports whether c is in the set.
func (f FetchFlags) Has(c AuxCategory) bool {
	b := c.bit()
	return b != 0 && f&b == b
}

// With returns the set with c added.
func (f FetchFlags) With(c AuxCategory) FetchFlags { return f | c.bit() }

// Without returns the set with c removed.
func (f FetchFlags) Without(c AuxCategory) FetchFlags { return f &^ c.bit() }

// Set adds or removes c depending on on.
func (f *FetchFlags) Set(c AuxCategory, on bool) {
	if on {
		*f = f.With(c)
	} else {
		*f = f.Without(c)
	}
}

// AuxValue carries the auxiliary fields of one category. Only the fields
// belonging to the category are meaningful.
type AuxValue struct {
	Reminders       []string
	RemindersGlobal []string
	Flavor          string
}

// Aux returns the entity's current value for c.
func (e *Entity) Aux(c AuxCategory) AuxValue {
	switch c {
	case Reminders:
		return AuxValue{
			Reminders:       slices.Clone(e.Reminders),
			RemindersGlobal: slices.Clone(e.RemindersGlobal),
		}
	case Flavor:
		return AuxValue{Flavor: e.Flavor}
	}
	return AuxValue{}
}

// SetAux overwrites the fields of c. Nil lists become empty lists.
func (e *Entity) SetAux(c AuxCategory, v AuxValue) {
	switch c {
	case Reminders:
		e.Reminders = nonNil(slices.Clone(v.Reminders))
		e.RemindersGlobal = nonNil(slices.Clone(v.RemindersGlobal))
	case Flavor:
		e.Flavor = v.Flavor
	}
}

// ClearAux sets the fields of c to their explicit empty value.
func (e *Entity) ClearAux(c AuxCategory) {
	e.SetAux(c, AuxValue{})
}

// HasAux reports whether the entity carries a non-empty value for c.
func (e *Entity) HasAux(c AuxCategory) bool {
	switch c {
	case Reminders:
		return len(e.Reminders) > 0 || len(e.RemindersGlobal) > 0
	case Flavor:
		return e.Flavor != ""
	}
	return false
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
