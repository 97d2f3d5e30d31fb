package models

import "strings"

// LocatorType is the addressing scheme of an element locator.
type LocatorType string

const (
	LocatorID    LocatorType = "ID"
	LocatorCSS   LocatorType = "CSS"
	LocatorXPath LocatorType = "XPATH"
)

// Valid reports whether t is one of the known locator schemes.
func (t LocatorType) Valid() bool {
	switch t {
	case LocatorID, LocatorCSS, LocatorXPath:
		return true
	}
	return false
}

// Element is a named page element that steps can target.
type Element struct {
	ID          string      `json:"id"`
	Name        string      `json:"name"`
	Locator     string      `json:"locator"`
	LocatorType LocatorType `json:"locatorType"`
	Description string      `json:"description,omitempty"`
}

// Matches reports whether the element name or locator contains term,
// ignoring case. An empty term matches everything.
func (e Element) Matches(term string) bool {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return true
	}
	return strings.Contains(strings.ToLower(e.Name), term) ||
		strings.Contains(strings.ToLower(e.Locator), term)
}
