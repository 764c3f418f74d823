package domain

import "strings"

// ValidateName checks a database or table name. Database names double as
// file names in the JSON store, so path separators and dot names are refused
// for every entity.
func ValidateName(entity, name string) error {
	switch {
	case strings.TrimSpace(name) == "":
		return &InvalidNameError{Entity: entity, Name: name, Reason: "name is empty"}
	case name == "." || name == "..":
		return &InvalidNameError{Entity: entity, Name: name, Reason: "name is reserved"}
	case strings.ContainsAny(name, "/\\\x00"):
		return &InvalidNameError{Entity: entity, Name: name, Reason: "name contains a path separator"}
	}
	return nil
}
