// Package naming gives emulated components stable names. Names are how
// savestates and replay logs refer back to live objects, so they must be
// unique within a machine and must not change between runs.
package naming

import (
	"fmt"
	"strings"
)

// Named describes an object that has a name.
type Named interface {
	// Name returns the name of the object.
	Name() string
}

// NamedBase is a base implementation of Named.
type NamedBase struct {
	name string
}

// Name returns the name.
func (b NamedBase) Name() string {
	return b.name
}

// MakeNamedBase creates a NamedBase. The name must be valid, see
// NameMustBeValid.
func MakeNamedBase(name string) NamedBase {
	NameMustBeValid(name)
	return NamedBase{name: name}
}

// NameMustBeValid panics if the name cannot be used to identify a component.
// A valid name is a series of dot separated tokens, where each token is an
// identifier optionally followed by bracketed indices, e.g.
// "machine.joystick[1]".
func NameMustBeValid(name string) {
	if err := validate(name); err != nil {
		panic(err)
	}
}

func validate(name string) error {
	if name == "" {
		return fmt.Errorf("naming: name must not be empty")
	}

	for _, token := range strings.Split(name, ".") {
		if err := validateToken(token); err != nil {
			return fmt.Errorf("naming: invalid name %q: %w", name, err)
		}
	}

	return nil
}

func validateToken(token string) error {
	elem, indices, _ := strings.Cut(token, "[")
	if elem == "" {
		return fmt.Errorf("empty token")
	}

	for _, c := range elem {
		if !isIdentRune(c) {
			return fmt.Errorf("character %q not allowed", c)
		}
	}

	if indices == "" {
		return nil
	}

	open := 1
	for _, c := range indices {
		switch {
		case c == '[':
			open++
		case c == ']':
			open--
		case c >= '0' && c <= '9':
		default:
			return fmt.Errorf("index must be an integer")
		}

		if open < 0 || open > 1 {
			return fmt.Errorf("brackets do not match")
		}
	}

	if open != 0 {
		return fmt.Errorf("brackets do not match")
	}

	return nil
}

func isIdentRune(c rune) bool {
	return c == '_' || c == '-' ||
		(c >= 'a' && c <= 'z') ||
		(c >= 'A' && c <= 'Z') ||
		(c >= '0' && c <= '9')
}
