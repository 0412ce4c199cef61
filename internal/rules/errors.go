/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package rules

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies a ConfigError.
type ErrorKind int

const (
	// KindSchema means the table header does not match the expected layout.
	KindSchema ErrorKind = iota + 1
	// KindMalformed means a row carries an empty key or a non-numeric value.
	KindMalformed
	// KindNotFound means a (category, label) pair is absent from the store.
	KindNotFound
)

func (k ErrorKind) String() string {
	switch k {
	case KindSchema:
		return "schema"
	case KindMalformed:
		return "malformed"
	case KindNotFound:
		return "not_found"
	}
	return "unknown"
}

// ConfigError reports an invalid rule source or a failed rule lookup.
type ConfigError struct {
	Kind     ErrorKind
	Line     int
	Category string
	Label    string
	Param    string
	Err      error
}

func (e *ConfigError) Error() string {
	var b strings.Builder
	b.WriteString("rules: ")
	b.WriteString(e.Kind.String())
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Category != "" || e.Label != "" {
		fmt.Fprintf(&b, " %s/%s", e.Category, e.Label)
	}
	if e.Param != "" {
		fmt.Fprintf(&b, " %s", e.Param)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConfigError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a ConfigError of kind KindNotFound.
func IsNotFound(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr) && cfgErr.Kind == KindNotFound
}
