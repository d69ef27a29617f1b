/*
Copyright © 2018 the WindNinja authors.
This file is part of WindNinja.

WindNinja is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

WindNinja is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with WindNinja.  If not, see <http://www.gnu.org/licenses/>.
*/

package windninja

import (
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
)

const (
	// DefaultReplaceLimit is the maximum number of times a single token
	// is replaced when rendering boundary and dictionary fields.
	DefaultReplaceLimit = 5

	// CopyReplaceLimit is the maximum number of times a single token
	// is replaced when copying whole files.
	CopyReplaceLimit = 100
)

// ReplaceFirst replaces the first occurrence of token in text with value.
// found reports whether token was present.
func ReplaceFirst(text, token, value string) (out string, found bool) {
	i := strings.Index(text, token)
	if i < 0 {
		return text, false
	}
	return text[:i] + value + text[i+len(token):], true
}

// ReplaceAll repeatedly replaces the first occurrence of token with value
// until the token can no longer be found or maxIterations replacements
// have been made. value may contain token.
func ReplaceAll(text, token, value string, maxIterations int) string {
	if token == "" {
		return text
	}
	for i := 0; i < maxIterations; i++ {
		var found bool
		text, found = ReplaceFirst(text, token, value)
		if !found {
			break
		}
	}
	return text
}

// Substitution is a single token replacement.
type Substitution struct {
	Token, Value string
}

// Substitutions is an ordered set of token replacements. They are applied
// in slice order.
type Substitutions []Substitution

// Add appends a token replacement and returns the extended set.
func (s Substitutions) Add(token, value string) Substitutions {
	return append(s, Substitution{Token: token, Value: value})
}

// Apply performs every substitution in s on text, replacing each token at
// most limit times.
func (s Substitutions) Apply(text string, limit int) string {
	for _, sub := range s {
		text = ReplaceAll(text, sub.Token, sub.Value, limit)
	}
	return text
}

// RenderFile reads the template at src, applies subs and writes the
// result to dst. src and dst may be the same file.
func RenderFile(src, dst string, subs Substitutions, limit int) error {
	b, err := ioutil.ReadFile(src)
	if err != nil {
		return ioError(fmt.Errorf("windninja: reading template: %w", err))
	}
	if err := os.MkdirAll(filepath.Dir(dst), os.ModePerm); err != nil {
		return ioError(fmt.Errorf("windninja: rendering template: %w", err))
	}
	out := subs.Apply(string(b), limit)
	if err := ioutil.WriteFile(dst, []byte(out), 0644); err != nil {
		return ioError(fmt.Errorf("windninja: writing rendered template: %w", err))
	}
	return nil
}

// CopyFile copies src to dst, replacing each token in subs up to
// CopyReplaceLimit times.
func CopyFile(src, dst string, subs Substitutions) error {
	return RenderFile(src, dst, subs, CopyReplaceLimit)
}
