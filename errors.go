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
	"context"
	"errors"
	"fmt"
)

// Error kinds. Errors returned by this package wrap exactly one of these
// and can be tested with errors.Is.
var (
	// ErrConfiguration indicates invalid options or a missing template tree.
	ErrConfiguration = errors.New("configuration error")

	// ErrToolSpawn indicates that an external tool could not be started.
	ErrToolSpawn = errors.New("tool spawn error")

	// ErrToolExecution indicates that an external tool exited unsuccessfully.
	ErrToolExecution = errors.New("tool execution error")

	// ErrIO indicates a file read, write or parse failure.
	ErrIO = errors.New("i/o error")

	// ErrCancelled indicates that the run was cancelled or timed out.
	ErrCancelled = errors.New("cancelled")
)

// kindError attaches an error kind to an underlying error.
type kindError struct {
	kind error
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }
func (e *kindError) Is(target error) bool {
	return target == e.kind
}

var kinds = []error{ErrCancelled, ErrConfiguration, ErrToolSpawn, ErrToolExecution, ErrIO}

// kindOf returns the error kind wrapped by err, or nil.
func kindOf(err error) error {
	for _, k := range kinds {
		if errors.Is(err, k) {
			return k
		}
	}
	return nil
}

// withKind attaches kind to err unless err already has a kind.
func withKind(kind, err error) error {
	if err == nil {
		return nil
	}
	if kindOf(err) != nil {
		return err
	}
	return &kindError{kind: kind, err: err}
}

func configError(err error) error { return withKind(ErrConfiguration, err) }
func ioError(err error) error     { return withKind(ErrIO, err) }

// cancelError converts a context error into a Cancelled error.
func cancelError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return withKind(ErrCancelled, fmt.Errorf("windninja: %w", err))
	}
	return withKind(ErrCancelled, err)
}

// ToolError is returned when an external tool exits with a non-zero status.
type ToolError struct {
	Tool     string
	ExitCode int
	Log      string // path to the captured output
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("windninja: %s exited with status %d (see %s)", e.Tool, e.ExitCode, e.Log)
}

// Is reports whether target is ErrToolExecution.
func (e *ToolError) Is(target error) bool { return target == ErrToolExecution }

// StageError reports the pipeline stage in which a run failed.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("windninja: stage %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// Kind returns the error kind of the failure, or nil if it is
// not one of the package's kinds.
func (e *StageError) Kind() error { return kindOf(e.Err) }
