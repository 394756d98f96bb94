/*
Velociraptor - Dig Deeper
Copyright (C) 2019-2025 Rapid7 Inc.

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU Affero General Public License as published
by the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU Affero General Public License for more details.

You should have received a copy of the GNU Affero General Public License
along with this program.  If not, see <https://www.gnu.org/licenses/>.
*/
package utils

import (
	std_errors "errors"

	errors "github.com/go-errors/errors"
	pkg_errors "github.com/pkg/errors"
)

var (
	InvalidArgError     = errors.New("InvalidArgError")
	InvalidConfigError  = errors.New("InvalidConfigError")
	NotFoundError       = errors.New("NotFoundError")
	NotImplementedError = errors.New("Not implemented")

	// Raised when a process can not be opened for enumeration.
	AccessError = errors.New("AccessError")

	// Raised when the module list of an opened process can not be
	// retrieved.
	EnumerationError = errors.New("EnumerationError")
)

// Wrap annotates a sentinel error with a message while keeping it
// detectable with errors.Is()
func Wrap(err error, message string) error {
	return pkg_errors.Wrap(err, message)
}

func Wrapf(err error, format string, args ...interface{}) error {
	return pkg_errors.Wrapf(err, format, args...)
}

func IsNotFound(err error) bool {
	return err != nil && std_errors.Is(err, NotFoundError)
}
