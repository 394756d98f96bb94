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
	"fmt"
	"runtime/debug"
)

// Recover from a panic in a callback we do not control (e.g. an
// ETW session thread). Must be called directly via defer.
func CheckForPanic(msg string, vals ...interface{}) {
	r := recover()
	if r != nil {
		fmt.Printf(msg, vals...)
		fmt.Printf("PANIC %v\n", r)
		debug.PrintStack()
	}
}
