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
package devices

import (
	"www.velocidex.com/golang/modtracker/utils"
)

// DriveLetterVolumeResolver normalizes device paths to drive letter
// paths so that both forms of the same file share a catalog entry.
// Paths already in drive letter form are returned unchanged.
type DriveLetterVolumeResolver struct {
	drives *DriveLetterMap
}

func NewDriveLetterVolumeResolver(drives *DriveLetterMap) *DriveLetterVolumeResolver {
	return &DriveLetterVolumeResolver{drives: drives}
}

func (self *DriveLetterVolumeResolver) VolumePathOf(path string) (string, error) {
	if !devicePathRegex.MatchString(path) {
		return path, nil
	}

	translated, ok := self.drives.Translate(path)
	if !ok {
		return path, utils.Wrapf(NotFoundError, "No drive letter for %v", path)
	}
	return translated, nil
}
