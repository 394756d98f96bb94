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
// Translates NT device names like \Device\HarddiskVolume3 into the
// drive letters they are mounted on. Module paths reported by the
// kernel use the device form while user mode enumeration reports
// drive letter paths.
package devices

import (
	"regexp"
	"sort"
	"strings"

	"www.velocidex.com/golang/modtracker/logging"
	"www.velocidex.com/golang/modtracker/utils"
)

var (
	// Returned by a DeviceNameQuerier for a letter that is not
	// mapped to any device.
	NotFoundError = utils.NotFoundError

	// \Device\HarddiskVolume3\Windows -> "\Device\HarddiskVolume3", "\Windows"
	devicePathRegex = regexp.MustCompile(`(?i)^(\\Device\\[^/\\]+)([/\\].*)?$`)
)

type DeviceNameQuerier interface {
	// The device name behind the drive letter (e.g. 'c'), or
	// NotFoundError.
	DeviceNameFor(letter byte) (string, error)
}

type DriveLetter struct {
	Letter string
	Device string
}

// DriveLetterMap is built once and never refreshed. Drives mounted
// after construction are not seen.
type DriveLetterMap struct {
	// Keyed by the lower cased device name.
	devices map[string]byte
	items   []DriveLetter
}

func NewDriveLetterMap(
	querier DeviceNameQuerier, letters string,
	logger *logging.LogContext) *DriveLetterMap {
	result := &DriveLetterMap{
		devices: make(map[string]byte),
	}

	for i := 0; i < len(letters); i++ {
		letter := letters[i]
		device, err := querier.DeviceNameFor(letter)
		if utils.IsNotFound(err) {
			continue
		}

		if err != nil {
			if logger != nil {
				logger.Error("DriveLetterMap: Unable to query drive %c: %v",
					letter, err)
			}
			continue
		}

		key := strings.ToLower(device)
		// The first letter wins when a device is mounted twice.
		_, pres := result.devices[key]
		if pres {
			continue
		}

		result.devices[key] = letter
		result.items = append(result.items, DriveLetter{
			Letter: strings.ToUpper(string(letter)) + ":",
			Device: device,
		})
	}

	sort.Slice(result.items, func(i, j int) bool {
		return result.items[i].Letter < result.items[j].Letter
	})

	return result
}

// Lookup returns the drive letter for the device name.
func (self *DriveLetterMap) Lookup(device string) (byte, bool) {
	letter, pres := self.devices[strings.ToLower(device)]
	return letter, pres
}

func (self *DriveLetterMap) Items() []DriveLetter {
	return append([]DriveLetter{}, self.items...)
}

func (self *DriveLetterMap) Len() int {
	return len(self.items)
}

// Translate rewrites a device path to its drive letter form. Only a
// whole device component matches so \Device\HarddiskVolume1 does not
// match \Device\HarddiskVolume10\foo.
func (self *DriveLetterMap) Translate(path string) (string, bool) {
	m := devicePathRegex.FindStringSubmatch(path)
	if len(m) == 0 {
		return path, false
	}

	letter, pres := self.Lookup(m[1])
	if !pres {
		return path, false
	}

	rest := m[2]
	if rest == "" {
		rest = "\\"
	}

	return strings.ToUpper(string(letter)) + ":" + rest, true
}
