//go:build windows
// +build windows

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
	"golang.org/x/sys/windows"
	"www.velocidex.com/golang/modtracker/utils"
)

// Device names are short, e.g. \Device\HarddiskVolume3
const max_device_name = 1024

type WindowsDeviceNameQuerier struct{}

func (self WindowsDeviceNameQuerier) DeviceNameFor(letter byte) (string, error) {
	name, err := windows.UTF16PtrFromString(string(letter) + ":")
	if err != nil {
		return "", err
	}

	buffer := make([]uint16, max_device_name)
	n, err := windows.QueryDosDevice(name, &buffer[0], uint32(len(buffer)))
	if err == windows.ERROR_FILE_NOT_FOUND {
		return "", NotFoundError
	}
	if err != nil {
		return "", utils.Wrapf(err, "QueryDosDevice %c:", letter)
	}

	// The result is a list of null terminated strings, the first is
	// the current mapping.
	return windows.UTF16ToString(buffer[:n]), nil
}

func NewDeviceNameQuerier() DeviceNameQuerier {
	return WindowsDeviceNameQuerier{}
}
