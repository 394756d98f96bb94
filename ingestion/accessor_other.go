//go:build !windows
// +build !windows

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
package ingestion

import (
	"www.velocidex.com/golang/modtracker/config"
	"www.velocidex.com/golang/modtracker/utils"
)

// Module enumeration needs psapi so other platforms get an accessor
// that refuses every process.
type unsupportedProcessAccessor struct{}

func NewProcessAccessor(config_obj *config.Config) ProcessAccessor {
	return unsupportedProcessAccessor{}
}

func (self unsupportedProcessAccessor) OpenProcess(pid uint32) (ProcessHandle, error) {
	return 0, utils.NotImplementedError
}

func (self unsupportedProcessAccessor) EnumerateModules(
	handle ProcessHandle, buffer []ModuleHandle) (uint32, error) {
	return 0, utils.NotImplementedError
}

func (self unsupportedProcessAccessor) GetModulePath(
	handle ProcessHandle, module ModuleHandle) (string, error) {
	return "", utils.NotImplementedError
}

func (self unsupportedProcessAccessor) GetModuleInfo(
	handle ProcessHandle, module ModuleHandle) (ModulePlacement, error) {
	return ModulePlacement{}, utils.NotImplementedError
}

func (self unsupportedProcessAccessor) CloseHandle(handle ProcessHandle) error {
	return nil
}

type VolumePathResolver struct{}

func NewVolumePathResolver(config_obj *config.Config) *VolumePathResolver {
	return &VolumePathResolver{}
}

func (self *VolumePathResolver) VolumePathOf(path string) (string, error) {
	return path, nil
}
