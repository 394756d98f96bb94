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
package ingestion

import (
	"unsafe"

	"golang.org/x/sys/windows"
	"www.velocidex.com/golang/modtracker/config"
	"www.velocidex.com/golang/modtracker/constants"
)

const (
	// Both 32 and 64 bit modules of WOW64 processes.
	LIST_MODULES_ALL = 0x03

	native_handle_size = uint32(unsafe.Sizeof(windows.Handle(0)))
)

// PsapiProcessAccessor enumerates modules using psapi.
type PsapiProcessAccessor struct {
	path_capacity int
}

func NewProcessAccessor(config_obj *config.Config) ProcessAccessor {
	path_capacity := constants.DEFAULT_MODULE_PATH_CAPACITY
	if config_obj != nil && config_obj.Tracker != nil &&
		config_obj.Tracker.ModulePathCapacity > 0 {
		path_capacity = config_obj.Tracker.ModulePathCapacity
	}
	return &PsapiProcessAccessor{path_capacity: path_capacity}
}

func (self *PsapiProcessAccessor) OpenProcess(pid uint32) (ProcessHandle, error) {
	handle, err := windows.OpenProcess(
		windows.PROCESS_QUERY_INFORMATION|windows.PROCESS_VM_READ, false, pid)
	if err != nil {
		return 0, err
	}
	return ProcessHandle(handle), nil
}

func (self *PsapiProcessAccessor) EnumerateModules(
	handle ProcessHandle, buffer []ModuleHandle) (uint32, error) {
	var needed uint32
	var first *windows.Handle

	if len(buffer) > 0 {
		first = (*windows.Handle)(unsafe.Pointer(&buffer[0]))
	}

	err := windows.EnumProcessModulesEx(windows.Handle(handle), first,
		uint32(len(buffer))*native_handle_size, &needed, LIST_MODULES_ALL)
	if err != nil {
		return 0, err
	}

	// Report the size in the portable handle size.
	return needed / native_handle_size * constants.MODULE_HANDLE_SIZE, nil
}

func (self *PsapiProcessAccessor) GetModulePath(
	handle ProcessHandle, module ModuleHandle) (string, error) {
	buffer := make([]uint16, self.path_capacity)
	err := windows.GetModuleFileNameEx(windows.Handle(handle),
		windows.Handle(module), &buffer[0], uint32(len(buffer)))
	if err != nil {
		return "", err
	}
	return windows.UTF16ToString(buffer), nil
}

func (self *PsapiProcessAccessor) GetModuleInfo(
	handle ProcessHandle, module ModuleHandle) (ModulePlacement, error) {
	info := windows.ModuleInfo{}
	err := windows.GetModuleInformation(windows.Handle(handle),
		windows.Handle(module), &info, uint32(unsafe.Sizeof(info)))
	if err != nil {
		return ModulePlacement{}, err
	}

	return ModulePlacement{
		Base:       uint64(info.BaseOfDll),
		Size:       info.SizeOfImage,
		EntryPoint: uint64(info.EntryPoint),
	}, nil
}

func (self *PsapiProcessAccessor) CloseHandle(handle ProcessHandle) error {
	return windows.CloseHandle(windows.Handle(handle))
}

// VolumePathResolver checks that the path lies on a mounted volume.
// The path itself is returned unchanged.
type VolumePathResolver struct {
	path_capacity int
}

func NewVolumePathResolver(config_obj *config.Config) *VolumePathResolver {
	path_capacity := constants.DEFAULT_MODULE_PATH_CAPACITY
	if config_obj != nil && config_obj.Tracker != nil &&
		config_obj.Tracker.ModulePathCapacity > 0 {
		path_capacity = config_obj.Tracker.ModulePathCapacity
	}
	return &VolumePathResolver{path_capacity: path_capacity}
}

func (self *VolumePathResolver) VolumePathOf(path string) (string, error) {
	path_w, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return path, err
	}

	buffer := make([]uint16, self.path_capacity)
	err = windows.GetVolumePathName(path_w, &buffer[0], uint32(len(buffer)))
	if err != nil {
		return path, err
	}
	return path, nil
}
