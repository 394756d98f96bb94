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
	"time"
)

// Opaque handles issued by the ProcessAccessor.
type ProcessHandle uintptr
type ModuleHandle uintptr

// The placement of a module in the address space of its process.
type ModulePlacement struct {
	Base       uint64
	Size       uint32
	EntryPoint uint64
}

// ProcessAccessor is the OS facility used for bulk enumeration. On
// Windows it is backed by psapi.
type ProcessAccessor interface {
	OpenProcess(pid uint32) (ProcessHandle, error)

	// EnumerateModules fills buffer with as many module handles as
	// fit and returns the number of bytes needed to hold all of them
	// (constants.MODULE_HANDLE_SIZE bytes per handle).
	EnumerateModules(handle ProcessHandle, buffer []ModuleHandle) (uint32, error)

	GetModulePath(handle ProcessHandle, module ModuleHandle) (string, error)
	GetModuleInfo(handle ProcessHandle, module ModuleHandle) (ModulePlacement, error)
	CloseHandle(handle ProcessHandle) error
}

// VolumeResolver normalizes the path reported in an image load
// notification.
type VolumeResolver interface {
	VolumePathOf(path string) (string, error)
}

// ImageLoad is a single image load notification.
type ImageLoad struct {
	ProcessId     uint32
	Path          string
	TimeDateStamp uint32
	ImageBase     uint64
	ImageSize     uint32
	EntryPoint    uint64

	// When the kernel saw the load. May be zero.
	EventTime time.Time
}

type ImageUnload struct {
	ProcessId uint32
	Path      string
	ImageBase uint64
	EventTime time.Time
}

// A resolver that leaves paths alone.
type PassthroughVolumeResolver struct{}

func (self PassthroughVolumeResolver) VolumePathOf(path string) (string, error) {
	return path, nil
}
