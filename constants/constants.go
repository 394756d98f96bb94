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
package constants

var (
	VERSION = "0.1.0"
)

const (
	// Initial number of module handle slots offered to the
	// enumeration facility before it tells us how much it needs.
	DEFAULT_MODULE_BUFFER_CAPACITY = 1024

	// UTF-16 code units reserved for a single module path.
	DEFAULT_MODULE_PATH_CAPACITY = 1024

	// Size in bytes of a single module handle slot (HMODULE on 64 bit).
	MODULE_HANDLE_SIZE = 8

	DEFAULT_SCAN_CONCURRENCY = 10
	DEFAULT_FAILED_PID_TTL   = 60

	// Candidate drive letters probed when building the device map.
	DEFAULT_DRIVE_LETTERS = "cdefghijklmnopqrstuvwxy"

	DEFAULT_ETW_SESSION_NAME = "ModTracker"

	// Microsoft-Windows-Kernel-Process
	KERNEL_PROCESS_PROVIDER_GUID = "{22FB2CD6-0E7B-422B-A0C7-2FAD1FD0E716}"

	// WINEVENT_KEYWORD_IMAGE
	KERNEL_PROCESS_IMAGE_KEYWORD = 0x40

	// Event ids emitted by the kernel process provider for images.
	ETW_IMAGE_LOAD_EVENT_ID   = 5
	ETW_IMAGE_UNLOAD_EVENT_ID = 6

	PATH_NORMALIZATION_DRIVE_LETTER = "drive_letter"
	PATH_NORMALIZATION_VOLUME       = "volume"
	PATH_NORMALIZATION_PASSTHROUGH  = "passthrough"

	SOURCE_BULK  = "bulk"
	SOURCE_EVENT = "event"
)
