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
package registry

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/modtracker/catalog"
)

type LifecycleState int

const (
	Loaded LifecycleState = iota
	Unloaded
)

func (self LifecycleState) String() string {
	switch self {
	case Loaded:
		return "Loaded"
	case Unloaded:
		return "Unloaded"
	}
	return fmt.Sprintf("LifecycleState(%d)", int(self))
}

// ModuleInstance is a single mapping of a module into a process. The
// placement fields are fixed at creation. The only mutable part is
// the lifecycle which moves from Loaded to Unloaded exactly once.
type ModuleInstance struct {
	Id          uint32
	Descriptor  *catalog.ModuleDescriptor
	BaseAddress uint64
	ImageSize   uint32
	EntryPoint  uint64
	LoadTime    time.Time

	// Which producer observed this instance (bulk or event).
	Source string

	// nil while loaded.
	unload_time atomic.Pointer[time.Time]
}

func NewModuleInstance(
	id uint32, descriptor *catalog.ModuleDescriptor,
	base_address uint64, image_size uint32, entry_point uint64,
	load_time time.Time, source string) *ModuleInstance {
	return &ModuleInstance{
		Id:          id,
		Descriptor:  descriptor,
		BaseAddress: base_address,
		ImageSize:   image_size,
		EntryPoint:  entry_point,
		LoadTime:    load_time,
		Source:      source,
	}
}

// MarkUnloaded moves the instance to the Unloaded state. Only the
// first caller succeeds, all others get false and the recorded
// unload time is not changed.
func (self *ModuleInstance) MarkUnloaded(unload_time time.Time) bool {
	return self.unload_time.CompareAndSwap(nil, &unload_time)
}

func (self *ModuleInstance) State() LifecycleState {
	if self.unload_time.Load() == nil {
		return Loaded
	}
	return Unloaded
}

func (self *ModuleInstance) UnloadTime() (time.Time, bool) {
	ts := self.unload_time.Load()
	if ts == nil {
		return time.Time{}, false
	}
	return *ts, true
}

func (self *ModuleInstance) Path() string {
	if self.Descriptor == nil {
		return ""
	}
	return self.Descriptor.Path
}

func (self *ModuleInstance) String() string {
	return fmt.Sprintf("%v@%#x (%v)", self.Path(), self.BaseAddress, self.State())
}

func (self *ModuleInstance) ToDict() *ordereddict.Dict {
	result := ordereddict.NewDict().
		Set("Id", self.Id).
		Set("Path", self.Path()).
		Set("BaseAddress", fmt.Sprintf("%#x", self.BaseAddress)).
		Set("ImageSize", self.ImageSize).
		Set("EntryPoint", fmt.Sprintf("%#x", self.EntryPoint)).
		Set("LoadTime", self.LoadTime).
		Set("State", self.State().String()).
		Set("Source", self.Source)

	unload_time, pres := self.UnloadTime()
	if pres {
		result.Set("UnloadTime", unload_time)
	} else {
		result.Set("UnloadTime", nil)
	}

	return result
}
