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
	"sync"
	"time"

	"github.com/google/btree"
)

func byBaseAddress(a, b *ModuleInstance) bool {
	return a.BaseAddress < b.BaseAddress
}

// ProcessModuleSet holds the modules of a single process ordered by
// base address. Each set has its own lock so processes never contend
// with each other.
type ProcessModuleSet struct {
	mu sync.Mutex

	pid       uint32
	instances *btree.BTreeG[*ModuleInstance]

	// Unloaded instances that were displaced by a later load at the
	// same base address.
	history []*ModuleInstance
}

func newProcessModuleSet(pid uint32) *ProcessModuleSet {
	return &ProcessModuleSet{
		pid:       pid,
		instances: btree.NewG[*ModuleInstance](16, byBaseAddress),
	}
}

func (self *ProcessModuleSet) Pid() uint32 {
	return self.pid
}

// Insert stores the instance at its base address. If a loaded
// instance already sits there, the set is not changed and the
// existing instance is returned together with false. An unloaded
// instance at the same address is moved to the history.
func (self *ProcessModuleSet) Insert(
	instance *ModuleInstance) (*ModuleInstance, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	existing, pres := self.instances.Get(instance)
	if pres {
		if existing.State() == Loaded {
			return existing, false
		}
		self.history = append(self.history, existing)
	}

	self.instances.ReplaceOrInsert(instance)
	return instance, true
}

func (self *ProcessModuleSet) Get(base_address uint64) (*ModuleInstance, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.instances.Get(&ModuleInstance{BaseAddress: base_address})
}

func (self *ProcessModuleSet) MarkUnloaded(
	base_address uint64, unload_time time.Time) bool {
	instance, pres := self.Get(base_address)
	if !pres {
		return false
	}
	return instance.MarkUnloaded(unload_time)
}

// Instances returns the current instances ordered by base address.
func (self *ProcessModuleSet) Instances() []*ModuleInstance {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := make([]*ModuleInstance, 0, self.instances.Len())
	self.instances.Ascend(func(item *ModuleInstance) bool {
		result = append(result, item)
		return true
	})
	return result
}

func (self *ProcessModuleSet) History() []*ModuleInstance {
	self.mu.Lock()
	defer self.mu.Unlock()

	return append([]*ModuleInstance{}, self.history...)
}

func (self *ProcessModuleSet) Len() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return self.instances.Len()
}

// Did this process ever map the module, now or in the past?
func (self *ProcessModuleSet) HasModule(id uint32) bool {
	self.mu.Lock()
	defer self.mu.Unlock()

	found := false
	self.instances.Ascend(func(item *ModuleInstance) bool {
		found = item.Id == id
		return !found
	})
	if found {
		return true
	}

	for _, item := range self.history {
		if item.Id == id {
			return true
		}
	}
	return false
}
