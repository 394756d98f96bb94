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
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricRegistryProcesses = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "modtracker_registry_processes",
			Help: "Number of processes with a module set.",
		})

	metricRegistryInserts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modtracker_registry_inserts_total",
			Help: "Module instance inserts by source and outcome.",
		},
		[]string{"source", "result"},
	)

	metricRegistryUnloads = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modtracker_registry_unloads_total",
			Help: "Module instances marked as unloaded.",
		})
)

// Registry maps process ids to their module sets. The outer lock only
// protects the map itself: it is never held while a set is locked.
type Registry struct {
	mu sync.Mutex

	processes map[uint32]*ProcessModuleSet
}

func NewRegistry() *Registry {
	return &Registry{
		processes: make(map[uint32]*ProcessModuleSet),
	}
}

func (self *Registry) GetOrCreateProcessSet(pid uint32) *ProcessModuleSet {
	self.mu.Lock()
	defer self.mu.Unlock()

	set, pres := self.processes[pid]
	if !pres {
		set = newProcessModuleSet(pid)
		self.processes[pid] = set
		metricRegistryProcesses.Inc()
	}
	return set
}

func (self *Registry) Get(pid uint32) (*ProcessModuleSet, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	set, pres := self.processes[pid]
	return set, pres
}

// InsertInstance adds the instance to the process's set. Returns
// false when a loaded instance already occupies the base address, in
// which case nothing changes.
func (self *Registry) InsertInstance(pid uint32, instance *ModuleInstance) bool {
	_, inserted := self.StoreInstance(pid, instance)
	return inserted
}

// StoreInstance is like InsertInstance but also returns the instance
// that ends up stored at the base address.
func (self *Registry) StoreInstance(
	pid uint32, instance *ModuleInstance) (*ModuleInstance, bool) {
	set := self.GetOrCreateProcessSet(pid)
	stored, inserted := set.Insert(instance)
	if inserted {
		metricRegistryInserts.WithLabelValues(instance.Source, "inserted").Inc()
	} else {
		metricRegistryInserts.WithLabelValues(instance.Source, "present").Inc()
	}
	return stored, inserted
}

// MarkUnloaded records the unload of the module at base_address. It
// does not create a set for unknown processes.
func (self *Registry) MarkUnloaded(
	pid uint32, base_address uint64, unload_time time.Time) bool {
	set, pres := self.Get(pid)
	if !pres {
		return false
	}

	ok := set.MarkUnloaded(base_address, unload_time)
	if ok {
		metricRegistryUnloads.Inc()
	}
	return ok
}

// Processes returns all known process ids in ascending order.
func (self *Registry) Processes() []uint32 {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := make([]uint32, 0, len(self.processes))
	for pid := range self.processes {
		result = append(result, pid)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// ProcessesWithModule lists every process that ever mapped the
// module with this catalog id.
func (self *Registry) ProcessesWithModule(id uint32) []uint32 {
	result := []uint32{}
	for _, set := range self.sets() {
		if set.HasModule(id) {
			result = append(result, set.Pid())
		}
	}
	return result
}

func (self *Registry) Len() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return len(self.processes)
}

// Take a copy of the set handles so they can be visited without
// holding the outer lock.
func (self *Registry) sets() []*ProcessModuleSet {
	self.mu.Lock()
	result := make([]*ProcessModuleSet, 0, len(self.processes))
	for _, set := range self.processes {
		result = append(result, set)
	}
	self.mu.Unlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Pid() < result[j].Pid()
	})
	return result
}
