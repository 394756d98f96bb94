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
/*
  The module catalog holds one descriptor for every unique on-disk
  module we have ever observed, keyed by path and build timestamp.

  Many processes map the same binaries so the running instances all
  refer back to a single shared descriptor. Each descriptor gets a
  small integer id on first sight. Ids follow insertion order and are
  never reused because nothing is ever removed from the catalog.
*/

package catalog

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	metricCatalogDescriptors = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "modtracker_catalog_descriptors",
			Help: "Number of unique module descriptors in the catalog.",
		})

	metricCatalogResolve = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modtracker_catalog_resolve_total",
			Help: "Catalog lookups by result.",
		},
		[]string{"result"},
	)
)

// ModuleDescriptor never changes after it is created so it can be
// shared freely without locking.
type ModuleDescriptor struct {
	Id             uint32 `json:"Id"`
	Path           string `json:"Path"`
	BuildTimestamp uint32 `json:"BuildTimestamp"`
}

type descriptorKey struct {
	path            string
	build_timestamp uint32
}

type CatalogStats struct {
	Descriptors  int
	Hits, Misses int64
}

type Catalog struct {
	mu sync.Mutex

	lookup map[descriptorKey]*ModuleDescriptor

	// Indexed by descriptor id.
	items []*ModuleDescriptor

	hits, misses int64
}

func NewCatalog() *Catalog {
	return &Catalog{
		lookup: make(map[descriptorKey]*ModuleDescriptor),
	}
}

// Resolve returns the id and descriptor for the key, creating them if
// this is the first time the key is seen. An existing descriptor is
// returned unchanged.
func (self *Catalog) Resolve(
	path string, build_timestamp uint32) (uint32, *ModuleDescriptor) {
	key := descriptorKey{path: path, build_timestamp: build_timestamp}

	self.mu.Lock()
	defer self.mu.Unlock()

	descriptor, pres := self.lookup[key]
	if pres {
		self.hits++
		metricCatalogResolve.WithLabelValues("hit").Inc()
		return descriptor.Id, descriptor
	}

	descriptor = &ModuleDescriptor{
		Id:             uint32(len(self.items)),
		Path:           path,
		BuildTimestamp: build_timestamp,
	}
	self.lookup[key] = descriptor
	self.items = append(self.items, descriptor)

	self.misses++
	metricCatalogResolve.WithLabelValues("miss").Inc()
	metricCatalogDescriptors.Inc()

	return descriptor.Id, descriptor
}

// Lookup finds an existing descriptor without inserting.
func (self *Catalog) Lookup(
	path string, build_timestamp uint32) (*ModuleDescriptor, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	descriptor, pres := self.lookup[descriptorKey{
		path: path, build_timestamp: build_timestamp}]
	return descriptor, pres
}

func (self *Catalog) Get(id uint32) (*ModuleDescriptor, bool) {
	self.mu.Lock()
	defer self.mu.Unlock()

	if int(id) >= len(self.items) {
		return nil, false
	}
	return self.items[id], true
}

// Items returns all descriptors in id order.
func (self *Catalog) Items() []*ModuleDescriptor {
	self.mu.Lock()
	defer self.mu.Unlock()

	return append([]*ModuleDescriptor{}, self.items...)
}

func (self *Catalog) Len() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return len(self.items)
}

func (self *Catalog) Stats() CatalogStats {
	self.mu.Lock()
	defer self.mu.Unlock()

	return CatalogStats{
		Descriptors: len(self.items),
		Hits:        self.hits,
		Misses:      self.misses,
	}
}
