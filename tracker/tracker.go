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
// The module tracker owns the shared catalog and registry and wires
// both producers (bulk scans and image load events) into them.
package tracker

import (
	"context"
	"sync"

	"github.com/Velocidex/ordereddict"
	"www.velocidex.com/golang/modtracker/catalog"
	"www.velocidex.com/golang/modtracker/config"
	"www.velocidex.com/golang/modtracker/constants"
	"www.velocidex.com/golang/modtracker/devices"
	"www.velocidex.com/golang/modtracker/ingestion"
	"www.velocidex.com/golang/modtracker/logging"
	"www.velocidex.com/golang/modtracker/registry"
)

// Dependencies replace the OS facilities. Nil members use the
// platform defaults.
type Dependencies struct {
	Accessor ingestion.ProcessAccessor
	Querier  devices.DeviceNameQuerier
	Lister   ingestion.ProcessLister

	// Overrides the resolver selected by path_normalization.
	VolumeResolver ingestion.VolumeResolver
}

type ModuleTracker struct {
	config_obj *config.Config

	catalog  *catalog.Catalog
	registry *registry.Registry

	bulk    *ingestion.BulkIngestor
	events  *ingestion.EventIngestor
	scanner *ingestion.Scanner

	querier devices.DeviceNameQuerier

	// The drive map is only built when first needed.
	drives_once sync.Once
	drives      *devices.DriveLetterMap

	logger *logging.LogContext
}

func NewModuleTracker(
	config_obj *config.Config, deps Dependencies) (*ModuleTracker, error) {
	if config_obj == nil {
		config_obj = config.GetDefaultConfig()
	}

	err := config_obj.Validate()
	if err != nil {
		return nil, err
	}

	if deps.Accessor == nil {
		deps.Accessor = ingestion.NewProcessAccessor(config_obj)
	}

	if deps.Querier == nil {
		deps.Querier = devices.NewDeviceNameQuerier()
	}

	if deps.Lister == nil {
		deps.Lister = ingestion.GopsutilProcessLister{}
	}

	self := &ModuleTracker{
		config_obj: config_obj,
		catalog:    catalog.NewCatalog(),
		registry:   registry.NewRegistry(),
		querier:    deps.Querier,
		logger:     logging.GetLogger(config_obj, &logging.TrackerComponent),
	}

	resolver := deps.VolumeResolver
	if resolver == nil {
		resolver = self.newVolumeResolver()
	}

	self.bulk = ingestion.NewBulkIngestor(
		config_obj, self.catalog, self.registry, deps.Accessor)
	self.events = ingestion.NewEventIngestor(
		config_obj, self.catalog, self.registry, resolver)
	self.scanner = ingestion.NewScanner(config_obj, self.bulk, deps.Lister)

	return self, nil
}

func (self *ModuleTracker) newVolumeResolver() ingestion.VolumeResolver {
	switch self.config_obj.Tracker.PathNormalization {
	case constants.PATH_NORMALIZATION_PASSTHROUGH:
		return ingestion.PassthroughVolumeResolver{}

	case constants.PATH_NORMALIZATION_VOLUME:
		return ingestion.NewVolumePathResolver(self.config_obj)

	default:
		return &lazyDriveResolver{tracker: self}
	}
}

func (self *ModuleTracker) Catalog() *catalog.Catalog {
	return self.catalog
}

func (self *ModuleTracker) Registry() *registry.Registry {
	return self.registry
}

func (self *ModuleTracker) BulkIngestor() *ingestion.BulkIngestor {
	return self.bulk
}

func (self *ModuleTracker) EventIngestor() *ingestion.EventIngestor {
	return self.events
}

func (self *ModuleTracker) Scanner() *ingestion.Scanner {
	return self.scanner
}

// Drives returns the device map, building it on first use.
func (self *ModuleTracker) Drives() *devices.DriveLetterMap {
	self.drives_once.Do(func() {
		self.drives = devices.NewDriveLetterMap(self.querier,
			self.config_obj.Tracker.DriveLetters, self.logger)
		self.logger.Debug("Drives: Found %v mapped drives", self.drives.Len())
	})
	return self.drives
}

// Scan ingests the given processes, or all of them when pids is
// empty.
func (self *ModuleTracker) Scan(
	ctx context.Context, pids []uint32) ingestion.ScanSummary {
	return self.scanner.ScanAll(ctx, pids)
}

// ProcessesForPath lists the processes that ever loaded the module.
// Device paths are normalized the same way events are.
func (self *ModuleTracker) ProcessesForPath(path string) []uint32 {
	descriptor, pres := self.catalog.Lookup(path, 0)
	if !pres {
		translated, ok := self.Drives().Translate(path)
		if !ok {
			return []uint32{}
		}

		descriptor, pres = self.catalog.Lookup(translated, 0)
		if !pres {
			return []uint32{}
		}
	}

	return self.registry.ProcessesWithModule(descriptor.Id)
}

// Rows renders every current module instance, ordered by pid and
// base address.
func (self *ModuleTracker) Rows() []*ordereddict.Dict {
	result := []*ordereddict.Dict{}
	for _, pid := range self.registry.Processes() {
		set, pres := self.registry.Get(pid)
		if !pres {
			continue
		}

		for _, instance := range set.Instances() {
			row := ordereddict.NewDict().Set("Pid", pid)
			row.MergeFrom(instance.ToDict())
			result = append(result, row)
		}
	}
	return result
}

// DescriptorRows renders the catalog in identity order.
func (self *ModuleTracker) DescriptorRows() []*ordereddict.Dict {
	result := []*ordereddict.Dict{}
	for _, descriptor := range self.catalog.Items() {
		result = append(result, ordereddict.NewDict().
			Set("Id", descriptor.Id).
			Set("Path", descriptor.Path).
			Set("BuildTimestamp", descriptor.BuildTimestamp).
			Set("Processes", len(self.registry.ProcessesWithModule(descriptor.Id))))
	}
	return result
}

func (self *ModuleTracker) Close() {
	self.scanner.Close()
}

// Defers building the drive map until the first event needs it.
type lazyDriveResolver struct {
	tracker *ModuleTracker

	once     sync.Once
	resolver *devices.DriveLetterVolumeResolver
}

func (self *lazyDriveResolver) VolumePathOf(path string) (string, error) {
	self.once.Do(func() {
		self.resolver = devices.NewDriveLetterVolumeResolver(self.tracker.Drives())
	})
	return self.resolver.VolumePathOf(path)
}
