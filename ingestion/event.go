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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"www.velocidex.com/golang/modtracker/catalog"
	"www.velocidex.com/golang/modtracker/config"
	"www.velocidex.com/golang/modtracker/constants"
	"www.velocidex.com/golang/modtracker/logging"
	"www.velocidex.com/golang/modtracker/registry"
	"www.velocidex.com/golang/modtracker/utils"
)

var (
	metricEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modtracker_events_total",
			Help: "Image notifications ingested by type.",
		},
		[]string{"type"},
	)
)

// EventIngestor registers modules from image load notifications. It
// is called synchronously for each notification.
type EventIngestor struct {
	catalog  *catalog.Catalog
	registry *registry.Registry
	resolver VolumeResolver
	logger   *logging.LogContext
}

func NewEventIngestor(
	config_obj *config.Config,
	catalog *catalog.Catalog,
	registry *registry.Registry,
	resolver VolumeResolver) *EventIngestor {
	if resolver == nil {
		resolver = PassthroughVolumeResolver{}
	}

	return &EventIngestor{
		catalog:  catalog,
		registry: registry,
		resolver: resolver,
		logger:   logging.GetLogger(config_obj, &logging.IngestionComponent),
	}
}

// IngestEvent returns the instance stored at the notified base
// address. This is the existing instance if a live module already
// occupies it.
func (self *EventIngestor) IngestEvent(
	notification *ImageLoad) *registry.ModuleInstance {
	metricEvents.WithLabelValues("load").Inc()

	path, err := self.resolver.VolumePathOf(notification.Path)
	if err != nil {
		self.logger.Error("IngestEvent: Unable to resolve volume path %v: %v",
			notification.Path, err)
		path = notification.Path
	}

	// The key never includes the image timestamp.
	id, descriptor := self.catalog.Resolve(path, 0)

	load_time := notification.EventTime
	if load_time.IsZero() {
		load_time = utils.GetTime().Now()
	}

	instance := registry.NewModuleInstance(id, descriptor,
		notification.ImageBase, notification.ImageSize,
		notification.EntryPoint, load_time, constants.SOURCE_EVENT)

	stored, _ := self.registry.StoreInstance(notification.ProcessId, instance)

	self.logger.Debug("IngestEvent: pid %v loaded %v at %#x (timestamp %#x)",
		notification.ProcessId, path, notification.ImageBase,
		notification.TimeDateStamp)

	return stored
}

// IngestUnload marks the module at the notified base as unloaded.
// Returns false if no live module was there.
func (self *EventIngestor) IngestUnload(notification *ImageUnload) bool {
	metricEvents.WithLabelValues("unload").Inc()

	unload_time := notification.EventTime
	if unload_time.IsZero() {
		unload_time = utils.GetTime().Now()
	}

	ok := self.registry.MarkUnloaded(notification.ProcessId,
		notification.ImageBase, unload_time)
	if !ok {
		self.logger.Debug("IngestUnload: pid %v has no live module at %#x",
			notification.ProcessId, notification.ImageBase)
	}
	return ok
}
