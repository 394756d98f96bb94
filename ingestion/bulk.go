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
	"context"

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
	metricBulkIngestions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modtracker_bulk_ingestions_total",
			Help: "Bulk enumerations by outcome.",
		},
		[]string{"result"},
	)

	metricBulkModuleErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "modtracker_bulk_module_errors_total",
			Help: "Modules whose path or placement could not be resolved.",
		},
		[]string{"kind"},
	)

	metricBulkEnumerateCalls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modtracker_bulk_enumerate_calls_total",
			Help: "Calls made to the module enumeration facility.",
		})
)

// BulkIngestor snapshots all the modules currently mapped into a
// process. Many ingestions may run at the same time.
type BulkIngestor struct {
	config_obj *config.Config
	catalog    *catalog.Catalog
	registry   *registry.Registry
	accessor   ProcessAccessor
	logger     *logging.LogContext
}

func NewBulkIngestor(
	config_obj *config.Config,
	catalog *catalog.Catalog,
	registry *registry.Registry,
	accessor ProcessAccessor) *BulkIngestor {
	return &BulkIngestor{
		config_obj: config_obj,
		catalog:    catalog,
		registry:   registry,
		accessor:   accessor,
		logger:     logging.GetLogger(config_obj, &logging.IngestionComponent),
	}
}

// IngestBulk registers every module mapped into the process. Only a
// failure to open the process or to list its modules is returned,
// problems with individual modules leave gaps in the data instead.
func (self *BulkIngestor) IngestBulk(ctx context.Context, pid uint32) error {
	self.registry.GetOrCreateProcessSet(pid)

	handle, err := self.accessor.OpenProcess(pid)
	if err != nil {
		metricBulkIngestions.WithLabelValues("access_error").Inc()
		self.logger.Warn("IngestBulk: Unable to open process %v: %v", pid, err)
		return utils.Wrapf(utils.AccessError, "pid %v: %v", pid, err)
	}
	defer func() {
		err := self.accessor.CloseHandle(handle)
		if err != nil {
			self.logger.Debug("IngestBulk: CloseHandle for pid %v: %v", pid, err)
		}
	}()

	modules, err := self.enumerateModules(ctx, handle)
	if err != nil {
		metricBulkIngestions.WithLabelValues("enumeration_error").Inc()
		self.logger.Warn("IngestBulk: Unable to enumerate modules of pid %v: %v",
			pid, err)
		return utils.Wrapf(utils.EnumerationError, "pid %v: %v", pid, err)
	}

	for _, module := range modules {
		path, err := self.accessor.GetModulePath(handle, module)
		if err != nil {
			metricBulkModuleErrors.WithLabelValues("path").Inc()
			self.logger.Debug("IngestBulk: GetModulePath for pid %v: %v", pid, err)
			path = ""
		}

		placement, err := self.accessor.GetModuleInfo(handle, module)
		if err != nil {
			metricBulkModuleErrors.WithLabelValues("info").Inc()
			self.logger.Debug("IngestBulk: GetModuleInfo %v for pid %v: %v",
				path, pid, err)
			placement = ModulePlacement{}
		}

		// Enumeration does not report the build timestamp.
		id, descriptor := self.catalog.Resolve(path, 0)

		instance := registry.NewModuleInstance(id, descriptor,
			placement.Base, placement.Size, placement.EntryPoint,
			utils.GetTime().Now(), constants.SOURCE_BULK)
		self.registry.InsertInstance(pid, instance)
	}

	metricBulkIngestions.WithLabelValues("ok").Inc()
	return nil
}

// Offer the facility a buffer and grow it to exactly the size it
// asks for until everything fits.
func (self *BulkIngestor) enumerateModules(
	ctx context.Context, handle ProcessHandle) ([]ModuleHandle, error) {
	capacity := constants.DEFAULT_MODULE_BUFFER_CAPACITY
	if self.config_obj != nil && self.config_obj.Tracker != nil &&
		self.config_obj.Tracker.ModuleBufferCapacity > 0 {
		capacity = self.config_obj.Tracker.ModuleBufferCapacity
	}

	buffer := make([]ModuleHandle, capacity)
	for {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		metricBulkEnumerateCalls.Inc()
		required, err := self.accessor.EnumerateModules(handle, buffer)
		if err != nil {
			return nil, err
		}

		needed := (int(required) + constants.MODULE_HANDLE_SIZE - 1) /
			constants.MODULE_HANDLE_SIZE
		if needed <= len(buffer) {
			return buffer[:int(required)/constants.MODULE_HANDLE_SIZE], nil
		}

		buffer = make([]ModuleHandle, needed)
	}
}
