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
package etw

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"www.velocidex.com/golang/modtracker/config"
	"www.velocidex.com/golang/modtracker/constants"
	"www.velocidex.com/golang/modtracker/ingestion"
	"www.velocidex.com/golang/modtracker/logging"
)

var (
	metricETWEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "modtracker_etw_events_total",
			Help: "Events received from the kernel process provider.",
		})

	metricETWEventRate = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "modtracker_etw_events_per_second",
			Help: "Recent rate of events from the kernel process provider.",
		})
)

type WatcherStats struct {
	Events  int64 `json:"Events"`
	Loads   int64 `json:"Loads"`
	Unloads int64 `json:"Unloads"`

	// Events from the provider that are not image events.
	Ignored int64 `json:"Ignored"`
	Errors  int64 `json:"Errors"`
}

// ImageLoadWatcher follows image loads and unloads in real time and
// feeds them to the EventIngestor, one event at a time on the
// session's callback thread.
type ImageLoadWatcher struct {
	mu sync.Mutex

	config_obj *config.Config
	ingestor   *ingestion.EventIngestor
	logger     *logging.LogContext

	stats WatcherStats

	wg sync.WaitGroup

	// Platform specific session state.
	session_state
}

func newImageLoadWatcher(
	config_obj *config.Config,
	ingestor *ingestion.EventIngestor) *ImageLoadWatcher {
	return &ImageLoadWatcher{
		config_obj: config_obj,
		ingestor:   ingestor,
		logger:     logging.GetLogger(config_obj, &logging.ETWComponent),
	}
}

func (self *ImageLoadWatcher) Stats() WatcherStats {
	return WatcherStats{
		Events:  atomic.LoadInt64(&self.stats.Events),
		Loads:   atomic.LoadInt64(&self.stats.Loads),
		Unloads: atomic.LoadInt64(&self.stats.Unloads),
		Ignored: atomic.LoadInt64(&self.stats.Ignored),
		Errors:  atomic.LoadInt64(&self.stats.Errors),
	}
}

func (self *ImageLoadWatcher) processEvent(
	event_id uint16, header_pid uint32, timestamp time.Time,
	props interface{}) {
	atomic.AddInt64(&self.stats.Events, 1)
	metricETWEvents.Inc()

	if event_id != constants.ETW_IMAGE_LOAD_EVENT_ID &&
		event_id != constants.ETW_IMAGE_UNLOAD_EVENT_ID {
		atomic.AddInt64(&self.stats.Ignored, 1)
		return
	}

	notification, err := ParseImageEvent(event_id, header_pid, timestamp, props)
	if err != nil {
		atomic.AddInt64(&self.stats.Errors, 1)
		self.logger.Debug("processEvent: %v", err)
		return
	}

	switch t := notification.(type) {
	case *ingestion.ImageLoad:
		atomic.AddInt64(&self.stats.Loads, 1)
		self.ingestor.IngestEvent(t)

	case *ingestion.ImageUnload:
		atomic.AddInt64(&self.stats.Unloads, 1)
		self.ingestor.IngestUnload(t)
	}
}
