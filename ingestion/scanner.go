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
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Velocidex/ttlcache/v2"
	"github.com/alitto/pond/v2"
	"github.com/shirou/gopsutil/v4/process"
	"golang.org/x/time/rate"
	"www.velocidex.com/golang/modtracker/config"
	"www.velocidex.com/golang/modtracker/constants"
	"www.velocidex.com/golang/modtracker/logging"
	"www.velocidex.com/golang/modtracker/utils"
)

type ProcessLister interface {
	ListProcesses(ctx context.Context) ([]uint32, error)
}

type GopsutilProcessLister struct{}

func (self GopsutilProcessLister) ListProcesses(ctx context.Context) ([]uint32, error) {
	pids, err := process.PidsWithContext(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]uint32, 0, len(pids))
	for _, pid := range pids {
		if pid < 0 {
			continue
		}
		result = append(result, uint32(pid))
	}
	return result, nil
}

type ScanSummary struct {
	Processes int64 `json:"Processes"`
	Ingested  int64 `json:"Ingested"`
	Failed    int64 `json:"Failed"`

	// Recently failed processes that were not retried.
	Skipped int64 `json:"Skipped"`
}

// Scanner runs bulk ingestions over many processes at once. It is
// the periodic full sync that complements the event stream.
type Scanner struct {
	mu sync.Mutex

	config_obj  *config.Config
	bulk        *BulkIngestor
	lister      ProcessLister
	concurrency int
	limiter     *rate.Limiter

	// Pids that could not be opened recently.
	failed *ttlcache.Cache

	logger *logging.LogContext
}

func NewScanner(
	config_obj *config.Config,
	bulk *BulkIngestor, lister ProcessLister) *Scanner {
	if lister == nil {
		lister = GopsutilProcessLister{}
	}

	concurrency := constants.DEFAULT_SCAN_CONCURRENCY
	scan_rate := rate.Inf
	ttl := time.Duration(constants.DEFAULT_FAILED_PID_TTL) * time.Second

	if config_obj != nil && config_obj.Tracker != nil {
		if config_obj.Tracker.ScanConcurrency > 0 {
			concurrency = config_obj.Tracker.ScanConcurrency
		}
		if config_obj.Tracker.ScanRate > 0 {
			scan_rate = rate.Limit(config_obj.Tracker.ScanRate)
		}
		if config_obj.Tracker.FailedPidTTLSec > 0 {
			ttl = time.Duration(config_obj.Tracker.FailedPidTTLSec) * time.Second
		}
	}

	result := &Scanner{
		config_obj:  config_obj,
		bulk:        bulk,
		lister:      lister,
		concurrency: concurrency,
		limiter:     rate.NewLimiter(scan_rate, 1),
		failed:      ttlcache.NewCache(),
		logger:      logging.GetLogger(config_obj, &logging.IngestionComponent),
	}
	_ = result.failed.SetTTL(ttl)

	return result
}

// ScanAll ingests the given pids, or every running process if pids
// is empty, and waits for all ingestions to finish.
func (self *Scanner) ScanAll(ctx context.Context, pids []uint32) ScanSummary {
	summary := ScanSummary{}

	if len(pids) == 0 {
		all_pids, err := self.lister.ListProcesses(ctx)
		if err != nil {
			self.logger.Error("ScanAll: Unable to list processes: %v", err)
			return summary
		}
		pids = all_pids
	}

	pool := pond.NewPool(self.concurrency)

	for _, pid := range pids {
		if self.recentlyFailed(pid) {
			summary.Skipped++
			continue
		}

		err := self.limiter.Wait(ctx)
		if err != nil {
			break
		}

		summary.Processes++
		pool.Submit(func() {
			err := self.bulk.IngestBulk(ctx, pid)
			if err == nil {
				atomic.AddInt64(&summary.Ingested, 1)
				return
			}

			atomic.AddInt64(&summary.Failed, 1)
			if errors.Is(err, utils.AccessError) {
				self.markFailed(pid)
			}
		})
	}

	pool.StopAndWait()

	self.logger.Info("ScanAll: Scanned %v processes (%v ingested, %v failed, %v skipped)",
		summary.Processes, summary.Ingested, summary.Failed, summary.Skipped)

	return summary
}

// Run rescans all processes every period until the context is done.
func (self *Scanner) Run(ctx context.Context, period time.Duration) {
	for {
		self.ScanAll(ctx, nil)

		utils.SleepWithCtx(ctx, period)
		if ctx.Err() != nil {
			return
		}
	}
}

// FailedPids lists the pids currently in the negative cache.
func (self *Scanner) FailedPids() []string {
	self.mu.Lock()
	defer self.mu.Unlock()

	result := self.failed.GetKeys()
	sort.Strings(result)
	return result
}

func (self *Scanner) Close() {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.failed.Close()
}

func (self *Scanner) recentlyFailed(pid uint32) bool {
	self.mu.Lock()
	defer self.mu.Unlock()

	_, err := self.failed.Get(fmt.Sprintf("%d", pid))
	return err == nil
}

func (self *Scanner) markFailed(pid uint32) {
	self.mu.Lock()
	defer self.mu.Unlock()

	_ = self.failed.Set(fmt.Sprintf("%d", pid), true)
}
