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
package utils

import (
	"sync"
	"time"
)

var (
	clock_mu sync.Mutex
	g_clock  Clock = RealClock{}
)

type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
	Sleep(d time.Duration)
}

type RealClock struct{}

func (self RealClock) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (self RealClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

func (self RealClock) Now() time.Time {
	return time.Now()
}

type MockClock struct {
	MockNow  time.Time
	duration time.Duration
}

func (self MockClock) Now() time.Time {
	return self.MockNow
}

func (self MockClock) After(d time.Duration) <-chan time.Time {
	return time.After(self.duration)
}

func (self MockClock) Sleep(d time.Duration) {
	time.Sleep(self.duration)
}

func NewMockClock(now time.Time) *MockClock {
	return &MockClock{MockNow: now}
}

func GetTime() Clock {
	clock_mu.Lock()
	defer clock_mu.Unlock()

	return g_clock
}

// MockTime installs a clock for the duration of a test. Call the
// returned closer to restore the previous clock.
func MockTime(clock Clock) func() {
	clock_mu.Lock()
	defer clock_mu.Unlock()

	old_clock := g_clock
	g_clock = clock

	return func() {
		clock_mu.Lock()
		defer clock_mu.Unlock()

		g_clock = old_clock
	}
}
