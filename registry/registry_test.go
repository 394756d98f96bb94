package registry

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"www.velocidex.com/golang/modtracker/catalog"
	"www.velocidex.com/golang/modtracker/constants"
)

type RegistryTestSuite struct {
	suite.Suite

	catalog  *catalog.Catalog
	registry *Registry
	now      time.Time
}

func (self *RegistryTestSuite) SetupTest() {
	self.catalog = catalog.NewCatalog()
	self.registry = NewRegistry()
	self.now = time.Unix(1602103388, 0).UTC()
}

func (self *RegistryTestSuite) newInstance(path string, base uint64) *ModuleInstance {
	id, descriptor := self.catalog.Resolve(path, 0)
	return NewModuleInstance(id, descriptor, base, 0x1000, base+0x100,
		self.now, constants.SOURCE_BULK)
}

func (self *RegistryTestSuite) TestGetOrCreateProcessSet() {
	set := self.registry.GetOrCreateProcessSet(100)
	self.Equal(uint32(100), set.Pid())
	self.Same(set, self.registry.GetOrCreateProcessSet(100))

	_, pres := self.registry.Get(200)
	self.False(pres)
	self.Equal(1, self.registry.Len())
}

func (self *RegistryTestSuite) TestInsertIsIdempotent() {
	first := self.newInstance(`C:\Windows\System32\ntdll.dll`, 0x7FFE0000)
	self.True(self.registry.InsertInstance(100, first))

	// A second insert at the same base keeps the original.
	second := self.newInstance(`C:\Windows\System32\other.dll`, 0x7FFE0000)
	self.False(self.registry.InsertInstance(100, second))

	set, pres := self.registry.Get(100)
	self.True(pres)
	stored, pres := set.Get(0x7FFE0000)
	self.True(pres)
	self.Same(first, stored)
	self.Equal(1, set.Len())

	// The same base in another process is unrelated.
	self.True(self.registry.InsertInstance(200, second))
}

func (self *RegistryTestSuite) TestInstancesOrderedByBase() {
	for _, base := range []uint64{0x7FFE0000, 0x400000, 0x7FFC0000} {
		self.registry.InsertInstance(100, self.newInstance(`C:\x.dll`, base))
	}

	set := self.registry.GetOrCreateProcessSet(100)
	bases := []uint64{}
	for _, instance := range set.Instances() {
		bases = append(bases, instance.BaseAddress)
	}
	self.Equal([]uint64{0x400000, 0x7FFC0000, 0x7FFE0000}, bases)
}

func (self *RegistryTestSuite) TestUnloadHappensOnce() {
	instance := self.newInstance(`C:\Windows\System32\ntdll.dll`, 0x7FFE0000)
	self.registry.InsertInstance(100, instance)

	self.Equal(Loaded, instance.State())
	_, pres := instance.UnloadTime()
	self.False(pres)

	var wins int64
	wg := &sync.WaitGroup{}
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			ts := self.now.Add(time.Duration(i+1) * time.Second)
			if self.registry.MarkUnloaded(100, 0x7FFE0000, ts) {
				atomic.AddInt64(&wins, 1)
			}
		}(i)
	}
	wg.Wait()

	self.Equal(int64(1), wins)
	self.Equal(Unloaded, instance.State())
	unload_time, pres := instance.UnloadTime()
	self.True(pres)
	self.True(unload_time.After(self.now))

	// Unknown process or address.
	self.False(self.registry.MarkUnloaded(999, 0x7FFE0000, self.now))
	self.False(self.registry.MarkUnloaded(100, 0x1234, self.now))
	_, pres = self.registry.Get(999)
	self.False(pres)
}

func (self *RegistryTestSuite) TestReloadAfterUnload() {
	old := self.newInstance(`C:\a.dll`, 0x10000000)
	self.registry.InsertInstance(100, old)
	self.True(self.registry.MarkUnloaded(100, 0x10000000, self.now))

	replacement := self.newInstance(`C:\b.dll`, 0x10000000)
	self.True(self.registry.InsertInstance(100, replacement))

	set := self.registry.GetOrCreateProcessSet(100)
	stored, _ := set.Get(0x10000000)
	self.Same(replacement, stored)

	history := set.History()
	self.Equal(1, len(history))
	self.Same(old, history[0])

	// The process is still known to have loaded a.dll
	self.Equal([]uint32{100}, self.registry.ProcessesWithModule(old.Id))
}

func (self *RegistryTestSuite) TestProcessesWithModule() {
	ntdll := self.newInstance(`C:\Windows\System32\ntdll.dll`, 0x7FFE0000)
	for _, pid := range []uint32{300, 100, 200} {
		self.registry.InsertInstance(pid, self.newInstance(
			`C:\Windows\System32\ntdll.dll`, 0x7FFE0000))
	}
	self.registry.InsertInstance(400, self.newInstance(`C:\other.dll`, 0x7FFE0000))

	self.Equal([]uint32{100, 200, 300}, self.registry.ProcessesWithModule(ntdll.Id))
	self.Equal([]uint32{100, 200, 300, 400}, self.registry.Processes())
	self.Equal([]uint32{}, self.registry.ProcessesWithModule(1000))
}

func (self *RegistryTestSuite) TestConcurrentInserts() {
	wg := &sync.WaitGroup{}
	for pid := uint32(1); pid <= 8; pid++ {
		for worker := 0; worker < 4; worker++ {
			wg.Add(1)
			go func(pid uint32) {
				defer wg.Done()
				for i := uint64(0); i < 100; i++ {
					self.registry.InsertInstance(pid, self.newInstance(
						`C:\x.dll`, 0x10000+i*0x1000))
				}
			}(pid)
		}
	}
	wg.Wait()

	self.Equal(8, self.registry.Len())
	for pid := uint32(1); pid <= 8; pid++ {
		set, pres := self.registry.Get(pid)
		self.True(pres)
		self.Equal(100, set.Len())
	}
}

func (self *RegistryTestSuite) TestToDict() {
	instance := self.newInstance(`C:\Windows\System32\ntdll.dll`, 0x7FFE0000)
	row := instance.ToDict()

	base, _ := row.Get("BaseAddress")
	self.Equal("0x7ffe0000", base)

	state, _ := row.Get("State")
	self.Equal("Loaded", state)

	unload_time, _ := row.Get("UnloadTime")
	self.Nil(unload_time)

	instance.MarkUnloaded(self.now)
	state, _ = instance.ToDict().Get("State")
	self.Equal("Unloaded", state)
}

func TestRegistry(t *testing.T) {
	suite.Run(t, new(RegistryTestSuite))
}
