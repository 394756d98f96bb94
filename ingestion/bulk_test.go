package ingestion

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"www.velocidex.com/golang/modtracker/catalog"
	"www.velocidex.com/golang/modtracker/config"
	"www.velocidex.com/golang/modtracker/constants"
	"www.velocidex.com/golang/modtracker/logging"
	"www.velocidex.com/golang/modtracker/registry"
	"www.velocidex.com/golang/modtracker/utils"
)

const (
	ntdll    = `C:\Windows\System32\ntdll.dll`
	kernel32 = `C:\Windows\System32\kernel32.dll`
)

type BulkIngestorTestSuite struct {
	suite.Suite

	config_obj *config.Config
	catalog    *catalog.Catalog
	registry   *registry.Registry
	accessor   *testAccessor
	now        time.Time
	closer     func()
}

func (self *BulkIngestorTestSuite) SetupTest() {
	logging.DisableLogging()

	self.config_obj = config.GetDefaultConfig()
	self.catalog = catalog.NewCatalog()
	self.registry = registry.NewRegistry()
	self.accessor = newTestAccessor()

	self.now = time.Unix(1602103388, 0).UTC()
	self.closer = utils.MockTime(utils.NewMockClock(self.now))
}

func (self *BulkIngestorTestSuite) TearDownTest() {
	self.closer()
}

func (self *BulkIngestorTestSuite) ingestor() *BulkIngestor {
	return NewBulkIngestor(self.config_obj, self.catalog, self.registry, self.accessor)
}

func (self *BulkIngestorTestSuite) TestTwoModules() {
	self.accessor.addProcess(100, &testProcess{
		modules: []testModule{
			{path: ntdll, placement: ModulePlacement{
				Base: 0x7FFE0000, Size: 0x1F0000, EntryPoint: 0x7FFE1000}},
			{path: kernel32, placement: ModulePlacement{
				Base: 0x7FFC0000, Size: 0xC2000, EntryPoint: 0x7FFC2000}},
		},
	})

	err := self.ingestor().IngestBulk(context.Background(), 100)
	self.NoError(err)

	// Identities follow discovery order.
	self.Equal(2, self.catalog.Len())
	id, _ := self.catalog.Resolve(ntdll, 0)
	self.Equal(uint32(0), id)
	id, _ = self.catalog.Resolve(kernel32, 0)
	self.Equal(uint32(1), id)

	set, pres := self.registry.Get(100)
	self.True(pres)

	// Instances are ordered by base address.
	instances := set.Instances()
	self.Equal(2, len(instances))

	self.Equal(uint64(0x7FFC0000), instances[0].BaseAddress)
	self.Equal(uint32(1), instances[0].Id)
	self.Equal(kernel32, instances[0].Path())
	self.Equal(uint32(0xC2000), instances[0].ImageSize)
	self.Equal(uint64(0x7FFC2000), instances[0].EntryPoint)

	self.Equal(uint64(0x7FFE0000), instances[1].BaseAddress)
	self.Equal(uint32(0), instances[1].Id)

	for _, instance := range instances {
		self.Equal(registry.Loaded, instance.State())
		_, pres := instance.UnloadTime()
		self.False(pres)
		self.Equal(self.now, instance.LoadTime)
		self.Equal(constants.SOURCE_BULK, instance.Source)
		self.Equal(uint32(0), instance.Descriptor.BuildTimestamp)
	}

	self.Equal(1, self.accessor.enumerate_calls)
	self.Equal(1, self.accessor.closed)
	self.Equal(0, self.accessor.openHandles())
}

func (self *BulkIngestorTestSuite) TestGrowingBuffer() {
	modules := []testModule{}
	for i := 0; i < 5; i++ {
		modules = append(modules, testModule{
			path: fmt.Sprintf(`C:\Windows\System32\mod%d.dll`, i),
			placement: ModulePlacement{
				Base: 0x10000000 + uint64(i)*0x100000, Size: 0x1000},
		})
	}

	// The facility asks for more room three times before the
	// result fits.
	self.accessor.addProcess(100, &testProcess{
		modules:  modules,
		reported: []int{3, 4, 5},
	})
	self.config_obj.Tracker.ModuleBufferCapacity = 1

	err := self.ingestor().IngestBulk(context.Background(), 100)
	self.NoError(err)

	self.Equal(4, self.accessor.enumerate_calls)

	// Each retry is sized exactly to the last reported size.
	self.Equal([]int{1, 3, 4, 5}, self.accessor.buffer_sizes)

	set, _ := self.registry.Get(100)
	self.Equal(5, set.Len())
	self.Equal(5, self.catalog.Len())
	self.Equal(0, self.accessor.openHandles())
}

func (self *BulkIngestorTestSuite) TestSingleEnumerateCall() {
	self.accessor.addProcess(100, &testProcess{
		modules: []testModule{
			{path: ntdll, placement: ModulePlacement{Base: 0x7FFE0000}},
		},
	})

	err := self.ingestor().IngestBulk(context.Background(), 100)
	self.NoError(err)

	// The default buffer is big enough for one call.
	self.Equal([]int{constants.DEFAULT_MODULE_BUFFER_CAPACITY},
		self.accessor.buffer_sizes)

	set, _ := self.registry.Get(100)
	self.Equal(1, set.Len())
	self.Equal(1, self.catalog.Len())
}

func (self *BulkIngestorTestSuite) TestModuleFailuresDegrade() {
	self.accessor.addProcess(100, &testProcess{
		modules: []testModule{
			{path: ntdll, placement: ModulePlacement{Base: 0x7FFE0000},
				info_err: errors.New("Partial copy")},
			{placement: ModulePlacement{Base: 0x7FFC0000, Size: 0x2000},
				path_err: errors.New("Access denied")},
			{path: kernel32, placement: ModulePlacement{Base: 0x7FFA0000}},
		},
	})

	err := self.ingestor().IngestBulk(context.Background(), 100)
	self.NoError(err)

	set, _ := self.registry.Get(100)
	instances := set.Instances()
	self.Equal(3, len(instances))

	// Placement lookup failed: zero fields but the path is kept.
	self.Equal(uint64(0), instances[0].BaseAddress)
	self.Equal(uint32(0), instances[0].ImageSize)
	self.Equal(ntdll, instances[0].Path())

	self.Equal(uint64(0x7FFA0000), instances[1].BaseAddress)
	self.Equal(kernel32, instances[1].Path())

	// Path lookup failed: empty path but the placement is kept.
	self.Equal(uint64(0x7FFC0000), instances[2].BaseAddress)
	self.Equal("", instances[2].Path())

	self.Equal(3, self.catalog.Len())
	self.Equal(1, self.accessor.closed)
}

func (self *BulkIngestorTestSuite) TestAccessError() {
	self.accessor.addProcess(4, &testProcess{open_err: testAccessDenied})

	err := self.ingestor().IngestBulk(context.Background(), 4)
	self.Error(err)
	self.True(errors.Is(err, utils.AccessError))
	self.Contains(err.Error(), "Access is denied")

	// The set is created before the process is opened.
	set, pres := self.registry.Get(4)
	self.True(pres)
	self.Equal(0, set.Len())

	self.Equal(0, self.accessor.enumerate_calls)
	self.Equal(0, self.accessor.closed)
	self.Equal(0, self.catalog.Len())
}

func (self *BulkIngestorTestSuite) TestEnumerationError() {
	self.accessor.addProcess(100, &testProcess{
		enumerate_err: errors.New("Only part of a ReadProcessMemory request was completed"),
	})

	err := self.ingestor().IngestBulk(context.Background(), 100)
	self.Error(err)
	self.True(errors.Is(err, utils.EnumerationError))
	self.False(errors.Is(err, utils.AccessError))

	// The handle is released on the error path too.
	self.Equal(1, self.accessor.closed)
	self.Equal(0, self.accessor.openHandles())
}

func (self *BulkIngestorTestSuite) TestCancelledContext() {
	self.accessor.addProcess(100, &testProcess{
		modules: []testModule{{path: ntdll}},
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := self.ingestor().IngestBulk(ctx, 100)
	self.Error(err)
	self.Equal(0, self.accessor.enumerate_calls)
	self.Equal(1, self.accessor.closed)
}

func (self *BulkIngestorTestSuite) TestConcurrentProcesses() {
	paths := []string{ntdll, kernel32, `C:\Windows\System32\user32.dll`,
		`C:\Windows\System32\advapi32.dll`}

	for pid := uint32(1); pid <= 32; pid++ {
		modules := []testModule{}
		for i := range paths {
			// Each process sees the modules in a different order.
			path := paths[(i+int(pid))%len(paths)]
			modules = append(modules, testModule{
				path: path,
				placement: ModulePlacement{
					Base: 0x10000000 + uint64(i)*0x100000},
			})
		}
		self.accessor.addProcess(pid, &testProcess{modules: modules})
	}

	ingestor := self.ingestor()
	wg := &sync.WaitGroup{}
	for pid := uint32(1); pid <= 32; pid++ {
		wg.Add(1)
		go func(pid uint32) {
			defer wg.Done()
			self.NoError(ingestor.IngestBulk(context.Background(), pid))
		}(pid)
	}
	wg.Wait()

	self.Equal(len(paths), self.catalog.Len())
	self.Equal(32, self.registry.Len())
	self.Equal(32, self.accessor.closed)

	for _, path := range paths {
		descriptor, pres := self.catalog.Lookup(path, 0)
		self.True(pres)
		self.Equal(32, len(self.registry.ProcessesWithModule(descriptor.Id)))
	}
}

func TestBulkIngestor(t *testing.T) {
	suite.Run(t, new(BulkIngestorTestSuite))
}
