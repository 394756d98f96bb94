package ingestion

import (
	"context"
	"errors"
	"sync"

	"www.velocidex.com/golang/modtracker/constants"
)

var (
	testAccessDenied = errors.New("Access is denied.")
)

type testModule struct {
	path      string
	placement ModulePlacement

	path_err error
	info_err error
}

type testProcess struct {
	modules []testModule

	open_err      error
	enumerate_err error

	// Module counts reported by successive enumerate calls before
	// the real count, as if modules were loading while we look.
	reported []int
}

// A simulated psapi that serves canned processes and counts the
// calls made to it.
type testAccessor struct {
	mu sync.Mutex

	processes map[uint32]*testProcess
	handles   map[ProcessHandle]uint32
	next      ProcessHandle

	opened          map[uint32]int
	closed          int
	enumerate_calls int
	buffer_sizes    []int
}

func newTestAccessor() *testAccessor {
	return &testAccessor{
		processes: make(map[uint32]*testProcess),
		handles:   make(map[ProcessHandle]uint32),
		opened:    make(map[uint32]int),
		next:      100,
	}
}

func (self *testAccessor) addProcess(pid uint32, process *testProcess) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.processes[pid] = process
}

func (self *testAccessor) OpenProcess(pid uint32) (ProcessHandle, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.opened[pid]++

	process, pres := self.processes[pid]
	if !pres {
		return 0, testAccessDenied
	}

	if process.open_err != nil {
		return 0, process.open_err
	}

	self.next++
	self.handles[self.next] = pid
	return self.next, nil
}

func (self *testAccessor) getProcess(handle ProcessHandle) *testProcess {
	return self.processes[self.handles[handle]]
}

func (self *testAccessor) EnumerateModules(
	handle ProcessHandle, buffer []ModuleHandle) (uint32, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.enumerate_calls++
	self.buffer_sizes = append(self.buffer_sizes, len(buffer))

	process := self.getProcess(handle)
	if process.enumerate_err != nil {
		return 0, process.enumerate_err
	}

	count := len(process.modules)
	if len(process.reported) > 0 {
		count = process.reported[0]
		process.reported = process.reported[1:]
	}

	// Module handles are index + 1
	for i := 0; i < count && i < len(buffer); i++ {
		buffer[i] = ModuleHandle(i + 1)
	}

	return uint32(count * constants.MODULE_HANDLE_SIZE), nil
}

func (self *testAccessor) getModule(
	handle ProcessHandle, module ModuleHandle) *testModule {
	process := self.getProcess(handle)
	idx := int(module) - 1
	if idx < 0 || idx >= len(process.modules) {
		return &testModule{
			path_err: errors.New("Module went away"),
			info_err: errors.New("Module went away"),
		}
	}
	return &process.modules[idx]
}

func (self *testAccessor) GetModulePath(
	handle ProcessHandle, module ModuleHandle) (string, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	m := self.getModule(handle, module)
	if m.path_err != nil {
		return "", m.path_err
	}
	return m.path, nil
}

func (self *testAccessor) GetModuleInfo(
	handle ProcessHandle, module ModuleHandle) (ModulePlacement, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	m := self.getModule(handle, module)
	if m.info_err != nil {
		return ModulePlacement{}, m.info_err
	}
	return m.placement, nil
}

func (self *testAccessor) CloseHandle(handle ProcessHandle) error {
	self.mu.Lock()
	defer self.mu.Unlock()

	self.closed++
	delete(self.handles, handle)
	return nil
}

func (self *testAccessor) openHandles() int {
	self.mu.Lock()
	defer self.mu.Unlock()

	return len(self.handles)
}

// Maps device paths using a fixed table.
type testVolumeResolver struct {
	paths map[string]string
}

func (self *testVolumeResolver) VolumePathOf(path string) (string, error) {
	result, pres := self.paths[path]
	if !pres {
		return "", errors.New("The system cannot find the path specified.")
	}
	return result, nil
}

type testLister struct {
	pids []uint32
}

func (self *testLister) ListProcesses(ctx context.Context) ([]uint32, error) {
	return self.pids, nil
}
