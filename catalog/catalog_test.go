package catalog

import (
	"fmt"
	"math/rand"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type CatalogTestSuite struct {
	suite.Suite

	catalog *Catalog
}

func (self *CatalogTestSuite) SetupTest() {
	self.catalog = NewCatalog()
}

func (self *CatalogTestSuite) TestResolveIsStable() {
	id, descriptor := self.catalog.Resolve(`C:\Windows\System32\ntdll.dll`, 0)
	self.Equal(uint32(0), id)
	self.Equal(`C:\Windows\System32\ntdll.dll`, descriptor.Path)

	id2, descriptor2 := self.catalog.Resolve(`C:\Windows\System32\ntdll.dll`, 0)
	self.Equal(id, id2)
	self.Same(descriptor, descriptor2)
	self.Equal(1, self.catalog.Len())
}

func (self *CatalogTestSuite) TestIdentitiesFollowInsertionOrder() {
	paths := []string{
		`C:\Windows\System32\kernel32.dll`,
		`C:\Windows\System32\ntdll.dll`,
		`C:\Windows\explorer.exe`,
	}
	for idx, path := range paths {
		id, _ := self.catalog.Resolve(path, 0)
		self.Equal(uint32(idx), id)
	}

	// The same path with a different timestamp is a different module.
	id, descriptor := self.catalog.Resolve(paths[0], 0x5e7f1a2b)
	self.Equal(uint32(3), id)
	self.Equal(uint32(0x5e7f1a2b), descriptor.BuildTimestamp)

	items := self.catalog.Items()
	self.Equal(4, len(items))
	for idx, item := range items {
		self.Equal(uint32(idx), item.Id)
	}

	stats := self.catalog.Stats()
	self.Equal(4, stats.Descriptors)
	self.Equal(int64(4), stats.Misses)
	self.Equal(int64(0), stats.Hits)
}

func (self *CatalogTestSuite) TestEmptyPathIsAValidKey() {
	// Failed path lookups collapse into a single empty path entry.
	id, _ := self.catalog.Resolve("", 0)
	id2, _ := self.catalog.Resolve("", 0)
	self.Equal(id, id2)
	self.Equal(1, self.catalog.Len())
}

func (self *CatalogTestSuite) TestGetAndLookup() {
	id, descriptor := self.catalog.Resolve(`C:\a.dll`, 0)

	got, pres := self.catalog.Get(id)
	self.True(pres)
	self.Same(descriptor, got)

	_, pres = self.catalog.Get(id + 1)
	self.False(pres)

	got, pres = self.catalog.Lookup(`C:\a.dll`, 0)
	self.True(pres)
	self.Same(descriptor, got)

	// Lookup never inserts.
	_, pres = self.catalog.Lookup(`C:\b.dll`, 0)
	self.False(pres)
	self.Equal(1, self.catalog.Len())
}

// Many goroutines resolving the same key set in random order must
// agree on a single id per key with no gaps or duplicates.
func (self *CatalogTestSuite) TestConcurrentResolve() {
	key_count := 500
	thread_count := 16

	keys := make([]string, 0, key_count)
	for i := 0; i < key_count; i++ {
		keys = append(keys, fmt.Sprintf(`C:\Windows\System32\mod%04d.dll`, i))
	}

	results := make([]map[string]*ModuleDescriptor, thread_count)

	wg := &sync.WaitGroup{}
	for t := 0; t < thread_count; t++ {
		wg.Add(1)
		go func(t int) {
			defer wg.Done()

			rng := rand.New(rand.NewSource(int64(t)))
			order := rng.Perm(key_count)

			seen := make(map[string]*ModuleDescriptor)
			for _, idx := range order {
				id, descriptor := self.catalog.Resolve(keys[idx], 0)
				if id != descriptor.Id {
					self.T().Errorf("id %v does not match descriptor %v",
						id, descriptor.Id)
				}
				seen[keys[idx]] = descriptor
			}
			results[t] = seen
		}(t)
	}
	wg.Wait()

	self.Equal(key_count, self.catalog.Len())

	ids := make(map[uint32]string)
	for _, key := range keys {
		first := results[0][key]
		for t := 1; t < thread_count; t++ {
			self.Same(first, results[t][key])
		}

		previous, pres := ids[first.Id]
		self.False(pres, "id %v assigned to %v and %v", first.Id, previous, key)
		ids[first.Id] = key
	}

	// Ids are dense: exactly 0..N-1
	for i := 0; i < key_count; i++ {
		_, pres := ids[uint32(i)]
		self.True(pres, "missing id %v", i)
	}
}

func TestCatalog(t *testing.T) {
	suite.Run(t, new(CatalogTestSuite))
}
