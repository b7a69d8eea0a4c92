package main

import (
	"sync"
	"time"

	btree "github.com/Rikanishu/btree/ui32"
	"github.com/sirupsen/logrus"
)

// CountryStorage answers IPv4 -> country lookups from a freshly built
// index. The two-level tree keys blocks by start address, then by end
// address, so a containing block is found with one descend + ascend.
type CountryStorage struct {
	tree *btree.BTree
	lock sync.RWMutex
}

func NewCountryStorage(idx *Index) *CountryStorage {
	s := &CountryStorage{}
	s.Rebuild(idx)
	return s
}

// Rebuild swaps in the blocks of a new index. Safe against concurrent
// lookups; readers see either the old tree or the new one.
func (s *CountryStorage) Rebuild(idx *Index) {
	logrus.Info("rebuilding the lookup storage...")
	startTSNano := time.Now().UnixNano()

	treeMap := make(map[uint32]map[uint32]string)
	blocks := 0
	for _, code := range idx.Codes() {
		entry := idx.Lookup(code)
		for _, b := range entry.Blocks(FamilyIPv4) {
			start, end := b.RangeV4()
			if _, ok := treeMap[start]; !ok {
				treeMap[start] = make(map[uint32]string)
			}
			treeMap[start][end] = code
			blocks++
		}
	}

	t := btree.New(2)
	for startIP, ends := range treeMap {
		et := btree.New(2)
		for endIP, code := range ends {
			et.ReplaceOrInsert(&btree.Item{
				Key:     endIP,
				Payload: code,
			})
		}
		t.ReplaceOrInsert(&btree.Item{
			Key:     startIP,
			SubTree: et,
		})
	}

	s.lock.Lock()
	s.tree = t
	s.lock.Unlock()

	logrus.Debugf("indexed %d ipv4 blocks, took %v sec",
		blocks, float64(time.Now().UnixNano()-startTSNano)/float64(time.Second))
}

// FindCountry returns the country code owning an IPv4 address, or ""
// when no delegated block covers it.
func (s *CountryStorage) FindCountry(ip uint32) string {
	s.lock.RLock()
	defer s.lock.RUnlock()

	if s.tree == nil {
		return ""
	}

	out := make([]string, 0, 1)
	s.tree.DescendLessOrEqual(&btree.Item{
		Key: ip,
	}, func(item *btree.Item) bool {
		item.SubTree.AscendGreaterOrEqual(&btree.Item{
			Key: ip,
		}, func(item *btree.Item) bool {
			out = append(out, item.Payload.(string))
			return true
		})
		// stop descending once a covering block is found
		return len(out) == 0
	})

	if len(out) == 0 {
		return ""
	}
	if len(out) > 1 {
		logrus.Debugf("found %d country candidates for ip %d", len(out), ip)
	}
	return out[0]
}
