package main

import (
	"sort"

	"github.com/google/btree"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
)

// ErrNoData marks a build in which no source contributed a single
// record, so an upstream outage is not mistaken for an empty world.
var ErrNoData = errors.New("no records from any registry source")

const blockTreeDegree = 8

// CountryEntry owns the ordered, deduplicated block sets of one country
// code. Mutated only while its build is running, read-only afterwards.
type CountryEntry struct {
	Code       string
	v4         *btree.BTree
	v6         *btree.BTree
	registries map[Registry]struct{}
}

func newCountryEntry(code string) *CountryEntry {
	return &CountryEntry{
		Code:       code,
		v4:         btree.New(blockTreeDegree),
		v6:         btree.New(blockTreeDegree),
		registries: make(map[Registry]struct{}, 1),
	}
}

func (e *CountryEntry) tree(f Family) *btree.BTree {
	if f == FamilyIPv6 {
		return e.v6
	}
	return e.v4
}

func (e *CountryEntry) insert(b CidrBlock, reg Registry) {
	// ReplaceOrInsert gives set semantics: an exact duplicate block
	// reported twice lands once.
	e.tree(b.Family).ReplaceOrInsert(b)
	e.registries[reg] = struct{}{}
}

// Blocks returns the country's blocks for one family in ascending
// network order.
func (e *CountryEntry) Blocks(f Family) []CidrBlock {
	t := e.tree(f)
	out := make([]CidrBlock, 0, t.Len())
	t.Ascend(func(i btree.Item) bool {
		out = append(out, i.(CidrBlock))
		return true
	})
	return out
}

func (e *CountryEntry) BlockCount(f Family) int {
	return e.tree(f).Len()
}

// AddressCountV4 sums the addresses covered by the country's IPv4
// blocks. Overlapping blocks are counted as reported.
func (e *CountryEntry) AddressCountV4() uint64 {
	var n uint64
	e.v4.Ascend(func(i btree.Item) bool {
		n += i.(CidrBlock).AddressCountV4()
		return true
	})
	return n
}

// Registries lists the registries that contributed to this entry.
func (e *CountryEntry) Registries() []Registry {
	out := make([]Registry, 0, len(e.registries))
	for r := range e.registries {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// coalesce repeatedly merges adjacent sibling blocks of one family into
// their aligned parent. Coverage is unchanged; only the block count
// shrinks.
func (e *CountryEntry) coalesce(f Family) {
	blocks := e.Blocks(f)
	if len(blocks) < 2 {
		return
	}
	bits := f.Bits()
	stack := blocks[:0]
	for _, b := range blocks {
		stack = append(stack, b)
		for len(stack) >= 2 {
			lo, hi := stack[len(stack)-2], stack[len(stack)-1]
			shift := bits - lo.Prefix
			if lo.Prefix != hi.Prefix || lo.Prefix == 0 ||
				!lo.Network.lowBitsZero(shift+1) ||
				lo.Network.addPow2(shift).cmp(hi.Network) != 0 {
				break
			}
			stack = stack[:len(stack)-1]
			stack[len(stack)-1] = CidrBlock{Family: f, Network: lo.Network, Prefix: lo.Prefix - 1}
		}
	}
	t := btree.New(blockTreeDegree)
	for _, b := range stack {
		t.ReplaceOrInsert(b)
	}
	if f == FamilyIPv6 {
		e.v6 = t
	} else {
		e.v4 = t
	}
}

// Accumulator collects the normalized blocks of one source file. Each
// source gets its own accumulator so the parallel parse phase shares no
// state; accumulators are merged into the Index afterwards.
type Accumulator struct {
	entries  map[string]*CountryEntry
	rejected int
}

func NewAccumulator() *Accumulator {
	return &Accumulator{entries: make(map[string]*CountryEntry)}
}

// Add normalizes one record and files its blocks under the record's
// country code. Records that fail normalization are counted and
// reported; records with non-contributing statuses are ignored.
func (a *Accumulator) Add(rec *AllocationRecord) error {
	if !rec.Status.Contributes() || rec.CountryCode == CountryUnassigned {
		return nil
	}
	blocks, err := NormalizeRecord(rec)
	if err != nil {
		a.rejected++
		return err
	}
	entry, ok := a.entries[rec.CountryCode]
	if !ok {
		entry = newCountryEntry(rec.CountryCode)
		a.entries[rec.CountryCode] = entry
	}
	for _, b := range blocks {
		entry.insert(b, rec.Registry)
	}
	return nil
}

// Rejected counts the records this accumulator refused to normalize.
func (a *Accumulator) Rejected() int { return a.rejected }

// Index is the read-only country -> blocks mapping of one build.
type Index struct {
	entries map[string]*CountryEntry
	codes   []string
}

// BuildIndex merges per-source accumulators into one index and
// coalesces every country's block sets. The merge is a plain union of
// block sets, so the source order does not matter.
func BuildIndex(accs ...*Accumulator) (*Index, error) {
	idx := &Index{entries: make(map[string]*CountryEntry)}
	for _, acc := range accs {
		for code, src := range acc.entries {
			dst, ok := idx.entries[code]
			if !ok {
				dst = newCountryEntry(code)
				idx.entries[code] = dst
			}
			for reg := range src.registries {
				dst.registries[reg] = struct{}{}
			}
			for _, f := range []Family{FamilyIPv4, FamilyIPv6} {
				src.tree(f).Ascend(func(i btree.Item) bool {
					dst.tree(f).ReplaceOrInsert(i.(CidrBlock))
					return true
				})
			}
		}
	}
	if len(idx.entries) == 0 {
		return nil, ErrNoData
	}

	idx.codes = make([]string, 0, len(idx.entries))
	for code := range idx.entries {
		idx.codes = append(idx.codes, code)
	}
	sort.Strings(idx.codes)

	// Coalescing is independent per country once the merge is done.
	var g errgroup.Group
	for _, code := range idx.codes {
		entry := idx.entries[code]
		g.Go(func() error {
			entry.coalesce(FamilyIPv4)
			entry.coalesce(FamilyIPv6)
			return nil
		})
	}
	_ = g.Wait()

	return idx, nil
}

// Lookup returns the entry for a country code, or an empty entry when
// the code was never seen. Never nil, never an error.
func (idx *Index) Lookup(code string) *CountryEntry {
	if e, ok := idx.entries[code]; ok {
		return e
	}
	return newCountryEntry(code)
}

// Codes lists all observed country codes in sorted order.
func (idx *Index) Codes() []string {
	return idx.codes
}

// IndexSummary is the per-build aggregate handed to logs and /stats.
type IndexSummary struct {
	Countries     int    `json:"countries"`
	IPv4Blocks    int    `json:"ipv4_blocks"`
	IPv6Blocks    int    `json:"ipv6_blocks"`
	IPv4Addresses uint64 `json:"ipv4_addresses"`
}

func (idx *Index) Summary() IndexSummary {
	s := IndexSummary{Countries: len(idx.entries)}
	for _, e := range idx.entries {
		s.IPv4Blocks += e.BlockCount(FamilyIPv4)
		s.IPv6Blocks += e.BlockCount(FamilyIPv6)
		s.IPv4Addresses += e.AddressCountV4()
	}
	return s
}
