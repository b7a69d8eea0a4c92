package main

import (
	"sort"
	"testing"

	"github.com/pkg/errors"
)

func mustAdd(t *testing.T, acc *Accumulator, rec *AllocationRecord) {
	t.Helper()
	if err := acc.Add(rec); err != nil {
		t.Fatal(err)
	}
}

func mustIndex(t *testing.T, accs ...*Accumulator) *Index {
	t.Helper()
	idx, err := BuildIndex(accs...)
	if err != nil {
		t.Fatal(err)
	}
	return idx
}

// coveredV4 expands a block list into the set of covered addresses.
func coveredV4(blocks []CidrBlock) map[uint32]bool {
	out := make(map[uint32]bool)
	for _, b := range blocks {
		start, end := b.RangeV4()
		for ip := start; ; ip++ {
			out[ip] = true
			if ip == end {
				break
			}
		}
	}
	return out
}

func TestAggregatorDedup(t *testing.T) {
	acc := NewAccumulator()
	rec := v4Record(t, "10.0.0.0", 256)
	mustAdd(t, acc, rec)
	mustAdd(t, acc, rec)

	idx := mustIndex(t, acc)
	if n := idx.Lookup("CN").BlockCount(FamilyIPv4); n != 1 {
		t.Fatalf("duplicate insert: got %d blocks, want 1", n)
	}
}

func TestAggregatorCoalescing(t *testing.T) {
	acc := NewAccumulator()
	mustAdd(t, acc, v4Record(t, "10.0.0.0", 128))
	mustAdd(t, acc, v4Record(t, "10.0.0.128", 128))

	before := coveredV4(acc.entries["CN"].Blocks(FamilyIPv4))

	idx := mustIndex(t, acc)
	blocks := idx.Lookup("CN").Blocks(FamilyIPv4)
	if len(blocks) != 1 || blocks[0].String() != "10.0.0.0/24" {
		t.Fatalf("siblings not coalesced: %v", blockStrings(blocks))
	}

	after := coveredV4(blocks)
	if len(before) != len(after) {
		t.Fatalf("coverage changed: %d -> %d addresses", len(before), len(after))
	}
	for ip := range before {
		if !after[ip] {
			t.Fatalf("address %s lost by coalescing", uint32toIPv4String(ip))
		}
	}
}

func TestAggregatorCoalescingCascades(t *testing.T) {
	acc := NewAccumulator()
	for _, start := range []string{"10.0.0.0", "10.0.0.64", "10.0.0.128", "10.0.0.192"} {
		mustAdd(t, acc, v4Record(t, start, 64))
	}

	idx := mustIndex(t, acc)
	blocks := idx.Lookup("CN").Blocks(FamilyIPv4)
	if len(blocks) != 1 || blocks[0].String() != "10.0.0.0/24" {
		t.Fatalf("four /26 siblings: got %v", blockStrings(blocks))
	}
}

func TestAggregatorNoFalseCoalescing(t *testing.T) {
	// adjacent /25s whose union is not an aligned /24
	acc := NewAccumulator()
	mustAdd(t, acc, v4Record(t, "10.0.0.128", 128))
	mustAdd(t, acc, v4Record(t, "10.0.1.0", 128))

	idx := mustIndex(t, acc)
	blocks := idx.Lookup("CN").Blocks(FamilyIPv4)
	if len(blocks) != 2 {
		t.Fatalf("misaligned neighbors merged: %v", blockStrings(blocks))
	}
}

func TestAggregatorOrdering(t *testing.T) {
	acc := NewAccumulator()
	mustAdd(t, acc, v4Record(t, "203.0.113.0", 256))
	mustAdd(t, acc, v4Record(t, "10.0.0.0", 256))
	mustAdd(t, acc, v4Record(t, "100.64.0.0", 256))

	idx := mustIndex(t, acc)
	blocks := idx.Lookup("CN").Blocks(FamilyIPv4)
	for i := 1; i < len(blocks); i++ {
		if blocks[i-1].Network.cmp(blocks[i].Network) >= 0 {
			t.Fatalf("blocks out of order: %v", blockStrings(blocks))
		}
	}
}

func TestBuildIndexMerge(t *testing.T) {
	a := NewAccumulator()
	mustAdd(t, a, v4Record(t, "10.0.0.0", 256))

	b := NewAccumulator()
	rec := v4Record(t, "10.0.0.0", 256)
	rec.Registry = RegistryARIN
	mustAdd(t, b, rec)
	mustAdd(t, b, v6Record(t, "2001:db8::", 32))

	idx := mustIndex(t, a, b)

	// the identical block from two registries dedups, not errors
	cn := idx.Lookup("CN")
	if n := cn.BlockCount(FamilyIPv4); n != 1 {
		t.Fatalf("cross-source duplicate: got %d blocks", n)
	}
	regs := cn.Registries()
	if len(regs) != 2 || regs[0] != RegistryAPNIC || regs[1] != RegistryARIN {
		t.Fatalf("unexpected registries: %v", regs)
	}

	codes := idx.Codes()
	if !sort.StringsAreSorted(codes) {
		t.Fatalf("codes not sorted: %v", codes)
	}
	if len(codes) != 2 || codes[0] != "CN" || codes[1] != "NL" {
		t.Fatalf("unexpected codes: %v", codes)
	}
}

func TestBuildIndexNoData(t *testing.T) {
	_, err := BuildIndex(NewAccumulator(), NewAccumulator())
	if errors.Cause(err) != ErrNoData {
		t.Fatalf("got %v, want ErrNoData", err)
	}
}

func TestIndexLookupUnknown(t *testing.T) {
	acc := NewAccumulator()
	mustAdd(t, acc, v4Record(t, "10.0.0.0", 256))
	idx := mustIndex(t, acc)

	entry := idx.Lookup("ZZ")
	if entry == nil {
		t.Fatal("lookup of unseen code returned nil")
	}
	if entry.BlockCount(FamilyIPv4) != 0 || entry.BlockCount(FamilyIPv6) != 0 {
		t.Fatal("unseen code entry not empty")
	}
}

func TestAggregatorSkipsNonContributing(t *testing.T) {
	acc := NewAccumulator()

	rec := v4Record(t, "10.0.0.0", 256)
	rec.Status = StatusReserved
	mustAdd(t, acc, rec)

	rec = v4Record(t, "10.1.0.0", 256)
	rec.CountryCode = CountryUnassigned
	mustAdd(t, acc, rec)

	if len(acc.entries) != 0 {
		t.Fatalf("non-contributing records accumulated: %v", acc.entries)
	}
}

func TestIndexSummary(t *testing.T) {
	acc := NewAccumulator()
	mustAdd(t, acc, v4Record(t, "10.0.0.0", 256))
	mustAdd(t, acc, v6Record(t, "2001:db8::", 32))
	idx := mustIndex(t, acc)

	s := idx.Summary()
	if s.Countries != 2 || s.IPv4Blocks != 1 || s.IPv6Blocks != 1 || s.IPv4Addresses != 256 {
		t.Fatalf("unexpected summary: %+v", s)
	}
}
