package main

import (
	"testing"
)

func TestResolveCuratedList(t *testing.T) {
	acc := NewAccumulator()
	rec := v4Record(t, "10.0.0.0", 1<<24) // 10.0.0.0/8
	rec.CountryCode = "IR"
	mustAdd(t, acc, rec)

	idx := mustIndex(t, acc)

	resolved := ResolveCuratedList(idx, CuratedList{
		Name:  "StateSponsorsOfTerrorism",
		Codes: []string{"IR", "KP"},
	})

	if len(resolved.Blocks) != 1 {
		t.Fatalf("got %d blocks, want 1", len(resolved.Blocks))
	}
	b := resolved.Blocks[0]
	if b.Code != "IR" {
		t.Fatalf("block attributed to %s, want IR", b.Code)
	}
	if b.Block.String() != "10.0.0.0/8" {
		t.Fatalf("got block %s", b.Block)
	}
	// KP absent from the index: zero blocks, no error
}

func TestResolveCuratedListOrdering(t *testing.T) {
	acc := NewAccumulator()
	for code, start := range map[string]string{
		"SY": "5.0.0.0",
		"IR": "10.0.0.0",
		"CU": "152.206.0.0",
	} {
		rec := v4Record(t, start, 256)
		rec.CountryCode = code
		mustAdd(t, acc, rec)
	}
	rec := v6Record(t, "2001:db8::", 32)
	rec.CountryCode = "IR"
	mustAdd(t, acc, rec)

	idx := mustIndex(t, acc)
	resolved := ResolveCuratedList(idx, CuratedList{
		Name:  "test",
		Codes: []string{"IR", "CU", "KP", "SY"},
	})

	want := []struct {
		code  string
		block string
	}{
		{"IR", "10.0.0.0/24"},
		{"IR", "2001:db8::/32"},
		{"CU", "152.206.0.0/24"},
		{"SY", "5.0.0.0/24"},
	}
	if len(resolved.Blocks) != len(want) {
		t.Fatalf("got %d blocks, want %d", len(resolved.Blocks), len(want))
	}
	for i, w := range want {
		got := resolved.Blocks[i]
		if got.Code != w.code || got.Block.String() != w.block {
			t.Errorf("block %d: got %s %s, want %s %s", i, got.Code, got.Block, w.code, w.block)
		}
	}
}

func TestResolveCuratedListsStateless(t *testing.T) {
	acc := NewAccumulator()
	rec := v4Record(t, "10.0.0.0", 256)
	rec.CountryCode = "IR"
	mustAdd(t, acc, rec)
	idx := mustIndex(t, acc)

	lists := []CuratedList{{Name: "a", Codes: []string{"IR"}}, {Name: "b", Codes: []string{"IR"}}}
	first := ResolveCuratedLists(idx, lists)
	second := ResolveCuratedLists(idx, lists)
	if len(first) != 2 || len(second) != 2 {
		t.Fatal("list count mismatch")
	}
	for i := range first {
		if len(first[i].Blocks) != len(second[i].Blocks) {
			t.Fatal("resolution changed between runs")
		}
	}
}
