package main

import (
	"github.com/sirupsen/logrus"
)

// CuratedList is an externally maintained country-code group, e.g. a
// sanctions list. The codes are config input, never derived from
// registry data.
type CuratedList struct {
	Name  string   `yaml:"name"`
	Codes []string `yaml:"codes"`
}

// CuratedBlock is one block of a resolved list, annotated with the
// country code that contributed it.
type CuratedBlock struct {
	Code  string
	Block CidrBlock
}

// ResolvedList is the union of the member countries' blocks, in stable
// per-country, per-family, ascending-address order.
type ResolvedList struct {
	Name   string
	Blocks []CuratedBlock
}

// ResolveCuratedList collects the blocks of every member country from
// the index. A code without delegated space contributes nothing; that
// is expected, not an error.
func ResolveCuratedList(idx *Index, list CuratedList) ResolvedList {
	out := ResolvedList{Name: list.Name}
	for _, code := range list.Codes {
		entry := idx.Lookup(code)
		n := 0
		for _, f := range []Family{FamilyIPv4, FamilyIPv6} {
			for _, b := range entry.Blocks(f) {
				out.Blocks = append(out.Blocks, CuratedBlock{Code: code, Block: b})
				n++
			}
		}
		if n == 0 {
			logrus.Debugf("curated list %s: no delegated space for %s", list.Name, code)
		}
	}
	return out
}

// ResolveCuratedLists resolves every configured list against a fresh
// index. Lists hold no state between runs.
func ResolveCuratedLists(idx *Index, lists []CuratedList) []ResolvedList {
	out := make([]ResolvedList, 0, len(lists))
	for _, l := range lists {
		r := ResolveCuratedList(idx, l)
		logrus.Infof("curated list %s: %d blocks from %d countries", l.Name, len(r.Blocks), len(l.Codes))
		out = append(out, r)
	}
	return out
}
