package main

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// ASNSet holds the merged asn records of one build, filtered to
// contributing statuses and sorted by number.
type ASNSet struct {
	entries []*ASNEntry
}

func NewASNSet(sources []RegistryDataSource) *ASNSet {
	s := &ASNSet{}
	for _, src := range sources {
		for _, e := range src.ASNs() {
			if !e.Status.Contributes() {
				continue
			}
			s.entries = append(s.entries, e)
		}
	}
	sort.Slice(s.entries, func(i, j int) bool { return s.entries[i].Number < s.entries[j].Number })
	return s
}

func (s *ASNSet) Len() int { return len(s.entries) }

func (s *ASNSet) Entries() []*ASNEntry { return s.entries }

// ByCountry groups entries per country code, keeping the global number
// order inside each group. Unassigned records are left out.
func (s *ASNSet) ByCountry() map[string][]*ASNEntry {
	out := make(map[string][]*ASNEntry)
	for _, e := range s.entries {
		if e.CountryCode == CountryUnassigned {
			continue
		}
		out[e.CountryCode] = append(out[e.CountryCode], e)
	}
	return out
}

func (s *ASNSet) ByRegistry() map[Registry][]*ASNEntry {
	out := make(map[Registry][]*ASNEntry)
	for _, e := range s.entries {
		out[e.Registry] = append(out[e.Registry], e)
	}
	return out
}

// ASNSummary mirrors the summary block the exporter writes.
type ASNSummary struct {
	TotalASNs       int            `json:"total_asns"`
	ByCountry       map[string]int `json:"by_country"`
	ByRegistry      map[string]int `json:"by_registry"`
	ByStatus        map[string]int `json:"by_status"`
	CountriesCount  int            `json:"countries_count"`
	RegistriesCount int            `json:"registries_count"`
}

func (s *ASNSet) Summary() ASNSummary {
	sum := ASNSummary{
		TotalASNs:  len(s.entries),
		ByCountry:  make(map[string]int),
		ByRegistry: make(map[string]int),
		ByStatus:   make(map[string]int),
	}
	for _, e := range s.entries {
		sum.ByCountry[e.CountryCode]++
		sum.ByRegistry[e.Registry.String()]++
		sum.ByStatus[e.Status.String()]++
	}
	sum.CountriesCount = len(sum.ByCountry)
	sum.RegistriesCount = len(sum.ByRegistry)
	return sum
}

type asnRow struct {
	Registry string `json:"Registry"`
	Country  string `json:"Country"`
	ASN      string `json:"ASN"`
	Value    string `json:"Value"`
	Date     string `json:"Date"`
	Status   string `json:"Status"`
}

var asnCSVHeader = []string{"Registry", "Country", "ASN", "Value", "Date", "Status"}

func asnRows(entries []*ASNEntry) []asnRow {
	out := make([]asnRow, 0, len(entries))
	for _, e := range entries {
		out = append(out, asnRow{
			Registry: e.Registry.String(),
			Country:  e.CountryCode,
			ASN:      strconv.FormatUint(uint64(e.Number), 10),
			Value:    strconv.FormatUint(e.Count, 10),
			Date:     e.Date,
			Status:   e.Status.String(),
		})
	}
	return out
}

// ExportASN writes the asn output tree: global files, per-country and
// per-registry groups, and the summary.
func ExportASN(s *ASNSet, outDir string) error {
	base := filepath.Join(outDir, "ASN")
	for _, d := range []string{
		"CSV", "CSV/BY_COUNTRY", "CSV/BY_REGISTRY",
		"JSON", "JSON/BY_COUNTRY", "JSON/BY_REGISTRY",
		"TXT", "TXT/BY_COUNTRY", "TXT/BY_REGISTRY",
	} {
		if err := os.MkdirAll(filepath.Join(base, d), 0o755); err != nil {
			return errors.Wrap(err, "unable to create asn output directory")
		}
	}

	if err := writeASNGroup(base, "global_asn", "", s.entries); err != nil {
		return err
	}
	for code, entries := range s.ByCountry() {
		if err := writeASNGroup(base, code, "BY_COUNTRY", entries); err != nil {
			return err
		}
	}
	for reg, entries := range s.ByRegistry() {
		if err := writeASNGroup(base, reg.String(), "BY_REGISTRY", entries); err != nil {
			return err
		}
	}
	if err := exportASNSummary(s, base); err != nil {
		return err
	}

	logrus.Infof("exported %d asn entries", s.Len())
	return nil
}

func writeASNGroup(base, name, sub string, entries []*ASNEntry) error {
	rows := asnRows(entries)

	if err := writeCSV(filepath.Join(base, "CSV", sub, name+".csv"), asnCSVHeader, func(w *csv.Writer) error {
		for _, r := range rows {
			if err := w.Write([]string{r.Registry, r.Country, r.ASN, r.Value, r.Date, r.Status}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	if err := writeJSON(filepath.Join(base, "JSON", sub, name+".json"), rows, true); err != nil {
		return err
	}

	numbers := make([]string, 0, len(rows))
	for _, r := range rows {
		numbers = append(numbers, r.ASN)
	}
	return writeText(filepath.Join(base, "TXT", sub, name+".txt"), strings.Join(numbers, "\n"))
}

func exportASNSummary(s *ASNSet, base string) error {
	sum := s.Summary()
	if err := writeJSON(filepath.Join(base, "JSON", "summary.json"), sum, true); err != nil {
		return err
	}

	var b strings.Builder
	b.WriteString("ASN Allocation Summary\n")
	b.WriteString("=====================\n\n")
	b.WriteString("Total ASNs: " + strconv.Itoa(sum.TotalASNs) + "\n")
	b.WriteString("Countries: " + strconv.Itoa(sum.CountriesCount) + "\n")
	b.WriteString("Registries: " + strconv.Itoa(sum.RegistriesCount) + "\n\n")

	b.WriteString("By Registry:\n")
	regs := make([]string, 0, len(sum.ByRegistry))
	for r := range sum.ByRegistry {
		regs = append(regs, r)
	}
	sort.Strings(regs)
	for _, r := range regs {
		b.WriteString("  " + r + ": " + strconv.Itoa(sum.ByRegistry[r]) + "\n")
	}

	b.WriteString("\nTop 10 Countries by ASN Count:\n")
	type cc struct {
		code  string
		count int
	}
	top := make([]cc, 0, len(sum.ByCountry))
	for c, n := range sum.ByCountry {
		top = append(top, cc{c, n})
	}
	sort.Slice(top, func(i, j int) bool {
		if top[i].count != top[j].count {
			return top[i].count > top[j].count
		}
		return top[i].code < top[j].code
	})
	if len(top) > 10 {
		top = top[:10]
	}
	for _, c := range top {
		b.WriteString("  " + c.code + ": " + strconv.Itoa(c.count) + "\n")
	}

	return writeText(filepath.Join(base, "TXT", "summary.txt"), b.String())
}
