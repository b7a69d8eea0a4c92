package main

import (
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// exportRow matches the historical column/field layout of the
// published CSV and JSON files, prefix length included as text.
type exportRow struct {
	Country      string `json:"Country"`
	IP           string `json:"IP"`
	PrefixLength string `json:"PrefixLength"`
	Version      string `json:"Version"`
}

var exportCSVHeader = []string{"Country", "IP", "PrefixLength", "Version"}

func blockRow(code string, b CidrBlock) exportRow {
	return exportRow{
		Country:      code,
		IP:           b.IPString(),
		PrefixLength: strconv.Itoa(b.Prefix),
		Version:      b.Family.String(),
	}
}

func writeText(path, content string) error {
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}
	return nil
}

func writeCSV(path string, header []string, rows func(w *csv.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "unable to create %s", path)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}
	if err := rows(w); err != nil {
		return errors.Wrapf(err, "unable to write %s", path)
	}
	w.Flush()
	return errors.Wrapf(w.Error(), "unable to flush %s", path)
}

func writeJSON(path string, v interface{}, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return errors.Wrapf(err, "unable to marshal %s", path)
	}
	return writeText(path, string(data))
}

func writeRowCSV(path string, rows []exportRow) error {
	return writeCSV(path, exportCSVHeader, func(w *csv.Writer) error {
		for _, r := range rows {
			if err := w.Write([]string{r.Country, r.IP, r.PrefixLength, r.Version}); err != nil {
				return err
			}
		}
		return nil
	})
}

// ExportIndex writes the full country output tree: the countries list,
// the global and per-family aggregates, and one file per country and
// family in every format.
func ExportIndex(idx *Index, outDir string) error {
	for _, d := range []string{
		"CSV", "CSV/IPV4", "CSV/IPV6",
		"JSON", "JSON/IPV4", "JSON/IPV6",
		"TXT", "TXT/IPV4", "TXT/IPV6",
	} {
		if err := os.MkdirAll(filepath.Join(outDir, d), 0o755); err != nil {
			return errors.Wrap(err, "unable to create output directory")
		}
	}

	if err := exportCountries(idx, outDir); err != nil {
		return err
	}
	if err := exportGlobal(idx, outDir); err != nil {
		return err
	}
	if err := exportPerCountry(idx, outDir); err != nil {
		return err
	}

	s := idx.Summary()
	logrus.Infof("exported %d countries, %d ipv4 blocks, %d ipv6 blocks",
		s.Countries, s.IPv4Blocks, s.IPv6Blocks)
	return nil
}

func exportCountries(idx *Index, outDir string) error {
	codes := idx.Codes()

	if err := writeCSV(filepath.Join(outDir, "CSV", "countries.csv"), []string{"country"}, func(w *csv.Writer) error {
		for _, c := range codes {
			if err := w.Write([]string{c}); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		return err
	}

	type countryRow struct {
		Country string `json:"country"`
	}
	rows := make([]countryRow, 0, len(codes))
	for _, c := range codes {
		rows = append(rows, countryRow{c})
	}
	if err := writeJSON(filepath.Join(outDir, "JSON", "countries.json"), rows, true); err != nil {
		return err
	}

	return writeText(filepath.Join(outDir, "TXT", "countries.txt"), strings.Join(codes, "\n"))
}

// globalRows flattens the index, sorted by (country, family, address)
// like the published aggregate files.
func globalRows(idx *Index, only Family) []exportRow {
	var rows []exportRow
	for _, code := range idx.Codes() {
		entry := idx.Lookup(code)
		for _, f := range []Family{FamilyIPv4, FamilyIPv6} {
			if only != 0 && f != only {
				continue
			}
			for _, b := range entry.Blocks(f) {
				rows = append(rows, blockRow(code, b))
			}
		}
	}
	return rows
}

func exportGlobal(idx *Index, outDir string) error {
	all := globalRows(idx, 0)
	if err := writeRowCSV(filepath.Join(outDir, "CSV", "global.csv"), all); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(outDir, "JSON", "global.json"), all, true); err != nil {
		return err
	}
	if err := writeJSON(filepath.Join(outDir, "JSON", "global_compressed.json"), all, false); err != nil {
		return err
	}

	for _, f := range []Family{FamilyIPv4, FamilyIPv6} {
		rows := globalRows(idx, f)
		name := "global_" + f.String()
		if err := writeRowCSV(filepath.Join(outDir, "CSV", name+".csv"), rows); err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(outDir, "JSON", name+".json"), rows, true); err != nil {
			return err
		}
		if err := writeJSON(filepath.Join(outDir, "JSON", name+"_compressed.json"), rows, false); err != nil {
			return err
		}
	}
	return nil
}

func exportPerCountry(idx *Index, outDir string) error {
	for _, code := range idx.Codes() {
		entry := idx.Lookup(code)
		for _, f := range []Family{FamilyIPv4, FamilyIPv6} {
			blocks := entry.Blocks(f)
			if len(blocks) == 0 {
				continue
			}
			famDir := strings.ToUpper(f.String())

			rows := make([]exportRow, 0, len(blocks))
			cidrs := make([]string, 0, len(blocks))
			for _, b := range blocks {
				rows = append(rows, blockRow(code, b))
				cidrs = append(cidrs, b.String())
			}

			if err := writeRowCSV(filepath.Join(outDir, "CSV", famDir, code+".csv"), rows); err != nil {
				return err
			}
			if err := writeJSON(filepath.Join(outDir, "JSON", famDir, code+".json"), rows, true); err != nil {
				return err
			}
			if err := writeText(filepath.Join(outDir, "TXT", famDir, code+".txt"), strings.Join(cidrs, "\n")); err != nil {
				return err
			}
		}
	}
	return nil
}

// ExportCuratedLists writes one plain-text CIDR list per resolved
// curated list.
func ExportCuratedLists(lists []ResolvedList, outDir string) error {
	dir := filepath.Join(outDir, "Curated-Lists")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "unable to create curated list directory")
	}
	for _, l := range lists {
		cidrs := make([]string, 0, len(l.Blocks))
		for _, b := range l.Blocks {
			cidrs = append(cidrs, b.Block.String())
		}
		if err := writeText(filepath.Join(dir, l.Name+".txt"), strings.Join(cidrs, "\n")); err != nil {
			return err
		}
		logrus.Infof("created %s.txt with %d blocks", l.Name, len(cidrs))
	}
	return nil
}
