package main

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ParseError marks a malformed delegation line. The caller counts it
// and continues with the next line.
type ParseError struct {
	Line   string
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error: %s [%s]", e.Reason, e.Line)
}

func parseErrf(line, format string, args ...interface{}) *ParseError {
	return &ParseError{Line: line, Reason: fmt.Sprintf(format, args...)}
}

const minRecordFields = 7

// splitRecordLine breaks a delegation line into fields, or reports that
// the line carries no record at all (comment, version header, summary).
func splitRecordLine(line string) (fields []string, skip bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return nil, true, nil
	}
	fields = strings.Split(line, "|")
	// version header: 2|apnic|20240101|...
	if _, err := strconv.Atoi(fields[0]); err == nil {
		return nil, true, nil
	}
	if len(fields) >= 6 && fields[5] == "summary" {
		return nil, true, nil
	}
	if len(fields) < minRecordFields {
		return nil, false, parseErrf(line, "want >=%d fields, got %d", minRecordFields, len(fields))
	}
	return fields, false, nil
}

// ParseLine parses one ipv4/ipv6 delegation line. It returns (nil, nil)
// for lines that carry no address record: comments, headers, summaries
// and asn lines (see ParseASNLine).
func ParseLine(line string) (*AllocationRecord, error) {
	fields, skip, err := splitRecordLine(line)
	if skip || err != nil {
		return nil, err
	}
	if fields[2] == "asn" {
		return nil, nil
	}

	reg, err := ParseRegistry(fields[0])
	if err != nil {
		return nil, parseErrf(line, "%v", err)
	}
	status, err := ParseStatus(fields[6])
	if err != nil {
		return nil, parseErrf(line, "%v", err)
	}
	extent, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return nil, parseErrf(line, "bad value field %q", fields[4])
	}

	rec := &AllocationRecord{
		Registry:    reg,
		CountryCode: strings.ToUpper(fields[1]),
		Extent:      extent,
		Date:        fields[5],
		Status:      status,
	}
	if rec.CountryCode == "" {
		rec.CountryCode = CountryUnassigned
	}

	switch fields[2] {
	case "ipv4":
		start, err := ipv4toUint32(fields[3])
		if err != nil {
			return nil, parseErrf(line, "bad ipv4 start %q", fields[3])
		}
		if extent == 0 {
			return nil, parseErrf(line, "zero address count")
		}
		if uint64(start)+extent > 1<<32 {
			return nil, parseErrf(line, "range exceeds ipv4 space")
		}
		rec.Family = FamilyIPv4
		rec.Start = uint128{lo: uint64(start)}
	case "ipv6":
		start, err := ipv6toUint128(fields[3])
		if err != nil {
			return nil, parseErrf(line, "bad ipv6 start %q", fields[3])
		}
		if extent == 0 || extent > 128 {
			return nil, parseErrf(line, "bad ipv6 prefix length %d", extent)
		}
		rec.Family = FamilyIPv6
		rec.Start = start
	default:
		return nil, parseErrf(line, "unknown record type %q", fields[2])
	}

	return rec, nil
}

// ParseASNLine parses one asn delegation line, returning (nil, nil) for
// anything that is not an asn record.
func ParseASNLine(line string) (*ASNEntry, error) {
	fields, skip, err := splitRecordLine(line)
	if skip || err != nil {
		return nil, err
	}
	if fields[2] != "asn" {
		return nil, nil
	}

	reg, err := ParseRegistry(fields[0])
	if err != nil {
		return nil, parseErrf(line, "%v", err)
	}
	status, err := ParseStatus(fields[6])
	if err != nil {
		return nil, parseErrf(line, "%v", err)
	}
	number, err := strconv.ParseUint(fields[3], 10, 32)
	if err != nil {
		return nil, parseErrf(line, "bad asn number %q", fields[3])
	}
	count, err := strconv.ParseUint(fields[4], 10, 64)
	if err != nil {
		return nil, parseErrf(line, "bad asn count %q", fields[4])
	}

	cc := strings.ToUpper(fields[1])
	if cc == "" {
		cc = CountryUnassigned
	}
	return &ASNEntry{
		Registry:    reg,
		CountryCode: cc,
		Number:      uint32(number),
		Count:       count,
		Date:        fields[5],
		Status:      status,
	}, nil
}

// ParseStream walks one registry snapshot line by line, collecting
// address records and asn entries. Malformed lines are counted, logged
// at debug level and skipped.
func ParseStream(reg Registry, r io.Reader) ([]*AllocationRecord, []*ASNEntry, LineStats) {
	var (
		records []*AllocationRecord
		asns    []*ASNEntry
		stats   LineStats
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		rec, err := ParseLine(line)
		if err != nil {
			stats.Rejected++
			logrus.Debugf("%s: %v", reg, err)
			continue
		}
		if rec != nil {
			stats.Parsed++
			records = append(records, rec)
			continue
		}
		asn, err := ParseASNLine(line)
		if err != nil {
			stats.Rejected++
			logrus.Debugf("%s: %v", reg, err)
			continue
		}
		if asn != nil {
			stats.Parsed++
			asns = append(asns, asn)
			continue
		}
		stats.Skipped++
	}
	return records, asns, stats
}
