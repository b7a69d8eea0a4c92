package main

import (
	"strconv"

	"github.com/google/btree"
	"github.com/pkg/errors"
)

// Registry is one of the five Regional Internet Registries.
type Registry int

const (
	RegistryAPNIC Registry = iota
	RegistryARIN
	RegistryRIPENCC
	RegistryAFRINIC
	RegistryLACNIC
)

var registryNames = [...]string{"apnic", "arin", "ripencc", "afrinic", "lacnic"}

func (r Registry) String() string {
	if r < 0 || int(r) >= len(registryNames) {
		return "unknown"
	}
	return registryNames[r]
}

func AllRegistries() []Registry {
	return []Registry{RegistryAPNIC, RegistryARIN, RegistryRIPENCC, RegistryAFRINIC, RegistryLACNIC}
}

func ParseRegistry(s string) (Registry, error) {
	for i, name := range registryNames {
		if s == name {
			return Registry(i), nil
		}
	}
	return 0, errors.Errorf("unknown registry: %s", s)
}

// Family is the address family of a record or block.
type Family int

const (
	FamilyIPv4 Family = iota + 1
	FamilyIPv6
)

func (f Family) String() string {
	if f == FamilyIPv6 {
		return "ipv6"
	}
	return "ipv4"
}

// Bits is the width of the family's address space.
func (f Family) Bits() int {
	if f == FamilyIPv6 {
		return 128
	}
	return 32
}

// Status of a delegation record. Only allocated and assigned records
// contribute to country output.
type Status int

const (
	StatusAllocated Status = iota
	StatusAssigned
	StatusAvailable
	StatusReserved
)

var statusNames = [...]string{"allocated", "assigned", "available", "reserved"}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return "unknown"
	}
	return statusNames[s]
}

func ParseStatus(s string) (Status, error) {
	for i, name := range statusNames {
		if s == name {
			return Status(i), nil
		}
	}
	return 0, errors.Errorf("unknown status: %s", s)
}

// Contributes reports whether records with this status end up in the
// per-country block sets.
func (s Status) Contributes() bool {
	return s == StatusAllocated || s == StatusAssigned
}

// CountryUnassigned is the exchange-format sentinel for records without
// a country.
const CountryUnassigned = "*"

// AllocationRecord is one ipv4/ipv6 line of an RIR delegation file.
// Immutable once parsed; discarded after normalization.
type AllocationRecord struct {
	Registry    Registry
	CountryCode string
	Family      Family
	Start       uint128
	// Extent is an address count for IPv4 and a prefix length for IPv6,
	// exactly as the exchange format reports it.
	Extent uint64
	Date   string
	Status Status
}

// ASNEntry is one asn line of an RIR delegation file.
type ASNEntry struct {
	Registry    Registry
	CountryCode string
	Number      uint32
	Count       uint64
	Date        string
	Status      Status
}

// CidrBlock is a canonical (network, prefix) pair. The network address
// has all bits beyond the prefix zero.
type CidrBlock struct {
	Family  Family
	Network uint128
	Prefix  int
}

// Less orders blocks by (network, prefix) for use in a btree set.
func (b CidrBlock) Less(than btree.Item) bool {
	o := than.(CidrBlock)
	if c := b.Network.cmp(o.Network); c != 0 {
		return c < 0
	}
	return b.Prefix < o.Prefix
}

// IPString renders the network address without the prefix.
func (b CidrBlock) IPString() string {
	if b.Family == FamilyIPv6 {
		return uint128toIPv6String(b.Network)
	}
	return uint32toIPv4String(uint32(b.Network.lo))
}

func (b CidrBlock) String() string {
	return b.IPString() + "/" + strconv.Itoa(b.Prefix)
}

// RangeV4 returns the first and last address of an IPv4 block.
func (b CidrBlock) RangeV4() (start, end uint32) {
	start = uint32(b.Network.lo)
	end = start | uint32(0xFFFFFFFF)>>uint(b.Prefix)
	return
}

// AddressCountV4 is the number of addresses an IPv4 block covers.
func (b CidrBlock) AddressCountV4() uint64 {
	return 1 << uint(32-b.Prefix)
}

// LineStats counts how lines of one source file were handled.
type LineStats struct {
	Parsed   int // records successfully parsed
	Skipped  int // comments, headers, summary lines
	Rejected int // malformed or invalid, counted and dropped
}

func (s *LineStats) add(o LineStats) {
	s.Parsed += o.Parsed
	s.Skipped += o.Skipped
	s.Rejected += o.Rejected
}

// RegistryDataSource yields the parsed records of one registry's
// delegation snapshot.
type RegistryDataSource interface {
	Load() error
	Registry() Registry
	Records() []*AllocationRecord
	ASNs() []*ASNEntry
	Stats() LineStats
	Cleanup() error
}

func BuildRegistryDataSources(conf *Config) []RegistryDataSource {
	out := make([]RegistryDataSource, 0, len(registryNames))
	for _, reg := range AllRegistries() {
		out = append(out, NewRIRRemoteDataSource(conf, reg))
	}
	return out
}
