package main

import (
	"math/bits"

	"github.com/pkg/errors"
)

var (
	// ErrEmptyRange marks a record with a zero address extent.
	ErrEmptyRange = errors.New("empty address range")
	// ErrOverflow marks a range running past the top of its address space.
	ErrOverflow = errors.New("range exceeds address space")
	// ErrAlignment marks an ipv6 start address with bits set below its prefix.
	ErrAlignment = errors.New("start address not aligned to prefix")
)

// NormalizeRecord converts one allocation record into the minimal
// ordered list of CIDR blocks covering exactly its range.
//
// IPv4 extents are plain address counts, rarely powers of two and
// rarely aligned, so the range is split greedily: at each step the
// largest power-of-two block that fits both the remaining count and the
// current start alignment is emitted. IPv6 records already carry a
// prefix length and only need their alignment validated; a misaligned
// record is rejected, never coerced.
func NormalizeRecord(rec *AllocationRecord) ([]CidrBlock, error) {
	switch rec.Family {
	case FamilyIPv6:
		return normalizeIPv6(rec)
	default:
		return normalizeIPv4(rec)
	}
}

func normalizeIPv4(rec *AllocationRecord) ([]CidrBlock, error) {
	count := rec.Extent
	if count == 0 {
		return nil, errors.Wrapf(ErrEmptyRange, "%s record at %s", rec.Registry, rec.CountryCode)
	}
	start := uint32(rec.Start.lo)
	if uint64(start)+count > 1<<32 {
		return nil, errors.Wrapf(ErrOverflow, "start %s count %d", uint32toIPv4String(start), count)
	}

	// Worst case is alternating alignment, ~2*log2(count) blocks.
	out := make([]CidrBlock, 0, 4)
	for count > 0 {
		// Largest block the current start address is aligned to;
		// TrailingZeros32(0) is 32, so start 0 allows the whole space.
		size := uint64(1) << uint(bits.TrailingZeros32(start))
		for size > count {
			size >>= 1
		}
		prefix := 32 - bits.TrailingZeros64(size)
		out = append(out, CidrBlock{
			Family:  FamilyIPv4,
			Network: uint128{lo: uint64(start)},
			Prefix:  prefix,
		})
		start += uint32(size)
		count -= size
	}
	return out, nil
}

func normalizeIPv6(rec *AllocationRecord) ([]CidrBlock, error) {
	prefix := int(rec.Extent)
	if prefix == 0 {
		return nil, errors.Wrap(ErrEmptyRange, "ipv6 record without prefix")
	}
	if prefix > 128 {
		return nil, errors.Wrapf(ErrOverflow, "ipv6 prefix length %d", prefix)
	}
	if !rec.Start.lowBitsZero(128 - prefix) {
		return nil, errors.Wrapf(ErrAlignment, "%s/%d", uint128toIPv6String(rec.Start), prefix)
	}
	return []CidrBlock{{
		Family:  FamilyIPv6,
		Network: rec.Start,
		Prefix:  prefix,
	}}, nil
}
