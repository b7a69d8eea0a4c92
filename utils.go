package main

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

// uint128 holds an address as two 64-bit halves, big-endian. IPv4
// addresses live in the low 32 bits of lo.
type uint128 struct {
	hi uint64
	lo uint64
}

func (u uint128) isZero() bool { return u.hi|u.lo == 0 }

func (u uint128) cmp(v uint128) int {
	if u.hi != v.hi {
		if u.hi < v.hi {
			return -1
		}
		return 1
	}
	if u.lo != v.lo {
		if u.lo < v.lo {
			return -1
		}
		return 1
	}
	return 0
}

// lowBitsZero reports whether the lowest n bits of u are all zero.
func (u uint128) lowBitsZero(n int) bool {
	switch {
	case n <= 0:
		return true
	case n < 64:
		return u.lo&(1<<uint(n)-1) == 0
	case n == 64:
		return u.lo == 0
	case n < 128:
		return u.lo == 0 && u.hi&(1<<uint(n-64)-1) == 0
	}
	return u.isZero()
}

// addPow2 returns u + 2^shift, shift in [0,127].
func (u uint128) addPow2(shift int) uint128 {
	if shift < 64 {
		lo := u.lo + 1<<uint(shift)
		hi := u.hi
		if lo < u.lo {
			hi++
		}
		return uint128{hi, lo}
	}
	return uint128{u.hi + 1<<uint(shift-64), u.lo}
}

func ipv4toUint32(ipv4 string) (uint32, error) {
	var err error
	ipOctets := [4]uint64{}

	parts := strings.SplitN(ipv4, ".", 4)
	if len(parts) != 4 {
		return 0, errors.Errorf("not an ipv4 address: %s", ipv4)
	}
	for i, v := range parts {
		ipOctets[i], err = strconv.ParseUint(v, 10, 32)
		if err != nil {
			return 0, errors.Wrapf(err, "unable to parse ip octet %v", v)
		}
		if ipOctets[i] > 255 {
			return 0, errors.Errorf("ip octet out of range: %s", v)
		}
	}

	result := (ipOctets[0] << 24) | (ipOctets[1] << 16) | (ipOctets[2] << 8) | ipOctets[3]

	return uint32(result), nil
}

func uint32toIPv4String(ip uint32) string {
	return fmt.Sprintf(
		"%d.%d.%d.%d",
		(ip >> 24),
		(ip&0x00FFFFFF)>>16,
		(ip&0x0000FFFF)>>8,
		(ip & 0x000000FF),
	)
}

func ipv6toUint128(ipv6 string) (uint128, error) {
	ip := net.ParseIP(ipv6)
	if ip == nil || strings.IndexByte(ipv6, ':') < 0 {
		return uint128{}, errors.Errorf("not an ipv6 address: %s", ipv6)
	}
	b := ip.To16()
	return uint128{
		hi: binary.BigEndian.Uint64(b[:8]),
		lo: binary.BigEndian.Uint64(b[8:]),
	}, nil
}

func uint128toIPv6String(u uint128) string {
	b := make(net.IP, net.IPv6len)
	binary.BigEndian.PutUint64(b[:8], u.hi)
	binary.BigEndian.PutUint64(b[8:], u.lo)
	return b.String()
}
