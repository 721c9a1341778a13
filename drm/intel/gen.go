// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package intel

// genRange maps an inclusive range of PCI device IDs to a generation.
type genRange struct {
	lo, hi uint16
	gen    int
}

// Entries are searched in order, so narrow ranges come before the wide
// Haswell range that encloses them.
var genTable = []genRange{
	{0x0a84, 0x0a84, 9},
	{0x3577, 0x3577, 2}, {0x2562, 0x2562, 2}, {0x3582, 0x3582, 2}, {0x358e, 0x358e, 2},
	{0x2582, 0x27ae, 3}, {0x29b2, 0x29d2, 3}, {0xa001, 0xa011, 3},
	{0x2972, 0x2a42, 4}, {0x2e02, 0x2e92, 4},
	{0x0042, 0x0046, 5},
	{0x0102, 0x0126, 6},
	{0x0152, 0x016a, 7}, {0x0f30, 0x0f33, 7}, {0x0402, 0x0d2e, 7},
	{0x1602, 0x163e, 8}, {0x22b0, 0x22b3, 8},
	{0x1902, 0x193e, 9}, {0x1a84, 0x1a85, 9}, {0x5a84, 0x5a85, 9},
	{0x3184, 0x3185, 9}, {0x5902, 0x593b, 9}, {0x87c0, 0x87ca, 9}, {0x3e90, 0x3ea9, 9},
	{0x9b21, 0x9bf6, 9},
	{0x8a50, 0x8a71, 11}, {0x4e51, 0x4e71, 11}, {0x4500, 0x4571, 11},
}

// Gen returns the graphics generation of the device with PCI ID id.
// Unknown devices are assumed to be recent.
func Gen(id uint32) int {
	for _, r := range genTable {
		if id >= uint32(r.lo) && id <= uint32(r.hi) {
			return r.gen
		}
	}
	return 12
}
