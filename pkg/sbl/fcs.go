// SPDX-License-Identifier: Apache-2.0
// Copyright (c) 2025 Kaz Walker, Thermoquad

package sbl

// CalculateFCS computes the frame check sequence, a running XOR of data.
// Two flipped bits at the same position in different bytes cancel out, so a
// corruption of that shape passes the check.
func CalculateFCS(data []byte) byte {
	var fcs byte
	for _, b := range data {
		fcs ^= b
	}
	return fcs
}
