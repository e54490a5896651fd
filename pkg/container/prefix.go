// SPDX-License-Identifier: MPL-2.0

package container

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	localHeaderSignature = 0x04034b50
	localHeaderLen       = 30
	maxExtraLen          = 0xffff
)

// PrefixLen returns the number of bytes preceding the first local file
// header, i.e. the size of a launcher executable the zip is appended to. It
// is zero for a plain zip file.
func (a *Archive) PrefixLen() (int64, error) {
	first := int64(-1)
	var nameLen int
	for _, f := range a.zr.File {
		off, err := f.DataOffset()
		if err != nil {
			return 0, fmt.Errorf("failed to locate %s: %w", f.Name, err)
		}
		if first < 0 || off < first {
			first, nameLen = off, len(f.Name)
		}
	}
	if first < 0 {
		return 0, nil
	}

	fixed := int64(localHeaderLen + nameLen)
	lo := max(first-fixed-maxExtraLen, 0)
	window := make([]byte, first-lo)
	if _, err := a.ra.ReadAt(window, lo); err != nil && err != io.EOF {
		return 0, fmt.Errorf("failed to read local header: %w", err)
	}
	for extra := int64(0); extra <= maxExtraLen; extra++ {
		pos := first - fixed - extra - lo
		if pos < 0 {
			break
		}
		h := window[pos:]
		if binary.LittleEndian.Uint32(h) == localHeaderSignature &&
			int(binary.LittleEndian.Uint16(h[26:])) == nameLen &&
			int64(binary.LittleEndian.Uint16(h[28:])) == extra {
			return lo + pos, nil
		}
	}
	return 0, fmt.Errorf("%s: %w: cannot locate first local header", a.location, ErrNotContainer)
}

// Prefix returns the bytes preceding the zip data, typically a launcher
// executable.
func (a *Archive) Prefix() ([]byte, error) {
	n, err := a.PrefixLen()
	if err != nil || n == 0 {
		return nil, err
	}
	buf := make([]byte, n)
	if _, err := a.ra.ReadAt(buf, 0); err != nil {
		return nil, fmt.Errorf("failed to read launcher prefix: %w", err)
	}
	return buf, nil
}
