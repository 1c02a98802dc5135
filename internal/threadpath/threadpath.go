// Package threadpath encodes a comment's position in its reply tree as a
// materialized path. Each tree level contributes one fixed-width base-36
// segment, so lexicographic order of full paths equals insertion order within
// every parent, and a subtree is exactly the rows sharing a path prefix.
package threadpath

import (
	"fmt"
	"strings"

	"commentengine/internal/apperr"
)

const (
	// SegmentWidth fixes every segment at 6 base-36 digits, good for
	// 36^6-1 (≈2.1 billion) siblings under one parent.
	SegmentWidth = 6

	// Separator sorts below '0' in ASCII so a parent's path always sorts
	// immediately before its subtree.
	Separator = "."
)

const base36Digits = "0123456789abcdefghijklmnopqrstuvwxyz"

var maxOrdinal = pow(36, SegmentWidth) - 1

// Allocate returns the thread path for a new comment. parentPath is empty for
// root comments. ordinal is the zero-based chronological insertion position
// under that parent and must come from an atomic counter when replies race.
// The result is deterministic given the inputs.
func Allocate(parentPath string, ordinal int64, maxDepth int) (string, error) {
	if ordinal < 0 {
		return "", fmt.Errorf("%w: negative ordinal %d", apperr.ErrValidation, ordinal)
	}
	if ordinal > maxOrdinal {
		return "", fmt.Errorf("%w: ordinal %d exceeds segment capacity", apperr.ErrValidation, ordinal)
	}

	segment := encodeSegment(ordinal)
	if parentPath == "" {
		if maxDepth < 1 {
			return "", apperr.ErrDepthExceeded
		}
		return segment, nil
	}

	if Depth(parentPath)+1 >= maxDepth {
		return "", apperr.ErrDepthExceeded
	}
	return parentPath + Separator + segment, nil
}

// Depth returns the zero-based tree depth encoded in path. Root comments have
// depth 0.
func Depth(path string) int {
	if path == "" {
		return 0
	}
	return strings.Count(path, Separator)
}

// ParentPath returns the path of the parent comment, or "" for roots.
func ParentPath(path string) string {
	idx := strings.LastIndex(path, Separator)
	if idx < 0 {
		return ""
	}
	return path[:idx]
}

// IsAncestor reports whether ancestor's subtree contains path. A path is not
// its own ancestor.
func IsAncestor(ancestor, path string) bool {
	if ancestor == "" || ancestor == path {
		return false
	}
	return strings.HasPrefix(path, ancestor+Separator)
}

// Ordinal decodes the last segment of path back to its insertion ordinal.
func Ordinal(path string) (int64, error) {
	seg := path
	if idx := strings.LastIndex(path, Separator); idx >= 0 {
		seg = path[idx+1:]
	}
	if len(seg) != SegmentWidth {
		return 0, fmt.Errorf("%w: malformed path segment %q", apperr.ErrValidation, seg)
	}
	var n int64
	for i := 0; i < len(seg); i++ {
		d := strings.IndexByte(base36Digits, seg[i])
		if d < 0 {
			return 0, fmt.Errorf("%w: malformed path segment %q", apperr.ErrValidation, seg)
		}
		n = n*36 + int64(d)
	}
	return n, nil
}

func encodeSegment(ordinal int64) string {
	buf := make([]byte, SegmentWidth)
	for i := SegmentWidth - 1; i >= 0; i-- {
		buf[i] = base36Digits[ordinal%36]
		ordinal /= 36
	}
	return string(buf)
}

func pow(base, exp int64) int64 {
	n := int64(1)
	for i := int64(0); i < exp; i++ {
		n *= base
	}
	return n
}
