// Package hid handles hierarchical ids: dot-separated strings encoding a
// profile's lineage position ("generation.sibling.sibling…"), e.g. "1.2.3"
// is the third child of the second child of the root. Spouses who joined by
// marriage (munasib) carry no HID at all.
package hid

import (
	"strconv"
	"strings"

	"shajara/internal/core/apperror"
)

// Valid reports whether s is a well-formed HID: non-empty dot-separated
// positive integers with no leading zeros.
func Valid(s string) bool {
	if s == "" {
		return false
	}
	for _, seg := range strings.Split(s, ".") {
		if seg == "" {
			return false
		}
		if len(seg) > 1 && seg[0] == '0' {
			return false
		}
		n, err := strconv.Atoi(seg)
		if err != nil || n < 1 {
			return false
		}
	}
	return true
}

// Parse validates s and returns its segments.
func Parse(s string) ([]int, error) {
	if !Valid(s) {
		return nil, apperror.NewValidation("invalid hierarchical id").WithDetail("hid", s)
	}
	parts := strings.Split(s, ".")
	segs := make([]int, len(parts))
	for i, p := range parts {
		segs[i], _ = strconv.Atoi(p)
	}
	return segs, nil
}

// Depth returns the number of segments (generation depth); 0 for empty.
func Depth(s string) int {
	if s == "" {
		return 0
	}
	return strings.Count(s, ".") + 1
}

// IsAncestorOf reports whether ancestor is a strict prefix of descendant,
// segment-wise. "1.2" is an ancestor of "1.2.3" but not of "1.20".
func IsAncestorOf(ancestor, descendant string) bool {
	if ancestor == "" || descendant == "" || ancestor == descendant {
		return false
	}
	return strings.HasPrefix(descendant, ancestor+".")
}

// InBranch reports whether hid falls inside the branch rooted at prefix.
// The branch root itself is part of the branch. Used for moderator scoping.
func InBranch(prefix, hid string) bool {
	if prefix == "" || hid == "" {
		return false
	}
	return hid == prefix || strings.HasPrefix(hid, prefix+".")
}

// Child returns the HID of the n-th child (1-based) of parent.
func Child(parent string, n int) string {
	if parent == "" {
		return strconv.Itoa(n)
	}
	return parent + "." + strconv.Itoa(n)
}

// Compare orders two HIDs segment-wise numerically, so "1.2" < "1.10".
// Shorter prefixes sort before their descendants. Either side may be
// malformed only if it bypassed Valid; Compare treats missing segments as
// smaller.
func Compare(a, b string) int {
	as := strings.Split(a, ".")
	bs := strings.Split(b, ".")
	for i := 0; i < len(as) && i < len(bs); i++ {
		an, _ := strconv.Atoi(as[i])
		bn, _ := strconv.Atoi(bs[i])
		if an != bn {
			if an < bn {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(as) < len(bs):
		return -1
	case len(as) > len(bs):
		return 1
	}
	return 0
}
