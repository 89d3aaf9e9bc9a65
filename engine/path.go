package engine

import "strings"

// RootPathName is the well-formed name of the root execution path (spec §3.2).
const RootPathName = "."

// pathSeparator is reserved to '.' (spec §6.4 "pathSeparator").
const pathSeparator = '.'

// Parent returns the name of the path one fan-out level up from name, or ""
// for the root (spec §4.1).
//
// A non-root path's name has the shape ".r1.b1.r2.b2....rn.bn." — stripping
// the last two segments yields the parent.
func Parent(name string) string {
	if name == RootPathName {
		return ""
	}
	trimmed := strings.TrimSuffix(name, string(pathSeparator))
	idx := strings.LastIndexByte(trimmed, pathSeparator)
	if idx < 0 {
		return RootPathName
	}
	trimmed = trimmed[:idx]
	idx = strings.LastIndexByte(trimmed, pathSeparator)
	if idx < 0 {
		return RootPathName
	}
	return trimmed[:idx+1]
}

// Depth returns the count of '.' characters in name (spec §3.2 rule 3). The
// root is depth 1; children of a depth-1 route are depth 3, and so on.
func Depth(name string) int {
	return strings.Count(name, string(pathSeparator))
}

// IsSibling reports whether a and b share the same parent and depth and are
// not the same path (spec §3.2 rule 5).
func IsSibling(a, b string) bool {
	if a == b {
		return false
	}
	return Parent(a) == Parent(b) && Depth(a) == Depth(b)
}

// ChildPathName builds the deterministic name assigned to a fan-out child
// created at route step route on parent, taking branch (spec §4.3 "Fan-out").
func ChildPathName(parent, route, branch string) string {
	return parent + route + "." + branch + "."
}

// ChildrenOf returns every path in exec whose name is exactly one fan-out
// level below parent, taken at route (spec §4.1).
func ChildrenOf(exec map[string]ExecPath, parent, route string) []ExecPath {
	prefix := parent + route + "."
	var out []ExecPath
	wantDepth := Depth(parent) + 2
	for name, p := range exec {
		if name == parent {
			continue
		}
		if !strings.HasPrefix(name, prefix) {
			continue
		}
		if Depth(name) != wantDepth {
			continue
		}
		// Reject deeper descendants that merely share the prefix textually;
		// a true child's remaining suffix after prefix has exactly one more
		// segment followed by a trailing '.'.
		rest := strings.TrimPrefix(name, prefix)
		rest = strings.TrimSuffix(rest, string(pathSeparator))
		if rest == "" || strings.ContainsRune(rest, pathSeparator) {
			continue
		}
		out = append(out, p)
	}
	return out
}

// WellFormed reports whether name satisfies spec §3.2 rules 1-3: begins and
// ends with '.', no empty segments, and odd depth.
func WellFormed(name string) bool {
	if len(name) < 1 || name[0] != pathSeparator || name[len(name)-1] != pathSeparator {
		return false
	}
	if name == RootPathName {
		return true
	}
	segs := strings.Split(strings.Trim(name, string(pathSeparator)), string(pathSeparator))
	for _, s := range segs {
		if s == "" {
			return false
		}
	}
	return Depth(name)%2 == 1
}
