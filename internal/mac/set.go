package mac

import (
	"regexp"
	"sort"
	"strings"
)

var (
	addressPattern   = regexp.MustCompile(`^([0-9a-f]{2}:){5}[0-9a-f]{2}$`)
	attributePattern = regexp.MustCompile(`ethernet\s+([0-9a-f:]+)`)
)

// Normalize lower-cases a hardware address and checks that it has
// exactly six colon-separated octets.
func Normalize(addr string) (string, bool) {
	addr = strings.ToLower(strings.TrimSpace(addr))
	if !addressPattern.MatchString(addr) {
		return "", false
	}
	return addr, true
}

// ExtractFromAttribute pulls the address out of a directory attribute
// value such as "ethernet AA:BB:CC:DD:EE:FF". The captured portion is
// returned as found in the lower-cased value; values without the
// "ethernet" prefix are reported as not found.
func ExtractFromAttribute(raw []byte) (string, bool) {
	match := attributePattern.FindStringSubmatch(strings.ToLower(string(raw)))
	if match == nil {
		return "", false
	}
	return match[1], true
}

// Set is a membership-only collection of hardware addresses
type Set struct {
	entries map[string]struct{}
}

// NewSet creates a set holding the given addresses
func NewSet(addrs ...string) Set {
	s := Set{entries: make(map[string]struct{}, len(addrs))}
	for _, addr := range addrs {
		s.Add(addr)
	}
	return s
}

// Add inserts an address. Addresses are stored lower-cased.
func (s *Set) Add(addr string) {
	if s.entries == nil {
		s.entries = make(map[string]struct{})
	}
	s.entries[strings.ToLower(addr)] = struct{}{}
}

// Contains reports whether addr is a member, ignoring case
func (s Set) Contains(addr string) bool {
	_, ok := s.entries[strings.ToLower(addr)]
	return ok
}

// Len returns the number of distinct addresses
func (s Set) Len() int {
	return len(s.entries)
}

// Sorted returns the members in lexical order
func (s Set) Sorted() []string {
	addrs := make([]string, 0, len(s.entries))
	for addr := range s.entries {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}
