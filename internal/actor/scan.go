package actor

import (
	"regexp"
	"sort"
	"strconv"
	"strings"
)

// globToRegexp renders a SCAN-style glob (only `*` and `?` as
// metacharacters) as an anchored regexp, escaping everything else that
// would otherwise be regexp-special.
func globToRegexp(pattern string) (*regexp.Regexp, error) {
	var b strings.Builder
	b.WriteByte('^')
	for _, r := range pattern {
		switch r {
		case '*':
			b.WriteString(".*")
		case '?':
			b.WriteString(".")
		case '.', '(', ')', '+', '|', '^', '$', '@', '%', '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('$')
	return regexp.Compile(b.String())
}

// scanArgs is the shared arg1=cursor, arg2=pattern, arg3=count parsing
// used by SCAN, HSCAN and SSCAN.
type scanArgs struct {
	cursor  int
	pattern string
	count   int
}

func parseScanArgs(args []string) scanArgs {
	sa := scanArgs{cursor: 0, pattern: "", count: 10}
	if len(args) > 0 {
		if n, err := strconv.Atoi(args[0]); err == nil {
			sa.cursor = n
		}
	}
	if len(args) > 1 {
		sa.pattern = args[1]
	}
	if len(args) > 2 {
		if n, err := strconv.Atoi(args[2]); err == nil && n > 0 {
			sa.count = n
		}
	}
	return sa
}

// RunScan is the directory's entry point into the shared SCAN helper
// for the top-level "scan" command, which walks key names rather than
// a single container's contents.
func RunScan(items []string, args []string) []string {
	return runScan(items, parseScanArgs(args))
}

// runScan sorts items lexicographically (in place), then walks them from
// cursor for up to count matches, returning the next cursor ("0" when
// exhausted) followed by the matched items.
func runScan(items []string, sa scanArgs) []string {
	sort.Strings(items)

	var re *regexp.Regexp
	if sa.pattern != "" {
		var err error
		re, err = globToRegexp(sa.pattern)
		if err != nil {
			re = nil
		}
	}

	start := sa.cursor
	if start < 0 || start > len(items) {
		start = 0
	}

	matched := make([]string, 0, sa.count)
	end := start
	for end < len(items) && len(matched) < sa.count {
		item := items[end]
		end++
		if re == nil || re.MatchString(item) {
			matched = append(matched, item)
		}
	}

	next := "0"
	if end < len(items) {
		next = strconv.Itoa(end)
	}

	out := make([]string, 0, len(matched)+1)
	out = append(out, next)
	out = append(out, matched...)
	return out
}
