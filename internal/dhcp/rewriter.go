package dhcp

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"leasepurge/pkg/models"
)

var (
	leaseStartPattern = regexp.MustCompile(`^lease\s`)
	hardwarePattern   = regexp.MustCompile(`hardware\s+ethernet\s+([0-9a-f:]+);`)
)

// Matcher decides whether a hardware address is marked for removal
type Matcher interface {
	Contains(addr string) bool
}

// Rewriter copies an ISC dhcpd lease file, leaving out the lease blocks
// whose hardware address is matched by Removable. Everything else is
// reproduced line by line.
type Rewriter struct {
	Removable Matcher
}

// NewRewriter creates a rewriter dropping leases matched by removable
func NewRewriter(removable Matcher) *Rewriter {
	return &Rewriter{Removable: removable}
}

// leaseBlock accumulates the lines of the lease currently being read.
type leaseBlock struct {
	lines   []string
	skip    bool
	address string
	depth   int
	opened  bool
}

// track updates the brace depth with the braces found in line. Braces
// inside quoted strings and after a comment marker do not count.
func (b *leaseBlock) track(line string) {
	quoted, escaped := false, false
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case escaped:
			escaped = false
		case quoted && c == '\\':
			escaped = true
		case c == '"':
			quoted = !quoted
		case quoted:
		case c == '#':
			return
		case c == '{':
			b.depth++
			b.opened = true
		case c == '}':
			b.depth--
		}
	}
}

// closedBy reports whether line, already tracked, ends the block. A bare
// closing brace ends a block that never saw its opening brace. dhcpd
// indents nested statements, so a closing brace in the first column ends
// the lease even when a stray brace left the depth unbalanced.
func (b *leaseBlock) closedBy(line string) bool {
	if b.depth > 0 {
		if strings.TrimRight(line, " \t") == "}" {
			log.WithField("lease", b.lines[0]).Warn("Unbalanced braces in lease block")
			return true
		}
		return false
	}
	return b.opened || strings.TrimSpace(line) == "}"
}

// lineWriter emits lines terminated by a single newline and keeps the
// first write error.
type lineWriter struct {
	w   *bufio.Writer
	err error
}

func (lw *lineWriter) write(line string) {
	if lw.err != nil {
		return
	}
	if _, err := lw.w.WriteString(line); err != nil {
		lw.err = err
		return
	}
	lw.err = lw.w.WriteByte('\n')
}

// Rewrite reads the lease file from r and writes the retained content to w.
// The input is consumed in a single pass without look-ahead.
func (rw *Rewriter) Rewrite(r io.Reader, w io.Writer) (*models.RewriteResult, error) {
	result := &models.RewriteResult{}
	out := &lineWriter{w: bufio.NewWriter(w)}
	reader := bufio.NewReader(r)

	var current *leaseBlock

	finish := func(b *leaseBlock) {
		if b.skip {
			log.WithField("mac", b.address).Info("Removing lease")
			result.Removed = append(result.Removed, models.RemovedLease{
				Address:   b.address,
				FirstLine: b.lines[0],
			})
			return
		}
		for _, line := range b.lines {
			out.write(line)
		}
		result.NewCount++
	}

	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return nil, errors.Wrap(err, "failed to read lease file")
		}
		if len(line) == 0 && err == io.EOF {
			break
		}
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")

		switch {
		case leaseStartPattern.MatchString(line):
			if current != nil {
				finish(current)
			}
			current = &leaseBlock{lines: []string{line}}
			current.track(line)
			result.OriginalCount++
			if current.opened && current.depth <= 0 {
				finish(current)
				current = nil
			}
		case current != nil:
			current.lines = append(current.lines, line)
			if match := hardwarePattern.FindStringSubmatch(strings.ToLower(line)); match != nil {
				current.address = match[1]
				if rw.Removable != nil && rw.Removable.Contains(current.address) {
					current.skip = true
				}
			}
			current.track(line)
			if current.closedBy(line) {
				finish(current)
				current = nil
			}
		default:
			out.write(line)
		}

		if out.err != nil {
			return nil, errors.Wrap(out.err, "failed to write lease file")
		}
		if err == io.EOF {
			break
		}
	}

	// An unterminated lease at the end of the file is kept as it is.
	if current != nil {
		log.WithFields(log.Fields{
			"lease": current.lines[0],
			"lines": len(current.lines),
		}).Warn("Lease file ends inside a lease block; keeping the unterminated block unchanged")
		for _, line := range current.lines {
			out.write(line)
		}
		result.NewCount++
		result.Truncated = true
	}

	if out.err == nil {
		out.err = out.w.Flush()
	}
	if out.err != nil {
		return nil, errors.Wrap(out.err, "failed to write lease file")
	}
	return result, nil
}

// CountLeases returns the number of lines starting a lease block
func CountLeases(r io.Reader) (int, error) {
	reader := bufio.NewReader(r)
	count := 0
	for {
		line, err := reader.ReadString('\n')
		if err != nil && err != io.EOF {
			return 0, errors.Wrap(err, "failed to read lease file")
		}
		if leaseStartPattern.MatchString(line) {
			count++
		}
		if err == io.EOF {
			return count, nil
		}
	}
}
