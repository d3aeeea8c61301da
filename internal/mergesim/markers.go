package mergesim

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/phobologic/bit/internal/model"
)

var errMalformedMarkers = errors.New("malformed conflict markers")

const markerLen = 7

type markerState int

const (
	outside markerState = iota
	inOurs
	inBase
	inTheirs
)

func (s markerState) String() string {
	switch s {
	case inOurs:
		return "ours"
	case inBase:
		return "base"
	case inTheirs:
		return "theirs"
	}
	return "outside"
}

type marker int

const (
	noMarker marker = iota
	openMarker
	baseMarker
	splitMarker
	closeMarker
)

// classifyLine recognizes a conflict marker line. Open, base and close
// markers may carry a label after a single space; the split marker stands
// alone.
func classifyLine(line string) marker {
	line = strings.TrimSuffix(line, "\r")
	if len(line) < markerLen {
		return noMarker
	}
	labelled := func(ch byte) bool {
		for i := 0; i < markerLen; i++ {
			if line[i] != ch {
				return false
			}
		}
		return len(line) == markerLen || line[markerLen] == ' '
	}
	switch {
	case labelled('<'):
		return openMarker
	case labelled('|'):
		return baseMarker
	case labelled('>'):
		return closeMarker
	case line == "=======":
		return splitMarker
	}
	return noMarker
}

// ParseHunks walks merged content and returns every marker-delimited
// conflict region. Split, base and close markers outside a region are file
// content. Nested, out-of-order or unterminated markers fail with an error
// wrapping errMalformedMarkers; callers report such paths as Unmergeable.
func ParseHunks(content []byte) ([]model.Hunk, error) {
	var (
		hunks []model.Hunk
		cur   model.Hunk
		state = outside
	)

	sc := bufio.NewScanner(bytes.NewReader(content))
	sc.Buffer(make([]byte, 0, 64*1024), len(content)+1)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Text()
		m := classifyLine(line)

		bad := func() error {
			return fmt.Errorf("line %d: unexpected marker in %s section: %w", lineNo, state, errMalformedMarkers)
		}

		switch state {
		case outside:
			// Outside a conflict only an open marker is structural; a lone
			// "=======" is ordinary content such as a heading underline.
			if m == openMarker {
				cur = model.Hunk{StartLine: lineNo}
				state = inOurs
			}
		case inOurs:
			switch m {
			case noMarker:
				cur.Ours = append(cur.Ours, line)
			case baseMarker:
				state = inBase
			case splitMarker:
				state = inTheirs
			default:
				return nil, bad()
			}
		case inBase:
			switch m {
			case noMarker:
				cur.Base = append(cur.Base, line)
			case splitMarker:
				state = inTheirs
			default:
				return nil, bad()
			}
		case inTheirs:
			switch m {
			case noMarker:
				cur.Theirs = append(cur.Theirs, line)
			case closeMarker:
				hunks = append(hunks, cur)
				state = outside
			default:
				return nil, bad()
			}
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("scanning merged content: %w", err)
	}
	if state != outside {
		return nil, fmt.Errorf("unterminated conflict opened at line %d: %w", cur.StartLine, errMalformedMarkers)
	}
	return hunks, nil
}
