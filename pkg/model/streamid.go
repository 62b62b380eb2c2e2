package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// StreamID is a monotone lexicographic identifier for one entry in an
// event stream: two unsigned integers, millisecond timestamp and a
// per-millisecond sequence, formatted "<ms>-<seq>".
type StreamID struct {
	Ms  uint64
	Seq uint64
}

// StreamIDBeginning means "from the beginning of the stream".
const StreamIDBeginning = "0"

// StreamIDNow means "from now onward" (only entries not yet written).
const StreamIDNow = "$"

var streamIDPattern = regexp.MustCompile(`^(\d+)-(\d+)$`)

// ParseStreamID parses a "<ms>-<seq>" string. Anything malformed, including
// a bare "0" or an empty string, normalizes to the zero ID "0-0" rather
// than failing — stream readers must never be broken by a bad cursor.
func ParseStreamID(s string) StreamID {
	if s == "" || s == StreamIDBeginning {
		return StreamID{}
	}
	m := streamIDPattern.FindStringSubmatch(s)
	if m == nil {
		return StreamID{}
	}
	ms, err1 := strconv.ParseUint(m[1], 10, 64)
	seq, err2 := strconv.ParseUint(m[2], 10, 64)
	if err1 != nil || err2 != nil {
		return StreamID{}
	}
	return StreamID{Ms: ms, Seq: seq}
}

// String renders the canonical "<ms>-<seq>" form.
func (id StreamID) String() string {
	return fmt.Sprintf("%d-%d", id.Ms, id.Seq)
}

// Less reports whether id sorts strictly before other.
func (id StreamID) Less(other StreamID) bool {
	if id.Ms != other.Ms {
		return id.Ms < other.Ms
	}
	return id.Seq < other.Seq
}

// Next returns the next ID after id for the same millisecond, or a new
// millisecond with sequence zero when ms has advanced.
func (id StreamID) Next(nowMs uint64) StreamID {
	if nowMs <= id.Ms {
		return StreamID{Ms: id.Ms, Seq: id.Seq + 1}
	}
	return StreamID{Ms: nowMs, Seq: 0}
}

// IsZero reports whether id is the zero/beginning ID.
func (id StreamID) IsZero() bool {
	return id.Ms == 0 && id.Seq == 0
}

// NormalizeCursor mirrors the Python source's `_normalize_start_id`: a
// cursor that isn't a valid ID, "$", or empty becomes "0-0".
func NormalizeCursor(cursor string) string {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" || cursor == StreamIDNow {
		return cursor
	}
	if streamIDPattern.MatchString(cursor) {
		return cursor
	}
	if cursor == StreamIDBeginning {
		return "0-0"
	}
	return "0-0"
}
