// Package reasoning strips provider reasoning spans from streamed model output.
package reasoning

import "strings"

const (
	OpenTag  = "<think>"
	CloseTag = "</think>"
)

// State is everything the filter carries from one chunk to the next.
type State struct {
	InsideThink bool
	Carry       string
}

// Filter advances the think-block filter by one chunk. It returns the text
// that is safe to show and the state to pass with the next chunk.
//
// Text that might be the beginning of a tag is withheld in Carry until the
// next chunk settles it. Tags do not nest: an open tag seen inside a block is
// discarded like any other reasoning text.
func Filter(chunk string, st State) (string, State) {
	work := st.Carry + chunk
	var out strings.Builder

	for work != "" {
		if !st.InsideThink {
			idx := strings.Index(work, OpenTag)
			if idx >= 0 {
				out.WriteString(work[:idx])
				work = work[idx+len(OpenTag):]
				st.InsideThink = true
				continue
			}
			keep := partialSuffix(work, OpenTag)
			out.WriteString(work[:len(work)-keep])
			return out.String(), State{Carry: work[len(work)-keep:]}
		}

		idx := strings.Index(work, CloseTag)
		if idx >= 0 {
			work = work[idx+len(CloseTag):]
			st.InsideThink = false
			continue
		}
		keep := partialSuffix(work, CloseTag)
		return out.String(), State{InsideThink: true, Carry: work[len(work)-keep:]}
	}

	return out.String(), State{InsideThink: st.InsideThink}
}

// Finish returns what may still be emitted once the stream has ended. An
// unterminated think block is dropped.
func Finish(st State) string {
	if st.InsideThink {
		return ""
	}
	return st.Carry
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of tag.
func partialSuffix(s, tag string) int {
	n := len(tag) - 1
	if n > len(s) {
		n = len(s)
	}
	for ; n > 0; n-- {
		if strings.HasPrefix(tag, s[len(s)-n:]) {
			return n
		}
	}
	return 0
}

// ThinkFilter is a stateful wrapper around Filter for a single stream.
type ThinkFilter struct {
	state State
}

// Push filters the next chunk.
func (f *ThinkFilter) Push(chunk string) string {
	var clean string
	clean, f.state = Filter(chunk, f.state)
	return clean
}

// Flush ends the stream and returns any withheld text that is safe to emit.
func (f *ThinkFilter) Flush() string {
	tail := Finish(f.state)
	f.state.Carry = ""
	return tail
}

// Inside reports whether the stream is currently inside a think block.
func (f *ThinkFilter) Inside() bool {
	return f.state.InsideThink
}
