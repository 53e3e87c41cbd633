package reasoning

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// runChunks filters chunks in order and applies the end-of-stream rule.
func runChunks(chunks ...string) (string, State) {
	var out strings.Builder
	var st State
	for _, c := range chunks {
		var clean string
		clean, st = Filter(c, st)
		out.WriteString(clean)
	}
	out.WriteString(Finish(st))
	return out.String(), st
}

func TestFilter_CleanInputAnySplit(t *testing.T) {
	texts := []string{
		"hello world",
		"a < b and c > d",
		"<thin is not a tag",
		"ends with <",
		"ends with <thi",
		"html <b>bold</b>",
	}
	for _, text := range texts {
		for i := 0; i <= len(text); i++ {
			got, _ := runChunks(text[:i], text[i:])
			assert.Equal(t, text, got, "split at %d of %q", i, text)
		}
	}
}

func TestFilter_CleanInputEveryByte(t *testing.T) {
	text := "no <tags> here, just <thinking about </it>"
	chunks := make([]string, 0, len(text))
	for i := range text {
		chunks = append(chunks, text[i:i+1])
	}
	got, st := runChunks(chunks...)
	assert.Equal(t, text, got)
	assert.False(t, st.InsideThink)
}

func TestFilter_RemovesBlockForEverySplit(t *testing.T) {
	text := "A<think>B</think>C"
	for i := 0; i <= len(text); i++ {
		for j := i; j <= len(text); j++ {
			got, st := runChunks(text[:i], text[i:j], text[j:])
			assert.Equal(t, "AC", got, "splits at %d,%d", i, j)
			assert.False(t, st.InsideThink)
		}
	}
}

func TestFilter_SplitTagNeverLeaks(t *testing.T) {
	for _, tag := range []string{OpenTag, CloseTag} {
		for i := 1; i < len(tag); i++ {
			var st State
			if tag == CloseTag {
				_, st = Filter("x"+OpenTag+"reasoning", State{})
			}
			first, st := Filter("before"+tag[:i], st)
			second, st := Filter(tag[i:]+"after", st)

			assert.NotContains(t, first, "<")
			assert.NotContains(t, second, "<")
			if tag == OpenTag {
				assert.Equal(t, "before", first+second)
				assert.True(t, st.InsideThink)
			} else {
				assert.Equal(t, "after", first+second)
				assert.False(t, st.InsideThink)
			}
		}
	}
}

func TestFilter_UnterminatedBlock(t *testing.T) {
	var st State
	clean, st := Filter("A<think>B", st)
	assert.Equal(t, "A", clean)
	assert.True(t, st.InsideThink)
	assert.Equal(t, "", Finish(st))

	clean, st = Filter("A<think>B</thi", State{})
	assert.Equal(t, "A", clean)
	assert.True(t, st.InsideThink)
	assert.Equal(t, "</thi", st.Carry)
	assert.Equal(t, "", Finish(st))
}

func TestFilter_MultipleBlocksInOneChunk(t *testing.T) {
	got, st := runChunks("1<think>a</think>2<think>b</think>3<think>c</think>")
	assert.Equal(t, "123", got)
	assert.False(t, st.InsideThink)
}

func TestFilter_EmptyChunk(t *testing.T) {
	clean, st := Filter("", State{})
	assert.Equal(t, "", clean)
	assert.Equal(t, State{}, st)

	clean, st = Filter("", State{InsideThink: true, Carry: "</th"})
	assert.Equal(t, "", clean)
	assert.True(t, st.InsideThink)
	assert.Equal(t, "</th", st.Carry)

	clean, st = Filter("", State{Carry: "<th"})
	assert.Equal(t, "", clean)
	assert.Equal(t, "<th", st.Carry)
}

// Nested open tags are not tracked: the first close tag ends the block.
func TestFilter_NoNesting(t *testing.T) {
	got, st := runChunks("A<think>x<think>y</think>B</think>C")
	assert.Equal(t, "AB</think>C", got)
	assert.False(t, st.InsideThink)
}

func TestFilter_DoubleOpenWithoutClose(t *testing.T) {
	got, st := runChunks("A<think><think>B")
	assert.Equal(t, "A", got)
	assert.True(t, st.InsideThink)
}

func TestThinkFilter_PushAndFlush(t *testing.T) {
	var f ThinkFilter
	var out strings.Builder
	for _, c := range []string{"Hola <th", "ink>razono</th", "ink> mundo", " <"} {
		out.WriteString(f.Push(c))
	}
	assert.False(t, f.Inside())
	out.WriteString(f.Flush())
	assert.Equal(t, "Hola  mundo <", out.String())
	assert.Equal(t, "", f.Flush())
}

func TestThinkFilter_FlushInsideDiscards(t *testing.T) {
	var f ThinkFilter
	assert.Equal(t, "ok", f.Push("ok<think>secret"))
	assert.True(t, f.Inside())
	assert.Equal(t, "", f.Flush())
}
