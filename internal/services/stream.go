package services

import (
	"bufio"
	"errors"
	"io"
	"iter"
	"strings"

	"github.com/tmaxmax/go-sse"
)

// FragmentKind classifies a unit decoded from a chat stream.
type FragmentKind int

const (
	// FragmentText carries text to append to the assistant response.
	FragmentText FragmentKind = iota
	// FragmentDone marks normal completion of the stream.
	FragmentDone
	// FragmentError carries a provider error message that supersedes the response.
	FragmentError
)

// DoneSentinel is the fragment value that marks normal stream completion.
const DoneSentinel = "[DONE]"

const errorEventType = "error"

// Fragment is one unit of incremental text delivered by the backend for a single response.
type Fragment struct {
	Kind FragmentKind
	Text string
}

func classify(eventType, data string) Fragment {
	if eventType == errorEventType {
		return Fragment{Kind: FragmentError, Text: data}
	}
	if strings.TrimSpace(data) == DoneSentinel {
		return Fragment{Kind: FragmentDone}
	}
	return Fragment{Kind: FragmentText, Text: data}
}

// LineDecoder decodes a chunked text body in which every meaningful line has the form "data:<fragment>".
// Everything after the "data:" prefix is the fragment verbatim, leading spaces included, which is how the
// backend transmits whitespace-only tokens. Only newline-terminated lines are decoded; a partial line is
// kept buffered until the rest of it arrives, and an unterminated tail at EOF is discarded.
//
// An "event:" line sets the event type of the data lines that follow it, up to the next blank line. Data
// under the "error" event type is reported as a FragmentError.
type LineDecoder struct{}

// Fragments returns an iterator over the fragments of r. Iteration stops after a FragmentDone or
// FragmentError, at EOF, or on the first read error, which is yielded.
func (LineDecoder) Fragments(r io.Reader) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		br := bufio.NewReader(r)
		eventType := ""
		for {
			line, err := br.ReadString('\n')
			if err != nil {
				if errors.Is(err, io.EOF) {
					return
				}
				yield(Fragment{}, err)
				return
			}

			line = strings.TrimSuffix(line[:len(line)-1], "\r")
			if strings.TrimSpace(line) == "" {
				eventType = ""
				continue
			}

			if v, ok := strings.CutPrefix(line, "event:"); ok {
				eventType = strings.TrimSpace(v)
				continue
			}

			data, ok := strings.CutPrefix(line, "data:")
			if !ok {
				continue
			}

			f := classify(eventType, data)
			if !yield(f, nil) || f.Kind != FragmentText {
				return
			}
		}
	}
}

// EventDecoder decodes a text/event-stream body following the SSE standard: multi-line data is joined
// with newlines and a single space after "data:" is stripped. Events of type "error" are reported as a
// FragmentError.
type EventDecoder struct{}

// Fragments returns an iterator over the fragments of r, with the same termination rules as
// LineDecoder.Fragments.
func (EventDecoder) Fragments(r io.Reader) iter.Seq2[Fragment, error] {
	return func(yield func(Fragment, error) bool) {
		for ev, err := range sse.Read(r, nil) {
			if err != nil {
				yield(Fragment{}, err)
				return
			}

			f := classify(ev.Type, ev.Data)
			if !yield(f, nil) || f.Kind != FragmentText {
				return
			}
		}
	}
}
