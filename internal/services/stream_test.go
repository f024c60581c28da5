package services_test

import (
	"errors"
	"io"
	"iter"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/vamu-rec/recommender-chat/internal/services"
)

type fragmentDecoder interface {
	Fragments(r io.Reader) iter.Seq2[services.Fragment, error]
}

func collect(t *testing.T, d fragmentDecoder, r io.Reader) ([]services.Fragment, error) {
	t.Helper()
	var frags []services.Fragment
	for f, err := range d.Fragments(r) {
		if err != nil {
			return frags, err
		}
		frags = append(frags, f)
	}
	return frags, nil
}

func text(s string) services.Fragment {
	return services.Fragment{Kind: services.FragmentText, Text: s}
}

func equalFragments(a, b []services.Fragment) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestLineDecoder(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []services.Fragment
	}{
		{
			name:  "Tokens keep leading spaces",
			input: "data:Olá\ndata: Recife\ndata:  tem\n",
			want:  []services.Fragment{text("Olá"), text(" Recife"), text("  tem")},
		},
		{
			name:  "Blank lines and unknown fields are skipped",
			input: "\n: keep-alive\nid: 7\ndata:a\n\n   \ndata:b\n",
			want:  []services.Fragment{text("a"), text("b")},
		},
		{
			name:  "Empty data is an empty fragment",
			input: "data:\ndata:x\n",
			want:  []services.Fragment{text(""), text("x")},
		},
		{
			name:  "Done stops decoding",
			input: "data:a\ndata: [DONE] \ndata:b\n",
			want:  []services.Fragment{text("a"), {Kind: services.FragmentDone}},
		},
		{
			name:  "Embedded done is text",
			input: "data:say [DONE] now\n",
			want:  []services.Fragment{text("say [DONE] now")},
		},
		{
			name:  "Error event",
			input: "data:a\nevent: error\ndata:\"Modelo indisponível\"\ndata:b\n",
			want: []services.Fragment{
				text("a"),
				{Kind: services.FragmentError, Text: "\"Modelo indisponível\""},
			},
		},
		{
			name:  "Event type resets on blank line",
			input: "event:token\ndata:a\n\ndata:b\n",
			want:  []services.Fragment{text("a"), text("b")},
		},
		{
			name:  "CRLF line endings",
			input: "data: a\r\ndata:b\r\n",
			want:  []services.Fragment{text(" a"), text("b")},
		},
		{
			name:  "Unterminated tail is dropped",
			input: "data:a\ndata:partial",
			want:  []services.Fragment{text("a")},
		},
		{
			name:  "Literal escapes are left for the consumer",
			input: `data:linha\nnova` + "\n",
			want:  []services.Fragment{text(`linha\nnova`)},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collect(t, services.LineDecoder{}, strings.NewReader(tt.input))
			if err != nil {
				t.Fatalf("Fragments() error = %v", err)
			}
			if !equalFragments(got, tt.want) {
				t.Errorf("Fragments() = %+v, want %+v", got, tt.want)
			}

			// Delivering the same bytes one at a time must not change the outcome.
			split, err := collect(t, services.LineDecoder{}, iotest.OneByteReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("Fragments() one byte error = %v", err)
			}
			if !equalFragments(split, tt.want) {
				t.Errorf("Fragments() one byte = %+v, want %+v", split, tt.want)
			}
		})
	}
}

func TestLineDecoderSplitMidRune(t *testing.T) {
	input := "data: São Paulo\ndata: é longe\n"
	for cut := 1; cut < len(input); cut++ {
		r := io.MultiReader(strings.NewReader(input[:cut]), strings.NewReader(input[cut:]))
		got, err := collect(t, services.LineDecoder{}, r)
		if err != nil {
			t.Fatalf("cut %d: Fragments() error = %v", cut, err)
		}
		want := []services.Fragment{text(" São Paulo"), text(" é longe")}
		if !equalFragments(got, want) {
			t.Fatalf("cut %d: Fragments() = %+v, want %+v", cut, got, want)
		}
	}
}

func TestLineDecoderReadError(t *testing.T) {
	readErr := errors.New("connection reset")
	r := io.MultiReader(strings.NewReader("data:a\n"), iotest.ErrReader(readErr))

	got, err := collect(t, services.LineDecoder{}, r)
	if !errors.Is(err, readErr) {
		t.Fatalf("Fragments() error = %v, want %v", err, readErr)
	}
	if !equalFragments(got, []services.Fragment{text("a")}) {
		t.Errorf("Fragments() = %+v before error", got)
	}
}

func TestLineDecoderStopsOnBreak(t *testing.T) {
	var d services.LineDecoder
	n := 0
	for range d.Fragments(strings.NewReader("data:a\ndata:b\ndata:c\n")) {
		n++
		if n == 2 {
			break
		}
	}
	if n != 2 {
		t.Errorf("iterations = %d, want 2", n)
	}
}

func TestEventDecoder(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []services.Fragment
	}{
		{
			name:  "Standard events",
			input: "data: Olá\n\ndata:  Recife\n\n",
			want:  []services.Fragment{text("Olá"), text(" Recife")},
		},
		{
			name:  "Multi-line data is joined",
			input: "data: a\ndata: b\n\n",
			want:  []services.Fragment{text("a\nb")},
		},
		{
			name:  "Done",
			input: "data: x\n\ndata: [DONE]\n\ndata: y\n\n",
			want:  []services.Fragment{text("x"), {Kind: services.FragmentDone}},
		},
		{
			name:  "Error event",
			input: "event: error\ndata: quota exceeded\n\n",
			want:  []services.Fragment{{Kind: services.FragmentError, Text: "quota exceeded"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := collect(t, services.EventDecoder{}, iotest.HalfReader(strings.NewReader(tt.input)))
			if err != nil {
				t.Fatalf("Fragments() error = %v", err)
			}
			if !equalFragments(got, tt.want) {
				t.Errorf("Fragments() = %+v, want %+v", got, tt.want)
			}
		})
	}
}
