package trainer

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestReadBoundedLine(t *testing.T) {
	input := "e2e4\r\n" + strings.Repeat("x", maxLineLen+10) + "\nundo"
	br := bufio.NewReader(strings.NewReader(input))

	line, err := readBoundedLine(br)
	if err != nil || line != "e2e4" {
		t.Fatalf("first line: %q %v", line, err)
	}

	_, err = readBoundedLine(br)
	var malformed *MalformedInputError
	if !errors.As(err, &malformed) || !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected malformed input, got %v", err)
	}
	if len(malformed.Input) > 40 {
		t.Fatalf("rejected input kept in full: %d bytes", len(malformed.Input))
	}

	line, err = readBoundedLine(br)
	if err != nil || line != "undo" {
		t.Fatalf("unterminated last line: %q %v", line, err)
	}
	if _, err := readBoundedLine(br); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}
