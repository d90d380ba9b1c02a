package trainer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/park285/chess-train/internal/msgcat"
)

type lineResult struct {
	text string
	err  error
}

// lineReader scans input on its own goroutine so a pending read can be
// abandoned when the context ends.
type lineReader struct {
	src   io.Reader
	once  sync.Once
	lines chan lineResult
	done  chan struct{}
	stop  sync.Once
}

func newLineReader(src io.Reader) *lineReader {
	return &lineReader{
		src:   src,
		lines: make(chan lineResult),
		done:  make(chan struct{}),
	}
}

func (r *lineReader) start() {
	go func() {
		defer close(r.lines)
		br := bufio.NewReader(r.src)
		for {
			text, err := readBoundedLine(br)
			var malformed *MalformedInputError
			if err != nil && !errors.As(err, &malformed) {
				select {
				case r.lines <- lineResult{err: err}:
				case <-r.done:
				}
				return
			}
			select {
			case r.lines <- lineResult{text: text, err: err}:
			case <-r.done:
				return
			}
		}
	}()
}

// maxLineLen bounds a single input line. Longer lines are drained and
// reported as malformed input.
const maxLineLen = 64 * 1024

func readBoundedLine(br *bufio.Reader) (string, error) {
	var buf []byte
	tooLong := false
	for {
		chunk, err := br.ReadSlice('\n')
		if !tooLong {
			if room := maxLineLen - len(buf); len(chunk) > room {
				buf = append(buf, chunk[:room]...)
				tooLong = true
			} else {
				buf = append(buf, chunk...)
			}
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil && !errors.Is(err, io.EOF) {
			return "", err
		}
		if errors.Is(err, io.EOF) && len(buf) == 0 {
			return "", io.EOF
		}
		text := strings.TrimRight(string(buf), "\r\n")
		if tooLong {
			return "", &MalformedInputError{Input: truncateInput(text)}
		}
		return text, nil
	}
}

func truncateInput(s string) string {
	const keep = 32
	if len(s) <= keep {
		return s
	}
	return s[:keep] + "..."
}

func (r *lineReader) readLine(ctx context.Context) (string, error) {
	r.once.Do(r.start)
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res, ok := <-r.lines:
		if !ok {
			return "", io.EOF
		}
		return strings.TrimRight(res.text, "\r"), res.err
	}
}

func (r *lineReader) close() {
	r.stop.Do(func() { close(r.done) })
}

// console prints catalog messages in colour. Colour is dropped automatically
// when stdout is not a terminal.
type console struct {
	out    io.Writer
	cat    *msgcat.Catalog
	plain  *color.Color
	prompt *color.Color
	engine *color.Color
	good   *color.Color
	warn   *color.Color
	fail   *color.Color
}

func newConsole(out io.Writer, cat *msgcat.Catalog) *console {
	return &console{
		out:    out,
		cat:    cat,
		plain:  color.New(color.Reset),
		prompt: color.New(color.FgCyan, color.Bold),
		engine: color.New(color.FgMagenta),
		good:   color.New(color.FgGreen),
		warn:   color.New(color.FgYellow),
		fail:   color.New(color.FgRed, color.Bold),
	}
}

func (c *console) say(clr *color.Color, key string, data any) {
	clr.Fprintln(c.out, c.cat.Text(key, data))
}

func (c *console) ask(key string) {
	c.prompt.Fprint(c.out, c.cat.Text(key, nil))
}

func (c *console) raw(text string) {
	fmt.Fprint(c.out, text)
}
