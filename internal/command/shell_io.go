package command

import (
	"bufio"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/joeycumines/go-prompt"
	"golang.org/x/term"
)

const (
	keyEnter = "\r"
	keyEOF   = "\x04" // Ctrl-D on an empty line leaves the prompt
)

// promptIO picks terminal I/O when both ends are a terminal, plain stream
// adapters otherwise
func promptIO(in io.Reader, out io.Writer) (prompt.Reader, prompt.Writer) {
	if isTerminal(in) && isTerminal(out) {
		return prompt.NewStdinReader(), prompt.NewStdoutWriter()
	}
	return newLineReader(in), &streamWriter{w: out}
}

func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// lineReader feeds a non-terminal stream to the prompt one key event at a
// time: the text of a line, then Enter. End of input becomes Ctrl-D.
type lineReader struct {
	mu     sync.Mutex
	br     *bufio.Reader
	closer io.Closer
	queue  []string
	done   bool
}

func newLineReader(r io.Reader) *lineReader {
	lr := &lineReader{br: bufio.NewReader(r)}
	if c, ok := r.(io.Closer); ok && r != os.Stdin {
		lr.closer = c
	}
	return lr
}

func (l *lineReader) Read(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.queue) == 0 {
		if l.done {
			return 0, io.EOF
		}
		l.fill()
	}
	n := copy(p, l.queue[0])
	if n < len(l.queue[0]) {
		l.queue[0] = l.queue[0][n:]
	} else {
		l.queue = l.queue[1:]
	}
	return n, nil
}

func (l *lineReader) fill() {
	line, err := l.br.ReadString('\n')
	if text := printable(line); text != "" {
		l.queue = append(l.queue, text)
	}
	if err == nil || line != "" {
		l.queue = append(l.queue, keyEnter)
	}
	if err != nil {
		l.queue = append(l.queue, keyEOF)
		l.done = true
	}
}

// printable drops control bytes so stream input is never read as key
// bindings
func printable(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

func (l *lineReader) Open() error { return nil }

func (l *lineReader) Close() error {
	if l.closer != nil {
		return l.closer.Close()
	}
	return nil
}

func (l *lineReader) GetWinSize() *prompt.WinSize {
	return &prompt.WinSize{Row: prompt.DefRowCount, Col: prompt.DefColCount}
}

// streamWriter writes prompt output to a plain stream. Terminal control is
// dropped.
type streamWriter struct {
	w io.Writer
}

func (s *streamWriter) Write(p []byte) (int, error)             { return s.w.Write(p) }
func (s *streamWriter) WriteString(v string) (int, error)       { return io.WriteString(s.w, v) }
func (s *streamWriter) WriteRaw(data []byte)                    { _, _ = s.w.Write(data) }
func (s *streamWriter) WriteRawString(data string)              { _, _ = io.WriteString(s.w, data) }
func (s *streamWriter) Flush() error                            { return nil }
func (s *streamWriter) EraseScreen()                            {}
func (s *streamWriter) EraseUp()                                {}
func (s *streamWriter) EraseDown()                              {}
func (s *streamWriter) EraseStartOfLine()                       {}
func (s *streamWriter) EraseEndOfLine()                         {}
func (s *streamWriter) EraseLine()                              {}
func (s *streamWriter) ShowCursor()                             {}
func (s *streamWriter) HideCursor()                             {}
func (s *streamWriter) CursorGoTo(row, col int)                 {}
func (s *streamWriter) CursorUp(n int)                          {}
func (s *streamWriter) CursorDown(n int)                        {}
func (s *streamWriter) CursorForward(n int)                     {}
func (s *streamWriter) CursorBackward(n int)                    {}
func (s *streamWriter) AskForCPR()                              {}
func (s *streamWriter) SaveCursor()                             {}
func (s *streamWriter) UnSaveCursor()                           {}
func (s *streamWriter) ScrollDown()                             {}
func (s *streamWriter) ScrollUp()                               {}
func (s *streamWriter) SetTitle(title string)                   {}
func (s *streamWriter) ClearTitle()                             {}
func (s *streamWriter) SetColor(fg, bg prompt.Color, bold bool) {}
func (s *streamWriter) SetDisplayAttributes(fg, bg prompt.Color, attrs ...prompt.DisplayAttribute) {
}

var (
	_ prompt.Reader = (*lineReader)(nil)
	_ prompt.Writer = (*streamWriter)(nil)
)
