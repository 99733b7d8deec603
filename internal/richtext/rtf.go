// Package richtext converts between RTF, HTML and plain text.
//
// The RTF reader understands the subset produced by macOS text views and
// common editors: groups, control words, hex escapes in the document code
// page and \u unicode escapes. Formatting is discarded.
package richtext

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
)

// ErrNotRTF is returned when input does not carry an RTF header
var ErrNotRTF = errors.New("richtext: not an RTF document")

// ErrMalformed is returned for unbalanced or truncated documents
var ErrMalformed = errors.New("richtext: malformed RTF")

// destinations whose content is never rendered
var skipDestinations = map[string]bool{
	"fonttbl":           true,
	"colortbl":          true,
	"stylesheet":        true,
	"info":              true,
	"pict":              true,
	"header":            true,
	"footer":            true,
	"expandedcolortbl":  true,
	"listtable":         true,
	"listoverridetable": true,
	"generator":         true,
	"themedata":         true,
	"latentstyles":      true,
}

type rtfState struct {
	skip   bool
	ucSkip int
}

// IsRTF reports whether data starts with an RTF header
func IsRTF(data []byte) bool {
	return bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), []byte(`{\rtf`))
}

// RTFToText renders the visible text of an RTF document
func RTFToText(data []byte) (string, error) {
	if !IsRTF(data) {
		return "", ErrNotRTF
	}
	data = bytes.TrimLeft(data, " \t\r\n")

	var (
		out     strings.Builder
		stack   []rtfState
		state   = rtfState{ucSkip: 1}
		cp      encoding.Encoding = charmap.Windows1252
		pending int // fallback characters still to drop after a \u escape
		hexBuf  []byte
	)

	flushHex := func() {
		if len(hexBuf) == 0 {
			return
		}
		decoded, err := cp.NewDecoder().Bytes(hexBuf)
		if err != nil {
			decoded = hexBuf
		}
		out.Write(decoded)
		hexBuf = hexBuf[:0]
	}

	emit := func(s string) {
		flushHex()
		if !state.skip {
			out.WriteString(s)
		}
	}

	for i := 0; i < len(data); {
		c := data[i]
		switch c {
		case '{':
			flushHex()
			stack = append(stack, state)
			i++
			pending = 0
		case '}':
			flushHex()
			if len(stack) == 0 {
				return "", ErrMalformed
			}
			state = stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			i++
			pending = 0
		case '\\':
			if i+1 >= len(data) {
				return "", ErrMalformed
			}
			next := data[i+1]
			switch {
			case next == '\\' || next == '{' || next == '}':
				if pending > 0 {
					pending--
				} else {
					emit(string(next))
				}
				i += 2
			case next == '\'':
				if i+3 >= len(data) {
					return "", ErrMalformed
				}
				v, err := strconv.ParseUint(string(data[i+2:i+4]), 16, 8)
				if err != nil {
					return "", fmt.Errorf("%w: bad hex escape", ErrMalformed)
				}
				i += 4
				if pending > 0 {
					pending--
					continue
				}
				if !state.skip {
					hexBuf = append(hexBuf, byte(v))
				}
			case next == '*':
				state.skip = true
				i += 2
			case next == '\n' || next == '\r':
				emit("\n")
				i += 2
			case next == '~':
				emit("\u00a0")
				i += 2
			case next == '-' || next == '_':
				if next == '_' {
					emit("-")
				}
				i += 2
			case isLetter(next):
				j := i + 1
				for j < len(data) && isLetter(data[j]) {
					j++
				}
				word := string(data[i+1 : j])
				k := j
				if k < len(data) && (data[k] == '-' || isDigit(data[k])) {
					k++
					for k < len(data) && isDigit(data[k]) {
						k++
					}
				}
				param, hasParam := 0, k > j
				if hasParam {
					param, _ = strconv.Atoi(string(data[j:k]))
				}
				if k < len(data) && data[k] == ' ' {
					k++
				}
				i = k

				switch {
				case skipDestinations[word]:
					state.skip = true
				case word == "ansicpg" && hasParam:
					cp = codePage(param)
				case word == "mac":
					cp = charmap.Macintosh
				case word == "uc" && hasParam:
					state.ucSkip = param
				case word == "u" && hasParam:
					flushHex()
					if param < 0 {
						param += 65536
					}
					if !state.skip {
						writeUnit(&out, uint16(param))
					}
					pending = state.ucSkip
				case word == "par" || word == "line" || word == "sect" || word == "row":
					emit("\n")
				case word == "tab" || word == "cell":
					emit("\t")
				case word == "emdash":
					emit("\u2014")
				case word == "endash":
					emit("\u2013")
				case word == "bullet":
					emit("\u2022")
				case word == "lquote":
					emit("\u2018")
				case word == "rquote":
					emit("\u2019")
				case word == "ldblquote":
					emit("\u201c")
				case word == "rdblquote":
					emit("\u201d")
				}
			default:
				i += 2
			}
		case '\r', '\n':
			i++
		default:
			if pending > 0 {
				pending--
				i++
				continue
			}
			emit(string(c))
			i++
		}
	}
	flushHex()
	if len(stack) != 0 {
		return "", ErrMalformed
	}
	return fixSurrogates(out.String()), nil
}

// writeUnit writes a UTF-16 code unit; surrogate halves are written as
// placeholders and joined by fixSurrogates
func writeUnit(out *strings.Builder, u uint16) {
	if utf16.IsSurrogate(rune(u)) {
		out.WriteString(fmt.Sprintf("\x00%04x", u))
		return
	}
	out.WriteRune(rune(u))
}

func fixSurrogates(s string) string {
	if !strings.Contains(s, "\x00") {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); {
		if s[i] == 0 && i+5 <= len(s) {
			hi, err := strconv.ParseUint(s[i+1:i+5], 16, 16)
			if err == nil && i+10 <= len(s) && s[i+5] == 0 {
				lo, err2 := strconv.ParseUint(s[i+6:i+10], 16, 16)
				if err2 == nil {
					b.WriteRune(utf16.DecodeRune(rune(hi), rune(lo)))
					i += 10
					continue
				}
			}
			b.WriteRune('\uFFFD')
			i += 5
			continue
		}
		b.WriteByte(s[i])
		i++
	}
	return b.String()
}

func codePage(n int) encoding.Encoding {
	switch n {
	case 437:
		return charmap.CodePage437
	case 850:
		return charmap.CodePage850
	case 866:
		return charmap.CodePage866
	case 1250:
		return charmap.Windows1250
	case 1251:
		return charmap.Windows1251
	case 1253:
		return charmap.Windows1253
	case 1254:
		return charmap.Windows1254
	case 10000:
		return charmap.Macintosh
	default:
		return charmap.Windows1252
	}
}

func isLetter(c byte) bool { return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') }
func isDigit(c byte) bool  { return c >= '0' && c <= '9' }

// TextToRTF produces a minimal RTF document holding text in Helvetica
func TextToRTF(text string) []byte {
	var b bytes.Buffer
	b.WriteString(`{\rtf1\ansi\ansicpg1252\cocoartf2639\uc1` + "\n")
	b.WriteString(`{\fonttbl\f0\fswiss\fcharset0 Helvetica;}` + "\n")
	b.WriteString(`\pard\f0\fs24 `)
	for _, r := range text {
		switch {
		case r == '\\' || r == '{' || r == '}':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString("\\par\n")
		case r == '\r':
		case r == '\t':
			b.WriteString(`\tab `)
		case r < 0x80:
			b.WriteRune(r)
		case r < 0x10000:
			fmt.Fprintf(&b, `\u%d?`, int16(r))
		default:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&b, `\u%d?\u%d?`, int16(hi), int16(lo))
		}
	}
	b.WriteString("}")
	return b.Bytes()
}
