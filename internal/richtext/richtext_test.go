package richtext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRTFToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{\rtf1\ansi Hello world}`, "Hello world"},
		{"font table skipped", `{\rtf1\ansi{\fonttbl\f0\fswiss Helvetica;}\f0 Hi}`, "Hi"},
		{"paragraphs", `{\rtf1 one\par two}`, "one\ntwo"},
		{"escaped braces", `{\rtf1 a\{b\}c\\d}`, `a{b}c\d`},
		{"hex escape cp1252", `{\rtf1\ansi\ansicpg1252 caf\'e9}`, "café"},
		{"unicode escape", `{\rtf1\uc1 \u8364?5}`, "€5"},
		{"ignorable destination", `{\rtf1{\*\generator Cocoa;}text}`, "text"},
		{"surrogate pair", `{\rtf1\uc1 \u-10179?\u-8704?}`, "😀"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RTFToText([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRTFToTextErrors(t *testing.T) {
	_, err := RTFToText([]byte("not rtf"))
	assert.ErrorIs(t, err, ErrNotRTF)

	_, err = RTFToText([]byte(`{\rtf1 unterminated`))
	assert.ErrorIs(t, err, ErrMalformed)

	_, err = RTFToText([]byte(`{\rtf1 x}}`))
	assert.ErrorIs(t, err, ErrMalformed)
}

func TestTextToRTFRoundTrip(t *testing.T) {
	inputs := []string{
		"Hello world",
		"line one\nline two",
		`braces {and} back\slash`,
		"naïve café €",
		"emoji 😀 here",
		"tab\tseparated",
	}
	for _, in := range inputs {
		t.Run(in, func(t *testing.T) {
			doc := TextToRTF(in)
			assert.True(t, IsRTF(doc))
			got, err := RTFToText(doc)
			require.NoError(t, err)
			assert.Equal(t, in, got)
		})
	}
}

func TestHTMLToText(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"fragment", `<b>Hello</b> <i>world</i>`, "Hello world"},
		{"blocks", `<p>one</p><p>two</p>`, "one\ntwo"},
		{"break", `a<br>b`, "a\nb"},
		{"script dropped", `<script>var x = 1;</script>visible`, "visible"},
		{"entities", `Tom &amp; Jerry`, "Tom & Jerry"},
		{"collapse", "  lots \n\n of   space ", "lots of space"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HTMLToText([]byte(tt.in))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTextToHTML(t *testing.T) {
	out := TextToHTML("a < b\nc")
	assert.Equal(t, `<meta charset="utf-8"><div>a &lt; b<br>c</div>`, string(out))

	text, err := HTMLToText(out)
	require.NoError(t, err)
	assert.Equal(t, "a < b\nc", text)
}

func TestHTMLToRTF(t *testing.T) {
	rtf, text, err := HTMLToRTF([]byte(`<p>Rich <b>content</b></p>`))
	require.NoError(t, err)
	assert.Equal(t, "Rich content", text)
	back, err := RTFToText(rtf)
	require.NoError(t, err)
	assert.Equal(t, "Rich content", back)
}
