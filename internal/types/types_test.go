package types

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEntryType(t *testing.T) {
	e := NewEntry("hello", time.Unix(0, 0))
	assert.NotEmpty(t, e.ID)
	assert.Equal(t, TypeText, e.Type())

	e.Image = []byte{1}
	assert.Equal(t, TypeImage, e.Type())

	e.RichText = []byte(`{\rtf1 hi}`)
	assert.Equal(t, TypeRTF, e.Type(), "rich text wins over image")
}

func TestEntryCloneIsDeep(t *testing.T) {
	e := &Entry{ID: "a", Text: "x", Image: []byte{1, 2}, Formats: []FormatData{{Format: "public.png", Data: []byte{3}}}}
	c := e.Clone()
	c.Image[0] = 9
	c.Formats[0].Data[0] = 9

	assert.Equal(t, byte(1), e.Image[0])
	assert.Equal(t, byte(3), e.Formats[0].Data[0])
	assert.True(t, e.Equal(&Entry{Text: "x", Image: []byte{1, 2}}))
	assert.Nil(t, (*Entry)(nil).Clone())

	data, ok := e.Format("public.png")
	assert.True(t, ok)
	assert.Equal(t, []byte{3}, data)
	_, ok = e.Format("public.tiff")
	assert.False(t, ok)
}

func TestApp(t *testing.T) {
	tests := []struct {
		name string
		a, b App
		same bool
	}{
		{"same pid", App{PID: 10, BundleID: "a"}, App{PID: 10, BundleID: "b"}, true},
		{"different pid same bundle", App{PID: 10, BundleID: "a"}, App{PID: 11, BundleID: "a"}, false},
		{"bundle only", App{BundleID: "a"}, App{PID: 11, BundleID: "a"}, true},
		{"empty bundles", App{}, App{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.same, tt.a.Same(tt.b))
		})
	}

	assert.True(t, App{}.IsZero())
	assert.False(t, App{PID: 1}.IsZero())
	assert.Equal(t, "com.apple.Notes", App{PID: 1, BundleID: "com.apple.Notes", Name: "Notes"}.String())
	assert.Equal(t, "Notes", App{PID: 1, Name: "Notes"}.String())
	assert.Equal(t, "pid 7", App{PID: 7}.String())
}
