package clipboard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/berrythewa/clipstack/internal/events"
	"github.com/berrythewa/clipstack/internal/history"
	"github.com/berrythewa/clipstack/internal/pasteboard"
	"github.com/berrythewa/clipstack/internal/richtext"
	"github.com/berrythewa/clipstack/internal/types"
)

func encodePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))))
	return buf.Bytes()
}

func TestGuard(t *testing.T) {
	clk := clock.NewMock()
	g := NewGuard(clk)
	assert.False(t, g.Consume())

	g.Arm(time.Second)
	assert.True(t, g.Armed())
	assert.True(t, g.Consume())
	assert.False(t, g.Consume(), "consuming disarms")

	g.Arm(time.Second)
	clk.Add(2 * time.Second)
	assert.False(t, g.Armed())
	assert.False(t, g.Consume(), "expired guard does not skip")
}

func TestClassify(t *testing.T) {
	img := encodePNG(t, 4, 3)
	rtf := richtext.TextToRTF("Rich words")

	tests := []struct {
		name string
		snap pasteboard.Snapshot
		kind types.ContentType
		text string
	}{
		{
			name: "plain text",
			snap: pasteboard.Snapshot{{Format: pasteboard.FormatPlainText, Data: []byte("hello")}},
			kind: types.TypeText,
			text: "hello",
		},
		{
			name: "rtf wins over image and text",
			snap: pasteboard.Snapshot{
				{Format: pasteboard.FormatPNG, Data: img},
				{Format: pasteboard.FormatPlainText, Data: []byte("Rich words")},
				{Format: pasteboard.FormatRTF, Data: rtf},
			},
			kind: types.TypeRTF,
			text: "Rich words",
		},
		{
			name: "html becomes rich text",
			snap: pasteboard.Snapshot{
				{Format: pasteboard.FormatHTML, Data: []byte("<p>from <b>browser</b></p>")},
				{Format: pasteboard.FormatPlainText, Data: []byte("from browser")},
			},
			kind: types.TypeRTF,
			text: "from browser",
		},
		{
			name: "image description",
			snap: pasteboard.Snapshot{{Format: pasteboard.FormatPNG, Data: img}},
			kind: types.TypeImage,
			text: "Image 4×3 (PNG)",
		},
		{
			name: "undecodable image",
			snap: pasteboard.Snapshot{{Format: pasteboard.FormatTIFF, Data: []byte("junk")}},
			kind: types.TypeImage,
			text: "Image (TIFF, 4 bytes)",
		},
		{
			name: "broken rtf falls back to plain text",
			snap: pasteboard.Snapshot{
				{Format: pasteboard.FormatRTF, Data: []byte(`{\rtf1 broken`)},
				{Format: pasteboard.FormatPlainText, Data: []byte("plain fallback")},
			},
			kind: types.TypeRTF,
			text: "plain fallback",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Classify(tt.snap, nil)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.text, c.Candidate.Text)
			assert.Len(t, c.Formats, len(tt.snap))

			e := c.Entry(time.Now())
			assert.Equal(t, tt.kind, e.Type())
			assert.NotEmpty(t, e.ID)
		})
	}
}

func TestClassifyImageAndRichKeepsImageInFormats(t *testing.T) {
	img := encodePNG(t, 1, 1)
	c := Classify(pasteboard.Snapshot{
		{Format: pasteboard.FormatRTF, Data: richtext.TextToRTF("caption")},
		{Format: pasteboard.FormatPNG, Data: img},
	}, nil)
	e := c.Entry(time.Now())
	assert.Equal(t, types.TypeRTF, e.Type())
	assert.Nil(t, e.Image)
	stored, ok := e.Format(pasteboard.FormatPNG)
	require.True(t, ok)
	assert.Equal(t, img, stored)
}

func TestItems(t *testing.T) {
	t.Run("rich entry writes fresh variants first", func(t *testing.T) {
		e := &types.Entry{
			ID:       "r",
			Text:     "new text",
			RichText: richtext.TextToRTF("new text"),
			Formats: []types.FormatData{
				{Format: "NeXT Rich Text Format v1.0 pasteboard type", Data: []byte("stale")},
				{Format: pasteboard.FormatPlainText, Data: []byte("stale")},
				{Format: "com.example.custom", Data: []byte("kept")},
			},
		}
		items := Items(e)
		formats := make([]string, len(items))
		for i, it := range items {
			formats[i] = it.Format
		}
		assert.Equal(t, []string{pasteboard.FormatRTF, pasteboard.FormatHTML, pasteboard.FormatPlainText, "com.example.custom"}, formats)
		assert.Equal(t, "new text", string(items[2].Data))
	})

	t.Run("image entry does not publish its description", func(t *testing.T) {
		img := encodePNG(t, 1, 1)
		items := Items(&types.Entry{ID: "i", Text: "Image 1×1 (PNG)", Image: img})
		require.Len(t, items, 1)
		assert.Equal(t, pasteboard.FormatPNG, items[0].Format)
	})

	t.Run("plain entry", func(t *testing.T) {
		items := Items(&types.Entry{ID: "t", Text: "x"})
		require.Len(t, items, 1)
		assert.Equal(t, pasteboard.Item{Format: pasteboard.FormatPlainText, Data: []byte("x")}, items[0])
	})
}

func TestWriterArmsGuard(t *testing.T) {
	clk := clock.NewMock()
	pb := pasteboard.NewMemory()
	g := NewGuard(clk)
	w := NewWriter(pb, g, time.Second, nil)

	require.NoError(t, w.WriteEntry(&types.Entry{ID: "a", Text: "hello"}))
	assert.True(t, g.Armed())
	data, err := pb.Read(pasteboard.FormatPlainText)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))

	assert.Error(t, w.WriteEntry(&types.Entry{ID: "empty"}))
}

// stickyPasteboard only bumps the change count when the text changes, like
// pasteboards that derive it from a content hash
type stickyPasteboard struct {
	*pasteboard.Memory
	last   string
	change int64
}

func (p *stickyPasteboard) ChangeCount() int64 { return p.change }

func (p *stickyPasteboard) Write(items []pasteboard.Item) error {
	if err := p.Memory.Write(items); err != nil {
		return err
	}
	for _, it := range items {
		if pasteboard.IsPlainTextFormat(it.Format) && string(it.Data) != p.last {
			p.last = string(it.Data)
			p.change++
		}
	}
	return nil
}

func TestWriterDisarmsGuardWhenContentUnchanged(t *testing.T) {
	clk := clock.NewMock()
	pb := &stickyPasteboard{Memory: pasteboard.NewMemory()}
	g := NewGuard(clk)
	w := NewWriter(pb, g, time.Second, nil)

	require.NoError(t, w.WriteEntry(&types.Entry{ID: "a", Text: "hello"}))
	assert.True(t, g.Armed(), "a real change stays guarded until polled")
	g.Consume()

	require.NoError(t, w.WriteEntry(&types.Entry{ID: "a", Text: "hello"}))
	assert.False(t, g.Armed(), "rewriting identical content leaves nothing to skip")
}

// flakyPasteboard fails reads while failing is set
type flakyPasteboard struct {
	*pasteboard.Memory
	failing bool
}

func (p *flakyPasteboard) Formats() ([]string, error) {
	if p.failing {
		return nil, errors.New("pasteboard server not responding")
	}
	return p.Memory.Formats()
}

func TestPollerReadFailureSpendsGuard(t *testing.T) {
	clk := clock.NewMock()
	pb := &flakyPasteboard{Memory: pasteboard.NewMemory()}
	store := history.NewStore(history.Options{Clock: clk})
	guard := NewGuard(clk)
	writer := NewWriter(pb, guard, time.Minute, nil)
	p := NewPoller(PollerOptions{Pasteboard: pb, Store: store, Guard: guard, Clock: clk})
	p.Poll(context.Background())

	require.NoError(t, writer.WriteEntry(&types.Entry{ID: "a", Text: "ours"}))
	pb.failing = true
	p.Poll(context.Background())
	assert.False(t, guard.Armed())

	pb.failing = false
	pb.SetText("external")
	p.Poll(context.Background())
	list := store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "external", list[0].Text)
}

type recordingPaster struct {
	mu  sync.Mutex
	ids []string
}

func (r *recordingPaster) Paste(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
	return nil
}

type pollerFixture struct {
	pb      *pasteboard.Memory
	clock   *clock.Mock
	store   *history.Store
	poller  *Poller
	writer  *Writer
	bus     *events.Bus
	paster  *recordingPaster
	setting Settings
}

func newPollerFixture(t *testing.T, max int) *pollerFixture {
	t.Helper()
	f := &pollerFixture{
		pb:      pasteboard.NewMemory(),
		clock:   clock.NewMock(),
		bus:     events.NewBus(nil),
		paster:  &recordingPaster{},
		setting: Settings{Interval: DefaultInterval},
	}
	f.clock.Set(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	f.store = history.NewStore(history.Options{
		Events:   f.bus,
		Clock:    f.clock,
		MaxItems: func() int { return max },
	})
	guard := NewGuard(f.clock)
	f.writer = NewWriter(f.pb, guard, time.Second, nil)
	f.store.SetWriter(f.writer)
	f.poller = NewPoller(PollerOptions{
		Pasteboard: f.pb,
		Store:      f.store,
		Guard:      guard,
		Events:     f.bus,
		Clock:      f.clock,
		Settings:   func() Settings { return f.setting },
		AutoPaster: f.paster,
	})
	return f
}

// copyText simulates another application copying text, then one poll cycle
func (f *pollerFixture) copyText(text string) {
	f.clock.Add(time.Second)
	f.pb.SetText(text)
	f.poller.Poll(context.Background())
}

func TestPollerIgnoresStartupContent(t *testing.T) {
	pb := pasteboard.NewMemory()
	pb.SetText("already there")
	store := history.NewStore(history.Options{})
	p := NewPoller(PollerOptions{Pasteboard: pb, Store: store})
	p.Poll(context.Background())
	assert.Empty(t, store.List())
}

func TestPollerCapturesAndDedups(t *testing.T) {
	f := newPollerFixture(t, 50)
	sub := f.bus.Subscribe(16, events.EntryAdded)
	defer sub.Cancel()

	f.copyText("Hello world")
	f.copyText("Hello world")
	f.copyText("Hello world!")
	f.copyText("Hi")
	f.copyText("Hi, good morning, everyone!")
	f.copyText("")

	list := f.store.List()
	var got []string
	for _, e := range list {
		got = append(got, e.Text)
	}
	assert.Equal(t, []string{"Hi, good morning, everyone!", "Hi", "Hello world"}, got)
	assert.Len(t, sub.C, 3)

	ev := <-sub.C
	payload := ev.Payload.(events.EntryAddedPayload)
	assert.Equal(t, "Hello world", payload.Preview)
	assert.Equal(t, uint64(3), f.poller.Status().Ingested)
}

func TestPollerPromotesOlderDuplicate(t *testing.T) {
	f := newPollerFixture(t, 50)
	f.copyText("first")
	f.copyText("second")
	f.copyText("first")

	list := f.store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Text)
	assert.Equal(t, "second", list[1].Text)
}

func TestPollerNearDuplicateKeepsStoredText(t *testing.T) {
	f := newPollerFixture(t, 50)
	f.copyText("Hello world")
	f.copyText("other")
	f.copyText("Hello world!")

	list := f.store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "Hello world", list[0].Text, "older near duplicate moves up unchanged")
	assert.Equal(t, "other", list[1].Text)

	f.copyText("Hello world!!")
	list = f.store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "Hello world", list[0].Text, "newest near duplicate is left as is")
}

func TestPollerSkipsOwnWrites(t *testing.T) {
	f := newPollerFixture(t, 50)
	f.copyText("older")
	f.copyText("newer")
	older := f.store.List()[1]

	require.NoError(t, f.writer.WriteEntry(older))
	f.poller.Poll(context.Background())

	list := f.store.List()
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].Text, "writing an entry back does not reorder history")

	// the guard is single use
	f.copyText("third")
	assert.Len(t, f.store.List(), 3)
}

func TestPollerExpiredGuardDoesNotSkip(t *testing.T) {
	f := newPollerFixture(t, 50)
	f.writer.guard.Arm(time.Second)
	f.clock.Add(5 * time.Second)
	f.pb.SetText("external")
	f.poller.Poll(context.Background())
	assert.Len(t, f.store.List(), 1)
}

func TestPollerPinnedScenario(t *testing.T) {
	f := newPollerFixture(t, 20)
	f.copyText("abc")
	list := f.store.List()
	require.Len(t, list, 1)
	assert.Equal(t, "abc", list[0].Text)
	assert.False(t, list[0].Pinned)
	_, err := f.store.TogglePin(list[0].ID)
	require.NoError(t, err)

	for i := 1; i <= 19; i++ {
		f.copyText(fmt.Sprintf("distinct clipping number %d of the scenario", i*7919))
	}

	list = f.store.List()
	require.Len(t, list, 20)
	assert.Equal(t, "abc", list[0].Text)
	assert.True(t, list[0].Pinned)
	for _, e := range list[1:] {
		assert.False(t, e.Pinned)
	}
}

func TestPollerAutoPaste(t *testing.T) {
	f := newPollerFixture(t, 50)
	f.setting.AutoPaste = true
	f.copyText("paste me")
	f.poller.Wait()

	f.paster.mu.Lock()
	defer f.paster.mu.Unlock()
	require.Len(t, f.paster.ids, 1)
	assert.Equal(t, f.store.List()[0].ID, f.paster.ids[0])
}

func TestPollerRun(t *testing.T) {
	f := newPollerFixture(t, 50)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.poller.Run(ctx) }()

	require.Eventually(t, func() bool { return f.poller.Status().IsRunning }, time.Second, 5*time.Millisecond)
	f.pb.SetText("tick")
	require.Eventually(t, func() bool {
		f.clock.Add(DefaultInterval)
		return len(f.store.List()) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
	assert.False(t, f.poller.Status().IsRunning)
}
