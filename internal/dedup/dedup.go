// Package dedup decides whether freshly sampled clipboard content is new,
// a repeat of a stored entry, or noise to be ignored.
package dedup

import (
	"bytes"
	"strings"
	"unicode/utf8"

	"github.com/multiformats/go-multihash"
	"go.uber.org/zap"

	"github.com/berrythewa/clipstack/internal/richtext"
	"github.com/berrythewa/clipstack/internal/types"
)

// Kind is the outcome of a dedup decision
type Kind int

const (
	New Kind = iota
	Duplicate
	Ignore
)

func (k Kind) String() string {
	switch k {
	case New:
		return "new"
	case Duplicate:
		return "duplicate"
	case Ignore:
		return "ignore"
	default:
		return "unknown"
	}
}

// Decision is returned by Decide. ID is set only for Duplicate.
type Decision struct {
	Kind   Kind
	ID     string
	Reason string
}

// Candidate is classified content from one poll cycle. At most one of Image
// and RichText is set; Text holds the plain rendering.
type Candidate struct {
	Text     string
	Image    []byte
	RichText []byte
}

// Empty reports whether the candidate carries nothing worth storing
func (c Candidate) Empty() bool {
	return strings.TrimSpace(c.Text) == "" && len(c.Image) == 0 && len(c.RichText) == 0
}

// Trackers hold the last content observed by the poller, stored or not
type Trackers struct {
	LastText  string
	LastImage []byte
	LastRich  []byte
}

// Observe records c as the most recent sample
func (t *Trackers) Observe(c Candidate) {
	t.LastText = c.Text
	t.LastImage = c.Image
	t.LastRich = c.RichText
}

// Same reports whether c is identical to the last sample
func (t Trackers) Same(c Candidate) bool {
	return t.LastText == c.Text &&
		bytes.Equal(t.LastImage, c.Image) &&
		bytes.Equal(t.LastRich, c.RichText)
}

// Options tune the heuristics. The order of the checks is fixed.
type Options struct {
	// NearDuplicateRatio is the minimum shorter/longer length ratio for a
	// containment match to count as a duplicate
	NearDuplicateRatio float64 `yaml:"near_duplicate_ratio" json:"near_duplicate_ratio" default:"0.8" validate:"gt=0,lte=1"`

	// RichSizeTolerance is the relative byte-length difference under which
	// two unreadable RTF documents are considered equal
	RichSizeTolerance float64 `yaml:"rich_size_tolerance" json:"rich_size_tolerance" default:"0.1" validate:"gte=0,lt=1"`
}

// DefaultOptions returns the stock thresholds
func DefaultOptions() Options {
	return Options{NearDuplicateRatio: 0.8, RichSizeTolerance: 0.10}
}

// Decider applies the dedup rules
type Decider struct {
	opts   Options
	logger *zap.Logger
}

// NewDecider creates a decider. Zero options use the defaults; a zero
// RichSizeTolerance alongside a set ratio disables the size heuristic.
func NewDecider(opts Options, logger *zap.Logger) *Decider {
	def := DefaultOptions()
	if opts == (Options{}) {
		opts = def
	}
	if opts.NearDuplicateRatio <= 0 {
		opts.NearDuplicateRatio = def.NearDuplicateRatio
	}
	if opts.RichSizeTolerance < 0 {
		opts.RichSizeTolerance = def.RichSizeTolerance
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Decider{opts: opts, logger: logger}
}

// Options returns the thresholds in effect
func (d *Decider) Options() Options { return d.opts }

// Decide classifies c against entries, which must be in display order so the
// most relevant match wins. Rules are checked as: rich text, image, plain
// text, ignore, new.
func (d *Decider) Decide(c Candidate, entries []*types.Entry, last Trackers) Decision {
	var fp string
	if len(c.RichText) > 0 || len(c.Image) > 0 {
		fp = Fingerprint(c)
	}
	if len(c.RichText) > 0 {
		if id, reason, ok := d.matchRich(c, fp, entries); ok {
			return d.log(fp, Decision{Kind: Duplicate, ID: id, Reason: reason})
		}
	}
	if len(c.Image) > 0 {
		for _, e := range entries {
			if len(e.Image) == len(c.Image) && samePayload(e, e.Image, c.Image, fp) {
				return d.log(fp, Decision{Kind: Duplicate, ID: e.ID, Reason: "image bytes"})
			}
		}
	}
	if len(c.Image) == 0 && len(c.RichText) == 0 && c.Text != "" {
		if id, reason, ok := d.matchText(c.Text, entries); ok {
			return d.log(fp, Decision{Kind: Duplicate, ID: id, Reason: reason})
		}
	}
	if c.Empty() {
		return Decision{Kind: Ignore, Reason: "empty"}
	}
	if last.Same(c) {
		return d.log(fp, Decision{Kind: Ignore, Reason: "same as last sample"})
	}
	return d.log(fp, Decision{Kind: New})
}

// samePayload compares fingerprints when the stored entry carries one and
// falls back to the bytes otherwise
func samePayload(e *types.Entry, stored, incoming []byte, fp string) bool {
	if e.Fingerprint != "" && fp != "" {
		return e.Fingerprint == fp
	}
	return bytes.Equal(stored, incoming)
}

func (d *Decider) matchRich(c Candidate, fp string, entries []*types.Entry) (string, string, bool) {
	derived, convErr := richtext.RTFToText(c.RichText)
	for _, e := range entries {
		if len(e.RichText) == 0 {
			continue
		}
		if samePayload(e, e.RichText, c.RichText, fp) {
			return e.ID, "rich bytes", true
		}
		if convErr == nil {
			if derived != "" && derived == e.Text {
				return e.ID, "rich text rendering", true
			}
			continue
		}
		if d.sizeClose(len(c.RichText), len(e.RichText)) {
			return e.ID, "rich size proximity", true
		}
	}
	return "", "", false
}

func (d *Decider) sizeClose(incoming, stored int) bool {
	if stored == 0 {
		return false
	}
	diff := incoming - stored
	if diff < 0 {
		diff = -diff
	}
	return float64(diff) < d.opts.RichSizeTolerance*float64(stored)
}

func (d *Decider) matchText(text string, entries []*types.Entry) (string, string, bool) {
	for _, e := range entries {
		if len(e.Image) == 0 && e.Text == text {
			return e.ID, "exact text", true
		}
	}
	for _, e := range entries {
		if len(e.Image) == 0 && NearDuplicate(text, e.Text, d.opts.NearDuplicateRatio) {
			return e.ID, "near duplicate text", true
		}
	}
	return "", "", false
}

// NearDuplicate reports whether one string contains the other and the
// shorter is at least ratio of the longer, measured in characters
func NearDuplicate(a, b string, ratio float64) bool {
	if a == "" || b == "" {
		return false
	}
	shorter, longer := a, b
	if utf8.RuneCountInString(shorter) > utf8.RuneCountInString(longer) {
		shorter, longer = longer, shorter
	}
	if !strings.Contains(longer, shorter) {
		return false
	}
	return float64(utf8.RuneCountInString(shorter))/float64(utf8.RuneCountInString(longer)) >= ratio
}

func (d *Decider) log(fp string, dec Decision) Decision {
	if ce := d.logger.Check(zap.DebugLevel, "Dedup decision"); ce != nil {
		ce.Write(
			zap.Stringer("kind", dec.Kind),
			zap.String("entry_id", dec.ID),
			zap.String("reason", dec.Reason),
			zap.String("fingerprint", fp),
		)
	}
	return dec
}

// Fingerprint returns a base58 multihash of the candidate's richest payload.
// Stored entries carry it so image and rich matches skip the byte compare.
func Fingerprint(c Candidate) string {
	payload := c.RichText
	if len(payload) == 0 {
		payload = c.Image
	}
	if len(payload) == 0 {
		payload = []byte(c.Text)
	}
	h, err := multihash.Sum(payload, multihash.SHA2_256, -1)
	if err != nil {
		return ""
	}
	return h.B58String()
}

// CandidateOf returns the content of a stored entry as a candidate
func CandidateOf(e *types.Entry) Candidate {
	return Candidate{Text: e.Text, Image: e.Image, RichText: e.RichText}
}
