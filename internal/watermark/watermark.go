// Package watermark stamps per-recipient provenance text onto PDF pages.
//
// Stamps are merged through pdfcpu's page composition. Formats without a
// page model are passed through untouched and reported as ErrUnsupported.
package watermark

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sirupsen/logrus"

	"docvault/internal/model"
	"docvault/internal/repair"
)

const (
	diagonalDesc = "font:Helvetica, points:14, rot:45, op:0.3, fillc:#808080, scale:1 abs"
	footerDesc   = "font:Helvetica, points:7, rot:0, op:0.7, fillc:#404040, scale:1 abs, pos:bl, off:36 18"
	timeLayout   = "2006-01-02 15:04:05 UTC"
)

var (
	// ErrUnsupported means the content type has no page model; content is returned unchanged.
	ErrUnsupported = errors.New("watermark: content type not supported")
	// ErrNotApplied means rendering failed; the original bytes are returned.
	ErrNotApplied = errors.New("watermark: stamp not applied")
)

var disableConfigDir sync.Once

// Engine is safe for concurrent use.
type Engine struct {
	log   logrus.FieldLogger
	now   func() time.Time
	stamp pageStamper
}

// pageStamper merges watermarks onto one page and returns the new document.
type pageStamper func(in []byte, page int, wms ...*pdfmodel.Watermark) ([]byte, error)

// New returns an Engine. A nil clock uses time.Now.
func New(log logrus.FieldLogger, now func() time.Time) *Engine {
	disableConfigDir.Do(api.DisableConfigDir)
	if now == nil {
		now = time.Now
	}
	return &Engine{log: log, now: now, stamp: stampPage}
}

// Stamp returns content with a diagonal provenance block and a footer on every page.
// Pages that cannot be stamped are kept unmodified. When no page could be
// stamped the original bytes are returned together with ErrNotApplied.
func (e *Engine) Stamp(content []byte, contentType string, recipient model.RecipientInfo, resource model.ResourceInfo) (out []byte, err error) {
	if repair.Normalize(contentType) != "application/pdf" {
		return content, ErrUnsupported
	}
	defer func() {
		if r := recover(); r != nil {
			out, err = content, fmt.Errorf("%w: panic: %v", ErrNotApplied, r)
		}
	}()

	ts := e.now().UTC().Format(timeLayout)
	diagonal, err := api.TextWatermark(diagonalText(recipient, resource, ts), diagonalDesc, true, false, types.POINTS)
	if err != nil {
		return content, fmt.Errorf("%w: %v", ErrNotApplied, err)
	}
	footer, err := api.TextWatermark(footerText(recipient, resource, ts), footerDesc, true, false, types.POINTS)
	if err != nil {
		return content, fmt.Errorf("%w: %v", ErrNotApplied, err)
	}

	pages, err := api.PageCount(bytes.NewReader(content), newConf())
	if err != nil {
		return content, fmt.Errorf("%w: %v", ErrNotApplied, err)
	}

	cur := content
	stamped := 0
	for p := 1; p <= pages; p++ {
		next, err := e.stamp(cur, p, diagonal, footer)
		if err != nil {
			e.log.WithError(err).WithField("page", p).Warn("watermark page skipped")
			continue
		}
		cur = next
		stamped++
	}
	if stamped == 0 {
		return content, fmt.Errorf("%w: no page of %d could be stamped", ErrNotApplied, pages)
	}
	if stamped < pages {
		e.log.WithFields(logrus.Fields{"pages": pages, "stamped": stamped}).Warn("watermark partially applied")
	}
	return cur, nil
}

func stampPage(in []byte, page int, wms ...*pdfmodel.Watermark) ([]byte, error) {
	sel := []string{strconv.Itoa(page)}
	cur := in
	for _, wm := range wms {
		var buf bytes.Buffer
		if err := api.AddWatermarks(bytes.NewReader(cur), &buf, sel, wm, newConf()); err != nil {
			return nil, err
		}
		cur = buf.Bytes()
	}
	return cur, nil
}

func newConf() *pdfmodel.Configuration {
	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	return conf
}

func diagonalText(r model.RecipientInfo, res model.ResourceInfo, ts string) string {
	lines := []string{
		fmt.Sprintf("DOWNLOADED BY: %s (%s)", clean(r.Name), clean(r.Email)),
		"USER ID: " + clean(r.ID),
		"DATE: " + ts,
	}
	if res.Reference != "" {
		lines = append(lines, "PROPERTY: "+clean(res.Reference))
	}
	lines = append(lines,
		"RESOURCE ID: "+clean(res.ID),
		"NOT FOR DISTRIBUTION - CONFIDENTIAL",
	)
	return strings.Join(lines, "\n")
}

func footerText(r model.RecipientInfo, res model.ResourceInfo, ts string) string {
	ref := res.Reference
	if ref == "" {
		ref = res.ID
	}
	return fmt.Sprintf("Downloaded by %s on %s | Property: %s", clean(r.Name), ts, clean(ref))
}

// clean keeps stamp text on one line and inside what the core fonts can render.
func clean(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case r == '%':
			return ' '
		case r > unicode.MaxLatin1 || !unicode.IsPrint(r):
			return '?'
		}
		return r
	}, strings.TrimSpace(s))
	if s == "" {
		return "-"
	}
	return s
}
