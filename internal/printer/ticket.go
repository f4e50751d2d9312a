// Package printer renders admission tickets as ESC/POS byte streams and
// sends them to raw TCP receipt printers.
package printer

import (
	"bytes"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/hennedo/escpos"

	"github.com/BrandonDHaskell/gatepass/internal/gatepass/types"
	"github.com/BrandonDHaskell/gatepass/internal/qrimage"
)

const (
	DefaultTitle = "Admission Pass"
	rule         = "------------------------------"

	qrModuleSize = 8
	qrBitmapSize = 384
)

type Line struct {
	Label string
	Value string
}

type Ticket struct {
	Title   string
	Payload string
	Lines   []Line
	Footer  string
}

// metadataLabels lists the printed metadata keys in print order.
var metadataLabels = []struct{ key, label string }{
	{types.MetaFullName, "Name"},
	{types.MetaName, "Name"},
	{types.MetaEmail, "Email"},
	{types.MetaRole, "Role"},
	{types.MetaEmployeeID, "Employee No"},
	{types.MetaDepartment, "Department"},
}

// NewTicket lays out a ticket for an issued token.  Expiry is printed in loc.
func NewTicket(payload string, meta map[string]string, expiresAt *time.Time, maxScans int, loc *time.Location) Ticket {
	if loc == nil {
		loc = time.UTC
	}

	t := Ticket{Title: DefaultTitle, Payload: payload}
	seen := make(map[string]bool)
	for _, m := range metadataLabels {
		v := meta[m.key]
		if v == "" || seen[m.label] {
			continue
		}
		seen[m.label] = true
		t.Lines = append(t.Lines, Line{Label: m.label, Value: v})
	}

	expiry := "No expiry"
	if expiresAt != nil {
		expiry = expiresAt.In(loc).Format(time.DateTime) + " " + loc.String()
	}
	t.Lines = append(t.Lines,
		Line{Label: "Valid until", Value: expiry},
		Line{Label: "Max scans", Value: fmt.Sprint(maxScans)},
	)
	return t
}

// QRMode selects how the payload QR reaches the paper.
type QRMode string

const (
	// QRNative asks the printer to draw the code (GS ( k).
	QRNative QRMode = "native"
	// QRBitmap rasterises the code here and sends it as an image, for
	// printers without a QR engine.
	QRBitmap QRMode = "bitmap"
)

// ParseQRMode maps a config value onto a QRMode.  Unknown values are native.
func ParseQRMode(s string) QRMode {
	if QRMode(strings.ToLower(strings.TrimSpace(s))) == QRBitmap {
		return QRBitmap
	}
	return QRNative
}

// Render encodes t as an ESC/POS job ending in a cut.
func Render(t Ticket, mode QRMode) ([]byte, error) {
	var buf bytes.Buffer
	p := escpos.New(&buf)

	if _, err := p.Initialize(); err != nil {
		return nil, err
	}
	p.Justify(escpos.JustifyCenter).Size(2, 2).Bold(true)
	if _, err := p.Write(t.Title + "\n"); err != nil {
		return nil, err
	}
	p.Size(1, 1).Bold(false)
	if _, err := p.Write(rule + "\n"); err != nil {
		return nil, err
	}

	if err := writeQR(p, t.Payload, mode); err != nil {
		return nil, err
	}
	if _, err := p.LineFeed(); err != nil {
		return nil, err
	}

	p.Justify(escpos.JustifyLeft)
	for _, l := range t.Lines {
		if err := writeText(p, l.Label+": "+l.Value+"\n"); err != nil {
			return nil, err
		}
	}
	if _, err := p.Write(rule + "\n"); err != nil {
		return nil, err
	}
	if t.Footer != "" {
		p.Justify(escpos.JustifyCenter)
		if err := writeText(p, t.Footer+"\n"); err != nil {
			return nil, err
		}
	}

	if err := p.PrintAndCut(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeQR(p *escpos.Escpos, payload string, mode QRMode) error {
	if mode == QRBitmap {
		img, err := qrimage.Image(payload, qrBitmapSize)
		if err != nil {
			return err
		}
		_, err = p.PrintImage(img)
		return err
	}

	// escpos sends the module size in place of the error correction level.
	// Printers drop that out-of-range value, so the level set here stands.
	if _, err := p.WriteRaw([]byte{0x1d, 0x28, 0x6b, 0x03, 0x00, 0x31, 0x45, escpos.QRCodeErrorCorrectionLevelM}); err != nil {
		return err
	}
	_, err := p.QRCode(payload, true, qrModuleSize, escpos.QRCodeErrorCorrectionLevelM)
	return err
}

// writeText sends non-ASCII text as code page 850 when iconv supports it.
func writeText(p *escpos.Escpos, s string) error {
	if !isASCII(s) {
		if _, err := p.WriteWEU(s); err == nil {
			return nil
		}
	}
	_, err := p.Write(s)
	return err
}

func isASCII(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] >= utf8.RuneSelf {
			return false
		}
	}
	return true
}
