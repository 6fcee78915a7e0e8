package render

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/go-pdf/fpdf"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/mystery-events/voucherd/internal/models"
)

// palette holds the colors of one presentation template.
type palette struct {
	headerR, headerG, headerB int
	accentR, accentG, accentB int
	title                     string
}

// Presentation templates known to the renderer; unknown IDs fall back to elegant.
var palettes = map[string]palette{
	"elegant":   {26, 26, 46, 59, 130, 246, "Vale Regalo"},
	"christmas": {22, 101, 52, 220, 38, 38, "Vale Regalo Navideño"},
	"romantic":  {131, 24, 67, 236, 72, 153, "Vale Regalo"},
}

const qrPixelSize = 256

// PDFRenderer renders voucher PDFs with an embedded verification QR code.
type PDFRenderer struct{}

// NewPDFRenderer constructs a PDFRenderer.
func NewPDFRenderer() *PDFRenderer {
	return &PDFRenderer{}
}

// Render builds the voucher document. Deterministic for identical input:
// the document creation date is pinned to the purchase date.
func (r *PDFRenderer) Render(snapshot Snapshot, templateID string) ([]byte, error) {
	if strings.TrimSpace(snapshot.Code) == "" {
		return nil, fmt.Errorf("render: empty voucher code")
	}
	if strings.TrimSpace(snapshot.VerificationURL) == "" {
		return nil, fmt.Errorf("render: empty verification url")
	}

	qrPNG, errQR := qrcode.Encode(snapshot.VerificationURL, qrcode.Medium, qrPixelSize)
	if errQR != nil {
		return nil, fmt.Errorf("render: qr code: %w", errQR)
	}

	colors, ok := palettes[strings.ToLower(strings.TrimSpace(templateID))]
	if !ok {
		colors = palettes["elegant"]
	}

	doc := fpdf.New("P", "mm", "A4", "")
	doc.SetCatalogSort(true)
	doc.SetCreationDate(snapshot.PurchaseDate.UTC())
	doc.SetModificationDate(snapshot.PurchaseDate.UTC())
	doc.SetTitle(colors.title, true)
	doc.AddPage()

	// Header band.
	doc.SetFillColor(colors.headerR, colors.headerG, colors.headerB)
	doc.Rect(0, 0, 210, 40, "F")
	doc.SetTextColor(255, 255, 255)
	doc.SetFont("Helvetica", "B", 26)
	doc.SetXY(0, 12)
	doc.CellFormat(210, 12, colors.title, "", 1, "C", false, 0, "")

	// Value line.
	doc.SetTextColor(colors.accentR, colors.accentG, colors.accentB)
	doc.SetFont("Helvetica", "B", 32)
	doc.SetXY(0, 55)
	doc.CellFormat(210, 14, valueLine(snapshot), "", 1, "C", false, 0, "")

	// Code block.
	doc.SetTextColor(33, 33, 33)
	doc.SetFont("Courier", "B", 20)
	doc.SetXY(0, 75)
	doc.CellFormat(210, 10, snapshot.Code, "", 1, "C", false, 0, "")

	doc.SetFont("Helvetica", "", 12)
	y := 95.0
	if snapshot.RecipientName != "" {
		doc.SetXY(20, y)
		doc.CellFormat(170, 8, fmt.Sprintf("Para: %s", snapshot.RecipientName), "", 1, "L", false, 0, "")
		y += 8
	}
	doc.SetXY(20, y)
	doc.CellFormat(170, 8, fmt.Sprintf("De: %s", snapshot.PurchaserName), "", 1, "L", false, 0, "")
	y += 8
	if snapshot.PersonalMessage != "" {
		doc.SetXY(20, y)
		doc.MultiCell(170, 6, fmt.Sprintf("\"%s\"", snapshot.PersonalMessage), "", "L", false)
		y = doc.GetY() + 2
	}
	doc.SetXY(20, y)
	doc.CellFormat(170, 8, fmt.Sprintf("Válido hasta: %s", snapshot.ExpiryDate.Format("02/01/2006")), "", 1, "L", false, 0, "")

	// Verification QR.
	opts := fpdf.ImageOptions{ImageType: "PNG"}
	doc.RegisterImageOptionsReader("verification-qr", opts, bytes.NewReader(qrPNG))
	doc.ImageOptions("verification-qr", 80, 170, 50, 50, false, opts, 0, "")
	doc.SetFont("Helvetica", "", 9)
	doc.SetTextColor(120, 120, 120)
	doc.SetXY(0, 222)
	doc.CellFormat(210, 6, "Escanea para verificar el vale", "", 1, "C", false, 0, "")

	// Footer.
	doc.SetXY(0, 275)
	doc.SetFont("Helvetica", "", 8)
	footerID := snapshot.ID
	if len(footerID) > 8 {
		footerID = footerID[len(footerID)-8:]
	}
	doc.CellFormat(210, 5, fmt.Sprintf("ID: %s | %s", footerID, snapshot.PurchaseDate.Format("02/01/2006")), "", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if errOut := doc.Output(&buf); errOut != nil {
		return nil, fmt.Errorf("render: pdf output: %w", errOut)
	}
	return buf.Bytes(), nil
}

// valueLine formats the headline value by voucher type.
func valueLine(snapshot Snapshot) string {
	if snapshot.Type == models.VoucherTypeEvent && snapshot.EventTitle != "" {
		tickets := snapshot.TicketQuantity
		if tickets <= 0 {
			tickets = 2
		}
		if tickets == 1 {
			return fmt.Sprintf("1 entrada para %s", snapshot.EventTitle)
		}
		return fmt.Sprintf("%d entradas para %s", tickets, snapshot.EventTitle)
	}
	return fmt.Sprintf("%.2f €", snapshot.CurrentBalance)
}
