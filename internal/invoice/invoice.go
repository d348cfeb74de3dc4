package invoice

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"html/template"
	"math/big"
	"net/url"
	"strconv"
	"strings"
	"time"

	"storefront-be/internal/filestore"
	"storefront-be/internal/logger"
	"storefront-be/internal/order"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Generator renders invoice documents from settlement data and persists
// them in the file store.
type Generator struct {
	store     filestore.Store
	urlSecret []byte
	urlTTL    time.Duration
}

func NewGenerator(store filestore.Store, urlSecret string, urlTTL time.Duration) *Generator {
	return &Generator{
		store:     store,
		urlSecret: []byte(urlSecret),
		urlTTL:    urlTTL,
	}
}

var documentTmpl = template.Must(template.New("invoice").Parse(`<!DOCTYPE html>
<html>
<head><title>Invoice {{.Number}}</title></head>
<body>
<h1>Invoice {{.Number}}</h1>
<p>Order #{{.OrderID}} &middot; {{.Date}}</p>
{{if .BillTo}}<p>Bill to: {{.BillTo}}</p>
{{end}}{{if .ShipTo}}<p>Ship to: {{.ShipTo}}</p>
{{end}}<table>
<tr><th>Description</th><th>Quantity</th><th>Price</th><th>Amount</th></tr>
{{range .Lines}}<tr><td>{{.Name}}</td><td>{{.Quantity}}</td><td>{{.UnitPrice}}</td><td>{{.Amount}}</td></tr>
{{end}}</table>
<p>Total: {{.Total}}</p>
<p>Thank you for your business!</p>
</body>
</html>
`))

type documentLine struct {
	Name      string
	Quantity  int
	UnitPrice string
	Amount    string
}

type documentData struct {
	Number  string
	OrderID uint
	Date    string
	BillTo  string
	ShipTo  string
	Lines   []documentLine
	Total   string
}

// Generate renders the document for a settled order and stores it,
// returning the document ref.
func (g *Generator) Generate(ctx context.Context, o *order.Order) (string, error) {
	log := logger.FromCtx(ctx).With(
		zap.Uint("order_id", o.ID),
	)

	billTo := o.BillingAddress
	if o.CustomerName != "" {
		billTo = strings.TrimSuffix(o.CustomerName+", "+o.BillingAddress, ", ")
	}

	data := documentData{
		Number:  Number(),
		OrderID: o.ID,
		Date:    time.Now().UTC().Format("2006-01-02"),
		BillTo:  billTo,
		ShipTo:  o.ShippingAddress,
		Total:   o.TotalAmount.StringFixed(2),
	}
	for _, line := range o.Lines {
		amount := line.UnitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		data.Lines = append(data.Lines, documentLine{
			Name:      line.VariantName,
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice.StringFixed(2),
			Amount:    amount.StringFixed(2),
		})
	}

	var buf bytes.Buffer
	if err := documentTmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("render invoice: %w", err)
	}

	name := fmt.Sprintf("order_%d_invoice.html", o.ID)
	ref, err := g.store.Put(ctx, name, &buf)
	if err != nil {
		return "", fmt.Errorf("store invoice: %w", err)
	}

	log.Info("invoice document stored", zap.String("doc_ref", ref))
	return ref, nil
}

// SignedURL returns a time-limited link to the stored document.
func (g *Generator) SignedURL(docRef string, now time.Time) string {
	exp := now.Add(g.urlTTL).Unix()
	sig := g.sign(docRef, exp)

	q := url.Values{}
	q.Set("ref", docRef)
	q.Set("exp", strconv.FormatInt(exp, 10))
	q.Set("sig", sig)
	return "/files/invoice?" + q.Encode()
}

// VerifySignedURL validates a ref/exp/sig triple from a signed URL.
func (g *Generator) VerifySignedURL(docRef, expStr, sig string, now time.Time) bool {
	exp, err := strconv.ParseInt(expStr, 10, 64)
	if err != nil {
		return false
	}
	if now.Unix() > exp {
		return false
	}
	expected := g.sign(docRef, exp)
	return hmac.Equal([]byte(expected), []byte(sig))
}

func (g *Generator) sign(docRef string, exp int64) string {
	mac := hmac.New(sha256.New, g.urlSecret)
	fmt.Fprintf(mac, "%s|%d", docRef, exp)
	return hex.EncodeToString(mac.Sum(nil))
}

// Number generates a unique human-readable invoice number.
func Number() string {
	now := time.Now().UTC()

	datePart := now.Format("20060102-150405")
	millis := now.Nanosecond() / int(time.Millisecond)

	n, err := rand.Int(rand.Reader, big.NewInt(10000))
	if err != nil {
		n = big.NewInt(now.UnixNano() % 10000)
	}

	return fmt.Sprintf("INV-%s-%03d-%04d", datePart, millis, n.Int64())
}
