package invoice

import (
	"regexp"
	"time"

	"github.com/oklog/ulid/v2"
)

const (
	numberPrefix     = "INV-"
	numberDateLayout = "20060102"
	numberSuffixLen  = 12
)

// NumberPattern matches every number produced by GenerateInvoiceNumber.
var NumberPattern = regexp.MustCompile(`^INV-\d{8}-[0-9A-HJKMNP-TV-Z]{12}$`)

// GenerateInvoiceNumber returns INV-<yyyymmdd>-<12 Crockford base32 chars>. The suffix is the
// tail of a monotonic ULID, so numbers issued by one process never repeat; across processes
// the unique index on invoices.invoice_number has the final say.
func GenerateInvoiceNumber() string {
	return generateNumber(time.Now().UTC())
}

func generateNumber(now time.Time) string {
	id := ulid.Make().String()
	return numberPrefix + now.Format(numberDateLayout) + "-" + id[len(id)-numberSuffixLen:]
}
