package generate

import (
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/leapstack-labs/epmforge/internal/frame"
	"github.com/leapstack-labs/epmforge/pkg/core"
)

// Semantic member pools for header-only inference. Column names are
// matched against keyword groups in a fixed priority order and the
// first hit decides how the column is filled.
var (
	regionPool  = []string{"North", "South", "East", "West"}
	defaultPool = []string{"A", "B", "C", "D"}
	emailHosts  = []string{"example.com", "test.com", "mail.com"}

	firstNames = []string{
		"James", "Mary", "John", "Patricia", "Robert",
		"Jennifer", "Michael", "Linda", "William", "Elizabeth",
	}
	lastNames = []string{
		"Smith", "Johnson", "Williams", "Brown", "Jones",
		"Garcia", "Miller", "Davis", "Rodriguez", "Martinez",
	}
)

var headerEpoch = time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC)

type headerKind int

const (
	kindDefault headerKind = iota
	kindDate
	kindAmount
	kindRegion
	kindSKU
	kindName
	kindTxnID
	kindEmail
	kindPhone
)

// inferKind classifies a column header. Order matters: the first
// matching keyword group wins, so "Transaction Date" is a date, not a
// transaction id.
func inferKind(name string) headerKind {
	n := strings.ToLower(name)
	contains := func(keys ...string) bool {
		for _, k := range keys {
			if strings.Contains(n, k) {
				return true
			}
		}
		return false
	}
	switch {
	case contains("date", "period", "month", "year"):
		return kindDate
	case contains("price", "value", "amount", "cost", "revenue", "volume"):
		return kindAmount
	case contains("region", "area", "zone"):
		return kindRegion
	case contains("sku", "product", "item"):
		return kindSKU
	case contains("customer name", "name"):
		return kindName
	case contains("transaction id", "txn id", "order id", "invoice id"):
		return kindTxnID
	case contains("email"):
		return kindEmail
	case contains("phone", "mobile"):
		return kindPhone
	default:
		return kindDefault
	}
}

// headerFrame synthesizes rows for a header-only model, where every
// dimension arrives as a bare column name with no member list.
func (g *Generator) headerFrame(r *rand.Rand, dims []core.Dimension, n int) *frame.Frame {
	f := frame.New(n)
	for _, d := range dims {
		switch inferKind(d.Name) {
		case kindDate:
			vals := make([]string, n)
			for i := range vals {
				vals[i] = headerEpoch.AddDate(0, 0, i).Format("2006-01-02")
			}
			_ = f.SetStrings(d.Name, vals)
		case kindAmount:
			vals := make([]float64, n)
			for i := range vals {
				vals[i] = frame.Round2(uniform(r, 100, 10000))
			}
			_ = f.SetNumbers(d.Name, vals, nil)
		case kindRegion:
			_ = f.SetStrings(d.Name, pick(r, regionPool, n))
		case kindSKU:
			vals := make([]string, n)
			for i := range vals {
				vals[i] = fmt.Sprintf("SKU%02d", i%10+1)
			}
			_ = f.SetStrings(d.Name, vals)
		case kindName:
			vals := make([]string, n)
			for i := range vals {
				vals[i] = firstNames[r.Intn(len(firstNames))] + " " + lastNames[r.Intn(len(lastNames))]
			}
			_ = f.SetStrings(d.Name, vals)
		case kindTxnID:
			vals := make([]string, n)
			for i := range vals {
				vals[i] = fmt.Sprintf("TXN%06d", 100000+r.Intn(900000))
			}
			_ = f.SetStrings(d.Name, vals)
		case kindEmail:
			vals := make([]string, n)
			for i := range vals {
				vals[i] = fmt.Sprintf("user%d@%s", 1000+r.Intn(9000), emailHosts[r.Intn(len(emailHosts))])
			}
			_ = f.SetStrings(d.Name, vals)
		case kindPhone:
			vals := make([]string, n)
			for i := range vals {
				vals[i] = fmt.Sprintf("+1-202-%03d-%04d", 100+r.Intn(900), 1000+r.Intn(9000))
			}
			_ = f.SetStrings(d.Name, vals)
		default:
			_ = f.SetStrings(d.Name, pick(r, defaultPool, n))
		}
	}
	return f
}

func pick(r *rand.Rand, pool []string, n int) []string {
	vals := make([]string, n)
	for i := range vals {
		vals[i] = pool[r.Intn(len(pool))]
	}
	return vals
}
