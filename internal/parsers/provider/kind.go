package provider

import (
	"strings"

	"github.com/rumor-ml/commons.systems/stmtimport/internal/parser"
	"github.com/rumor-ml/commons.systems/stmtimport/internal/textnorm"
)

// Kind is the closed set of provider report layouts.
type Kind int

const (
	KindGeneric Kind = iota
	KindBillPayment
	KindInternalTransfer
	KindPIX
)

// String returns the variant name used in logs and import results.
func (k Kind) String() string {
	switch k {
	case KindBillPayment:
		return "bill-payment"
	case KindInternalTransfer:
		return "internal-transfer"
	case KindPIX:
		return "pix"
	default:
		return "generic"
	}
}

// reportTitles lists the folded report titles of each layout, in detection order.
var reportTitles = []struct {
	kind   Kind
	titles []string
}{
	{KindBillPayment, []string{"bill payment report", "relatorio de pagamentos", "relatorio de boletos", "pagamento de boletos"}},
	{KindInternalTransfer, []string{"internal transfer report", "relatorio de transferencias", "transferencias internas"}},
	{KindPIX, []string{"pix transfer report", "pix transfer", "relatorio de pix", "transferencias pix"}},
}

// sub-parsers per layout
var layouts = map[Kind]func(lines []string) []parser.ParsedTransaction{
	KindBillPayment:      ParseBillPayments,
	KindInternalTransfer: ParseInternalTransfers,
	KindPIX:              ParsePIX,
	KindGeneric:          ParseGeneric,
}

// Detect sniffs the full text for a known report title. Unrecognised text is KindGeneric.
func Detect(text string) Kind {
	kind, _ := matchTitle(textnorm.Fold(text))
	return kind
}

func matchTitle(folded string) (Kind, bool) {
	for _, layout := range reportTitles {
		for _, title := range layout.titles {
			if strings.Contains(folded, title) {
				return layout.kind, true
			}
		}
	}
	return KindGeneric, false
}

// ParseLayout runs the sub-parser registered for kind.
func ParseLayout(kind Kind, lines []string) []parser.ParsedTransaction {
	parse, ok := layouts[kind]
	if !ok {
		parse = ParseGeneric
	}
	return parse(lines)
}
