package nfcom

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/domain"
	"github.com/lfreitas-dev/nfcom-analyzer/internal/core/ports"
)

// Namespace is the fiscal namespace every NFCom element lives in.
// The carrier wrappers (Fatura, NFComVivo, sirius) are un-namespaced.
const Namespace = "http://www.portalfiscal.inf.br/nfcom"

// icmsVariants is the fixed priority order for resolving the ICMS
// value; the first variant present wins regardless of document order.
var icmsVariants = []string{"ICMS00", "ICMS20"}

// Extractor flattens NFCom batch documents into denormalized line-item
// records, one per <det> element.
type Extractor struct{}

func New() *Extractor { return &Extractor{} }

var _ ports.InvoiceExtractor = (*Extractor)(nil)

// Extract streams every line item of every invoice in the file through
// emit. Invoices missing header fields and items missing their product
// or tax blocks are counted and skipped; a document that does not parse
// at all is a malformed-input error and aborts the whole file.
func (e *Extractor) Extract(ctx context.Context, file domain.FileBuffer, emit func(domain.LineItemRecord) error) (domain.ExtractStats, error) {
	var stats domain.ExtractStats

	root, err := parse(file.Data)
	if err != nil {
		return stats, domain.WrapError(domain.ErrMalformedXML, "parse document", err)
	}

	branchCode := resolveBranchCode(root)

	for _, fatura := range root.children("", "Fatura") {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		header, ok := extractHeader(fatura)
		if !ok {
			stats.InvoicesSkipped++
			continue
		}

		invoiceTotal := sql.NullFloat64{}
		if total, ok := fatura.descendant(Namespace, "total"); ok {
			if text, ok := total.childText(Namespace, "vNF"); ok {
				invoiceTotal = CoerceFloat(text)
			}
		}

		for _, det := range fatura.descendants(Namespace, "det") {
			rec, ok := extractLineItem(det)
			if !ok {
				stats.ItemsSkipped++
				continue
			}
			rec.SourceFile = file.Name
			rec.BranchCode = branchCode
			rec.InvoiceNumber = header.number
			rec.IssueTimestamp = header.issuedAt
			rec.InvoiceTotal = invoiceTotal
			if err := emit(rec); err != nil {
				return stats, err
			}
		}
	}

	return stats, nil
}

type invoiceHeader struct {
	number   int
	issuedAt string
}

// extractHeader digs Fatura > NFComVivo > .. > ide for the invoice
// number and issue timestamp. Any missing link skips the invoice.
func extractHeader(fatura *element) (invoiceHeader, bool) {
	wrapper, ok := fatura.child("", "NFComVivo")
	if !ok {
		return invoiceHeader{}, false
	}
	ide, ok := wrapper.descendant(Namespace, "ide")
	if !ok {
		return invoiceHeader{}, false
	}

	numberText, ok := ide.childText(Namespace, "nNF")
	if !ok {
		return invoiceHeader{}, false
	}
	number, err := strconv.Atoi(numberText)
	if err != nil {
		return invoiceHeader{}, false
	}

	issuedAt, ok := ide.childText(Namespace, "dhEmi")
	if !ok {
		return invoiceHeader{}, false
	}
	return invoiceHeader{number: number, issuedAt: issuedAt}, true
}

// resolveBranchCode finds the carrier's branch code anywhere in the
// document; when several sirius blocks are present the last one wins.
func resolveBranchCode(root *element) sql.NullString {
	code := sql.NullString{}
	for _, sirius := range root.descendants("", "sirius") {
		if text, ok := sirius.childText("", "codigo_filial"); ok {
			code = sql.NullString{String: text, Valid: true}
		}
	}
	return code
}

func extractLineItem(det *element) (domain.LineItemRecord, bool) {
	prod, ok := det.child(Namespace, "prod")
	if !ok {
		return domain.LineItemRecord{}, false
	}
	imposto, ok := det.child(Namespace, "imposto")
	if !ok {
		return domain.LineItemRecord{}, false
	}

	rec := domain.LineItemRecord{
		CFOPCode:        prod.childTextDefault(Namespace, "CFOP", "0000"),
		ReturnIndicator: imposto.childTextDefault(Namespace, "indDevolucao", "0"),
		NoCSTIndicator:  imposto.childTextDefault(Namespace, "indSemCST", "-"),
	}

	if id, ok := det.attr("nItem"); ok {
		rec.ItemID = sql.NullString{String: id, Valid: true}
	}

	if class, ok := prod.childText(Namespace, "cClass"); ok && class != "" {
		if len(class) > 3 {
			class = class[:3]
		}
		rec.ClassificationCode = sql.NullString{String: class, Valid: true}
	}

	rec.ProductValue = coerceChild(prod, "vProd")
	rec.TaxBase = coerceChild(prod, "vBC")
	rec.DiscountValue = coerceChild(prod, "vDesc")
	rec.OtherValue = coerceChild(prod, "vOutro")

	if pis, ok := imposto.child(Namespace, "PIS"); ok {
		rec.PISCST = optionalString(pis, "CST")
		rec.PISTaxBase = coerceChild(pis, "vBC")
	}
	if cofins, ok := imposto.child(Namespace, "COFINS"); ok {
		rec.COFINSCST = optionalString(cofins, "CST")
		rec.COFINSTaxBase = coerceChild(cofins, "vBC")
	}

	rec.ICMSValue, rec.ICMSCode = resolveICMS(imposto)
	return rec, true
}

// resolveICMS scans the tax block for the first ICMS variant in
// priority order. The variant's numeric suffix becomes the code; with
// no variant present the value defaults to zero and the code to "-".
func resolveICMS(imposto *element) (sql.NullFloat64, string) {
	for _, variant := range icmsVariants {
		for _, block := range imposto.descendants(Namespace, variant) {
			if text, ok := block.childText(Namespace, "vICMS"); ok {
				return CoerceFloat(text), variant[len("ICMS"):]
			}
		}
	}
	return CoerceFloat("0"), "-"
}

func coerceChild(parent *element, local string) sql.NullFloat64 {
	text, ok := parent.childText(Namespace, local)
	if !ok {
		return sql.NullFloat64{}
	}
	return CoerceFloat(text)
}

// optionalString treats both a missing and an empty element as null.
func optionalString(parent *element, local string) sql.NullString {
	text, ok := parent.childText(Namespace, local)
	if !ok || text == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: text, Valid: true}
}
