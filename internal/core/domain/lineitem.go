package domain

import "database/sql"

// LineItemRecord is one denormalized row: a single <det> line item
// joined with the header fields of its invoice and file. Nullable
// fields use database/sql option types so absence survives the trip
// into the store unchanged; CFOPCode, ICMSCode, ReturnIndicator and
// NoCSTIndicator are defaulted during extraction and never null.
type LineItemRecord struct {
	SourceFile         string
	BranchCode         sql.NullString
	InvoiceNumber      int
	IssueTimestamp     string
	ItemID             sql.NullString
	CFOPCode           string
	ClassificationCode sql.NullString
	ProductValue       sql.NullFloat64
	TaxBase            sql.NullFloat64
	DiscountValue      sql.NullFloat64
	OtherValue         sql.NullFloat64
	InvoiceTotal       sql.NullFloat64
	PISCST             sql.NullString
	COFINSCST          sql.NullString
	PISTaxBase         sql.NullFloat64
	COFINSTaxBase      sql.NullFloat64
	ICMSValue          sql.NullFloat64
	ICMSCode           string
	ReturnIndicator    string
	NoCSTIndicator     string
}
