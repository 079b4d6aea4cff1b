package importer

import (
	"fmt"
	"sort"
	"strings"
)

// Canonical column names for the Fishbowl sales-order export. Every raw
// header from an uploaded file is mapped onto one of these before any row
// is processed.
const (
	FieldSONumber        = "Sales order Number"
	FieldSalesOrderID    = "Sales Order ID"
	FieldSOItemID        = "SO Item ID"
	FieldAccountID       = "Account ID"
	FieldCustomerName    = "Customer Name"
	FieldIssuedDate      = "Issued date"
	FieldSalesPerson     = "Sales person"
	FieldSalesRep        = "Sales Rep"
	FieldYearMonth       = "Year-month"
	FieldAccountType     = "Account type"
	FieldProductNumber   = "Product Number"
	FieldProductDesc     = "Product Description"
	FieldQuantity        = "Quantity"
	FieldUnitPrice       = "Unit price"
	FieldTotalPrice      = "Total price"
	FieldSubtotal        = "Subtotal"
	FieldDiscount        = "Discount"
	FieldTaxRate         = "Tax rate"
	FieldTaxAmount       = "Tax amount"
	FieldCommissionRate  = "Commission rate"
	FieldStatus          = "Status"
	FieldDateCreated     = "Date created"
	FieldDateCompleted   = "Date completed"
	FieldFulfillmentDate = "Fulfillment date"
	FieldPONumber        = "PO Number"
	FieldCarrier         = "Carrier"
	FieldUOM             = "UOM"
	FieldLocationGroup   = "Location Group"
	FieldPaymentTerms    = "Payment terms"
	FieldShippingTerms   = "Shipping terms"
	FieldBillToCity      = "Bill to City"
	FieldBillToState     = "Bill to State"
	FieldBillToZip       = "Bill to Zip"
	FieldShipToCity      = "Ship to City"
	FieldShipToState     = "Ship to State"
	FieldShipToZip       = "Ship to Zip"
	FieldContactName     = "Customer Contact"
	FieldContactPhone    = "Phone"
	FieldContactEmail    = "Email"
)

// headerAliases maps each canonical field to the raw spellings observed
// across export tools and versions. Aliases are matched after
// normalization, so case, whitespace, and separators are irrelevant.
var headerAliases = map[string][]string{
	FieldSONumber:        {"SO Number", "SO Num", "SO #", "Order Num", "Order Number", "sales_order_number", "SalesOrderNum"},
	FieldSalesOrderID:    {"SO ID", "sales_order_id", "Order ID", "SalesOrderID"},
	FieldSOItemID:        {"SO Item", "Item ID", "Line Item ID", "so_item_id", "SOItemID", "Line ID"},
	FieldAccountID:       {"Account #", "Account Num", "Customer ID", "customer_id", "Acct ID", "AccountID"},
	FieldCustomerName:    {"Customer", "Account Name", "Bill To Name", "customer_name", "Company"},
	FieldIssuedDate:      {"Issued", "Issue Date", "Date Issued", "Order Date", "issued_date"},
	FieldSalesPerson:     {"Salesperson", "Sales Person Name", "Commission Rep", "sales_person"},
	FieldSalesRep:        {"Rep", "Sales Rep Name", "Assigned Rep", "sales_rep"},
	FieldYearMonth:       {"Year Month", "YearMonth", "Commission Month", "year_month", "Month"},
	FieldAccountType:     {"Account Classification", "Customer Type", "Account Class", "account_type"},
	FieldProductNumber:   {"Product Num", "Product #", "Item Number", "Part Number", "SKU", "product_number"},
	FieldProductDesc:     {"Description", "Product Desc", "Item Description", "Part Description"},
	FieldQuantity:        {"Qty", "Qty Sold", "Quantity Sold", "Qty Fulfilled"},
	FieldUnitPrice:       {"Price", "Price Per Unit", "Unit Cost", "unit_price"},
	FieldTotalPrice:      {"Total", "Line Total", "Ext Price", "Extended Price", "Total Revenue", "Revenue", "total_price"},
	FieldSubtotal:        {"Sub Total", "Order Subtotal"},
	FieldDiscount:        {"Discount Amount", "Discount Total"},
	FieldTaxRate:         {"Tax %", "Tax Percent"},
	FieldTaxAmount:       {"Tax", "Tax Total", "Total Tax"},
	FieldCommissionRate:  {"Comm Rate", "Commission %", "commission_rate"},
	FieldStatus:          {"Order Status", "SO Status"},
	FieldDateCreated:     {"Created Date", "Created", "date_created"},
	FieldDateCompleted:   {"Completed Date", "Date Complete", "date_completed"},
	FieldFulfillmentDate: {"Fulfilled Date", "Date Fulfilled", "Ship Date"},
	FieldPONumber:        {"PO Num", "PO #", "Customer PO", "po_number"},
	FieldCarrier:         {"Carrier Name", "Ship Via"},
	FieldUOM:             {"Unit of Measure", "Unit"},
	FieldLocationGroup:   {"Location", "LG Name", "location_group"},
	FieldPaymentTerms:    {"Terms", "Payment Term"},
	FieldShippingTerms:   {"Shipping Term", "Freight Terms"},
	FieldBillToCity:      {"Billing City", "Bill City"},
	FieldBillToState:     {"Billing State", "Bill State"},
	FieldBillToZip:       {"Billing Zip", "Bill Zip", "Bill To Postal Code"},
	FieldShipToCity:      {"Shipping City", "Ship City"},
	FieldShipToState:     {"Shipping State", "Ship State"},
	FieldShipToZip:       {"Shipping Zip", "Ship Zip", "Ship To Postal Code"},
	FieldContactName:     {"Contact", "Contact Name", "Attn"},
	FieldContactPhone:    {"Phone Number", "Contact Phone"},
	FieldContactEmail:    {"E-mail", "Contact Email"},
}

// RequiredFields must all be present after header mapping or the whole
// import fails before any row is processed.
var RequiredFields = []string{
	FieldSONumber,
	FieldSalesOrderID,
	FieldSOItemID,
	FieldAccountID,
	FieldCustomerName,
	FieldIssuedDate,
	FieldSalesPerson,
}

// aliasIndex is the immutable normalized-alias → canonical lookup built
// once at package init, never recomputed per row.
var aliasIndex = buildAliasIndex()

func buildAliasIndex() map[string]string {
	index := make(map[string]string)

	add := func(raw, canonical string) {
		key := normalizeHeader(raw)
		if key == "" {
			return
		}
		if _, exists := index[key]; !exists {
			index[key] = canonical
		}
	}

	for canonical, aliases := range headerAliases {
		add(canonical, canonical)
		for _, alias := range aliases {
			add(alias, canonical)
			// Export tools disagree on separators; register both
			// generated variants so either spelling resolves.
			add(strings.ReplaceAll(alias, " ", "_"), canonical)
			add(strings.ReplaceAll(alias, "_", " "), canonical)
		}
	}
	return index
}

// normalizeHeader lower-cases a header and strips everything that is not
// a letter or digit, making the match case-, whitespace-, and
// separator-insensitive.
func normalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeHeaders maps each raw column header from one imported file to
// its canonical field name. Unmatched headers pass through unchanged;
// genuine problems are caught by ValidateRequiredHeaders.
func NormalizeHeaders(rawHeaders []string) map[string]string {
	mapping := make(map[string]string, len(rawHeaders))
	for _, raw := range rawHeaders {
		if canonical, ok := aliasIndex[normalizeHeader(raw)]; ok {
			mapping[raw] = canonical
		} else {
			mapping[raw] = raw
		}
	}
	return mapping
}

// UnmatchedHeaders lists the raw headers a mapping passed through
// unmodified, so the parse site can log them. Unmatched headers are not
// fatal; required-header validation catches genuine problems.
func UnmatchedHeaders(mapping map[string]string) []string {
	var unmatched []string
	for raw, canonical := range mapping {
		if raw != canonical {
			continue
		}
		if _, ok := aliasIndex[normalizeHeader(raw)]; !ok {
			unmatched = append(unmatched, raw)
		}
	}
	sort.Strings(unmatched)
	return unmatched
}

// MissingHeadersError reports the canonical fields an import lacks.
type MissingHeadersError struct {
	Missing []string
}

func (e *MissingHeadersError) Error() string {
	return fmt.Sprintf("missing required headers: %s", strings.Join(e.Missing, ", "))
}

// ValidateRequiredHeaders checks that every required canonical field is
// present in a post-normalization header mapping. It must run before any
// row processing begins.
func ValidateRequiredHeaders(mapping map[string]string) error {
	present := make(map[string]bool, len(mapping))
	for _, canonical := range mapping {
		present[canonical] = true
	}

	var missing []string
	for _, field := range RequiredFields {
		if !present[field] {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return &MissingHeadersError{Missing: missing}
	}
	return nil
}
