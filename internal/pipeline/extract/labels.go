package extract

// FieldType names one of the logical fields the label-proximity algorithm
// locates. It doubles as the key into labelPatterns and drives the
// type-predicate dispatch in looksLikeValue/parseFieldValue.
type FieldType string

const (
	FieldTotal         FieldType = "total"
	FieldTax           FieldType = "tax"
	FieldTaxRate       FieldType = "tax_rate"
	FieldDiscount      FieldType = "discount"
	FieldShipping      FieldType = "shipping"
	FieldSubtotal      FieldType = "subtotal"
	FieldInvoiceNumber FieldType = "invoice_number"
	FieldDate          FieldType = "date"
	FieldDueDate       FieldType = "due_date"
	FieldVendor        FieldType = "vendor"
	FieldAddress       FieldType = "address"
	FieldTaxID         FieldType = "tax_id"
	FieldPhone         FieldType = "phone"
	FieldEmail         FieldType = "email"
)

// labelPatterns is the multilingual (English + Arabic) label dictionary,
// matched as a case-insensitive substring against token text.
var labelPatterns = map[FieldType][]string{
	FieldTotal: {
		"total", "grand total", "amount due", "net total", "final total",
		"amount", "sum", "subtotal", "total amount", "invoice total",
		"الإجمالي", "المجموع", "المبلغ الإجمالي", "المبلغ المستحق",
		"المبلغ النهائي", "المبلغ الصافي", "إجمالي الفاتورة",
	},
	FieldTax: {
		"tax", "vat", "gst", "sales tax", "tax amount", "tax total",
		"value added tax", "taxable amount", "tax rate",
		"ضريبة", "ضريبة القيمة المضافة", "ضريبة المبيعات", "مبلغ الضريبة",
		"إجمالي الضريبة", "نسبة الضريبة", "المبلغ الخاضع للضريبة",
	},
	FieldDiscount: {
		"discount", "deduction", "rebate", "discount amount", "discount total",
		"reduction", "off", "less", "minus",
		"خصم", "تخفيض", "خصم المبلغ", "إجمالي الخصم", "ناقص", "أقل",
	},
	FieldShipping: {
		"shipping", "delivery", "freight", "transport", "shipping cost",
		"delivery fee", "freight charge", "shipping fee",
		"الشحن", "التوصيل", "الشحن والتوصيل", "رسوم الشحن", "تكلفة الشحن",
	},
	FieldInvoiceNumber: {
		"invoice", "invoice no", "invoice number", "inv no", "inv number",
		"bill", "bill no", "bill number", "receipt", "receipt no",
		"فاتورة", "رقم الفاتورة", "فاتورة رقم", "إيصال", "رقم الإيصال",
	},
	FieldDate: {
		"date", "invoice date", "issue date", "billing date", "created",
		"تاريخ", "تاريخ الفاتورة", "تاريخ الإصدار",
	},
	FieldDueDate: {
		"due date", "payment due", "expiry", "valid until",
		"تاريخ الاستحقاق", "تاريخ الدفع", "صالح حتى", "تاريخ الانتهاء",
	},
	FieldVendor: {
		"from", "vendor", "supplier", "company", "business", "seller",
		"merchant", "provider", "contractor",
		"من", "المورد", "المزود", "الشركة", "التاجر", "المقاول",
	},
	FieldSubtotal: {
		"subtotal", "sub total", "sub-total", "المجموع الفرعي",
	},
	FieldAddress: {
		"address", "location", "العنوان",
	},
	FieldTaxID: {
		"tax id", "tax number", "vat number", "vat id", "الرقم الضريبي",
	},
	FieldPhone: {
		"phone", "tel", "telephone", "هاتف",
	},
	FieldEmail: {
		"email", "e-mail", "البريد الإلكتروني",
	},
}

// currencyPatterns maps a CurrencyCode to the symbols/codes/words that
// identify it in token text.
var currencyPatterns = map[string][]string{
	"EUR": {"€", "EUR", "euro", "euros", "يورو"},
	"USD": {"$", "USD", "dollar", "dollars", "دولار"},
	"GBP": {"£", "GBP", "pound", "pounds", "جنيه"},
	"JPY": {"¥", "JPY", "yen", "ين"},
	"SAR": {"SAR", "riyal", "ريال"},
	"AED": {"AED", "dirham", "درهم"},
	"EGP": {"EGP", "جنيه مصري"},
	"QAR": {"QAR", "ريال قطري"},
	"KWD": {"KWD", "dinar", "دينار"},
	"BHD": {"BHD", "دينار بحريني"},
}
