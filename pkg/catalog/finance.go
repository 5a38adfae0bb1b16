package catalog

type RecordOfferingArgs struct {
	EventID      string  `json:"eventId" jsonschema_description:"Event ID where offering was collected"`
	OfferingType string  `json:"offeringType" jsonschema:"enum=TITHES,enum=OFFERINGS,enum=SPECIAL_OFFERING,enum=MISSIONS,enum=BUILDING_FUND,enum=OTHER"`
	Amount       float64 `json:"amount" jsonschema_description:"Total amount collected"`
	Currency     string  `json:"currency,omitempty" jsonschema_description:"Currency code (default: USD)"`
	Notes        string  `json:"notes,omitempty"`
}

type RecordDonationArgs struct {
	MemberID    string  `json:"memberId,omitempty" jsonschema_description:"Member ID (optional if anonymous)"`
	DonorName   string  `json:"donorName,omitempty" jsonschema_description:"Name if not a member"`
	Amount      float64 `json:"amount" jsonschema_description:"Donation amount"`
	Currency    string  `json:"currency,omitempty" jsonschema_description:"Currency code (default: USD)"`
	Purpose     string  `json:"purpose,omitempty" jsonschema_description:"Purpose of donation"`
	Method      string  `json:"method" jsonschema:"enum=CASH,enum=CHECK,enum=CREDIT_CARD,enum=BANK_TRANSFER,enum=MOBILE_MONEY,enum=ONLINE,enum=OTHER"`
	Reference   string  `json:"reference,omitempty" jsonschema_description:"Transaction reference number"`
	IsAnonymous bool    `json:"isAnonymous,omitempty" jsonschema_description:"Whether donor wants to remain anonymous"`
	Date        string  `json:"date,omitempty" jsonschema_description:"Date of donation (ISO format)"`
	Notes       string  `json:"notes,omitempty"`
}

type RecordTransactionArgs struct {
	Type        string  `json:"type" jsonschema:"enum=INCOME,enum=EXPENSE" jsonschema_description:"Transaction type"`
	Category    string  `json:"category" jsonschema_description:"Category (e.g., 'Utilities', 'Salaries', 'Offerings', 'Rent')"`
	Amount      float64 `json:"amount" jsonschema_description:"Transaction amount"`
	Description string  `json:"description" jsonschema_description:"Transaction description"`
	Reference   string  `json:"reference,omitempty" jsonschema_description:"Reference number or invoice ID"`
	Date        string  `json:"date,omitempty" jsonschema_description:"Transaction date (ISO format)"`
}

type GetFinancialSummaryArgs struct {
	StartDate string `json:"startDate" jsonschema_description:"Start date (ISO format)"`
	EndDate   string `json:"endDate" jsonschema_description:"End date (ISO format)"`
	GroupBy   string `json:"groupBy,omitempty" jsonschema:"enum=day,enum=week,enum=month,enum=quarter,enum=year" jsonschema_description:"How to group the financial data"`
}

type GetGivingReportArgs struct {
	StartDate        string `json:"startDate" jsonschema_description:"Start date (ISO format)"`
	EndDate          string `json:"endDate" jsonschema_description:"End date (ISO format)"`
	MemberID         string `json:"memberId,omitempty" jsonschema_description:"Specific member ID (optional)"`
	IncludeAnonymous *bool  `json:"includeAnonymous,omitempty" jsonschema_description:"Include anonymous donations in totals (default: true)"`
}

type GetExpenseReportArgs struct {
	StartDate string `json:"startDate" jsonschema_description:"Start date (ISO format)"`
	EndDate   string `json:"endDate" jsonschema_description:"End date (ISO format)"`
	Category  string `json:"category,omitempty" jsonschema_description:"Filter by specific category (optional)"`
}

func financeTools() []toolEntry {
	return []toolEntry{
		entry[RecordOfferingArgs]("record_offering",
			"Record offerings collected during a church service or event.",
			TagFinance, TagWrite),
		entry[RecordDonationArgs]("record_donation",
			"Record a donation from a member or external donor.",
			TagFinance, TagWrite),
		entry[RecordTransactionArgs]("record_transaction",
			"Record a general financial transaction (income or expense).",
			TagFinance, TagWrite),
		entry[GetFinancialSummaryArgs]("get_financial_summary",
			"Get financial summary including total income, expenses, offerings, donations, and balance for a specified period.",
			TagFinance),
		entry[GetGivingReportArgs]("get_giving_report",
			"Get detailed giving report showing top donors, giving trends, and category breakdowns.",
			TagFinance),
		entry[GetExpenseReportArgs]("get_expense_report",
			"Get expense report showing spending by category, trends, and budget compliance.",
			TagFinance),
	}
}
