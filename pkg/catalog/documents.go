package catalog

type SearchDocumentsArgs struct {
	Query    string  `json:"query,omitempty" jsonschema_description:"Search term"`
	Category string  `json:"category,omitempty" jsonschema:"enum=POLICY,enum=PROCEDURE,enum=REPORT,enum=FORM,enum=MINUTES,enum=PRESENTATION,enum=FINANCIAL,enum=LEGAL,enum=OTHER,enum=ALL" jsonschema_description:"Filter by document category"`
	IsPublic *bool   `json:"isPublic,omitempty" jsonschema_description:"Filter by public/private status"`
	Limit    float64 `json:"limit,omitempty" jsonschema_description:"Max results (default: 10)"`
}

type UploadDocumentArgs struct {
	Name        string   `json:"name" jsonschema_description:"Document name"`
	Description string   `json:"description,omitempty" jsonschema_description:"Document description"`
	FileURL     string   `json:"fileUrl" jsonschema_description:"URL where file is stored"`
	FileType    string   `json:"fileType" jsonschema_description:"File type (e.g., 'pdf', 'docx', 'xlsx')"`
	FileSize    float64  `json:"fileSize" jsonschema_description:"File size in bytes"`
	Category    string   `json:"category" jsonschema:"enum=POLICY,enum=PROCEDURE,enum=REPORT,enum=FORM,enum=MINUTES,enum=PRESENTATION,enum=FINANCIAL,enum=LEGAL,enum=OTHER"`
	Tags        []string `json:"tags,omitempty" jsonschema_description:"Tags for categorization"`
	IsPublic    bool     `json:"isPublic,omitempty" jsonschema_description:"Whether document is publicly accessible"`
}

type GetDocumentArgs struct {
	DocumentID string `json:"documentId" jsonschema_description:"Document ID"`
}

type GetStaffUsersArgs struct {
	Role     string `json:"role,omitempty" jsonschema:"enum=ADMIN,enum=PASTOR,enum=STAFF,enum=DEPARTMENT_HEAD,enum=ALL" jsonschema_description:"Filter by user role"`
	IsActive *bool  `json:"isActive,omitempty" jsonschema_description:"Filter by active status"`
}

type CreateStaffUserArgs struct {
	Email    string `json:"email" jsonschema_description:"Email address (used for login)"`
	Password string `json:"password" jsonschema_description:"Initial password"`
	Name     string `json:"name" jsonschema_description:"Full name"`
	Role     string `json:"role" jsonschema:"enum=ADMIN,enum=PASTOR,enum=STAFF,enum=DEPARTMENT_HEAD" jsonschema_description:"User role determining permissions"`
}

type GetDashboardSummaryArgs struct {
	Period string `json:"period,omitempty" jsonschema:"enum=week,enum=month,enum=quarter,enum=year" jsonschema_description:"Time period for metrics (default: month)"`
}

type GenerateCustomReportArgs struct {
	ReportType string `json:"reportType" jsonschema:"enum=membership_growth,enum=financial_summary,enum=attendance_trends,enum=giving_analysis,enum=department_activity,enum=comprehensive" jsonschema_description:"Type of report to generate"`
	StartDate  string `json:"startDate" jsonschema_description:"Start date (ISO format)"`
	EndDate    string `json:"endDate" jsonschema_description:"End date (ISO format)"`
	Format     string `json:"format,omitempty" jsonschema:"enum=json,enum=summary" jsonschema_description:"Output format (default: summary)"`
}

func documentTools() []toolEntry {
	return []toolEntry{
		entry[SearchDocumentsArgs]("search_documents",
			"Search church documents by name, category, or tags.",
			TagDocuments),
		entry[UploadDocumentArgs]("upload_document",
			"Upload a new document to the system.",
			TagDocuments, TagWrite),
		entry[GetDocumentArgs]("get_document",
			"Get details of a specific document including download link.",
			TagDocuments),
	}
}

func userTools() []toolEntry {
	return []toolEntry{
		entry[GetStaffUsersArgs]("get_staff_users",
			"Get list of staff users who have access to the system.",
			TagUsers),
		entry[CreateStaffUserArgs]("create_staff_user",
			"Create a new staff user account with system access.",
			TagUsers, TagWrite),
	}
}

func analyticsTools() []toolEntry {
	return []toolEntry{
		entry[GetDashboardSummaryArgs]("get_dashboard_summary",
			"Get comprehensive dashboard summary with key metrics: total members, recent attendance, financial overview, upcoming events, and growth trends.",
			TagAnalytics),
		entry[GenerateCustomReportArgs]("generate_custom_report",
			"Generate a custom report combining multiple data sources. Useful for board meetings, annual reports, or specific analysis requests.",
			TagAnalytics),
	}
}
