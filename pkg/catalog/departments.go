package catalog

type GetDepartmentsArgs struct {
	IsActive *bool  `json:"isActive,omitempty" jsonschema_description:"Filter by active status (leave empty for all)"`
	Type     string `json:"type,omitempty" jsonschema:"enum=ADMINISTRATION,enum=EVANGELISM,enum=USHERING,enum=MEDIA,enum=WORSHIP,enum=CHILDREN,enum=YOUTH,enum=PRAYER,enum=WELFARE,enum=SECURITY,enum=FINANCE,enum=OTHER,enum=ALL" jsonschema_description:"Filter by department type"`
}

type CreateDepartmentArgs struct {
	Name        string `json:"name" jsonschema_description:"Department name"`
	Description string `json:"description,omitempty" jsonschema_description:"Department description"`
	Type        string `json:"type" jsonschema:"enum=ADMINISTRATION,enum=EVANGELISM,enum=USHERING,enum=MEDIA,enum=WORSHIP,enum=CHILDREN,enum=YOUTH,enum=PRAYER,enum=WELFARE,enum=SECURITY,enum=FINANCE,enum=OTHER"`
	HeadID      string `json:"headId,omitempty" jsonschema_description:"Member ID of department head"`
}

type AddDepartmentMemberArgs struct {
	DepartmentID string `json:"departmentId" jsonschema_description:"Department ID"`
	MemberID     string `json:"memberId" jsonschema_description:"Member ID to add"`
	Role         string `json:"role,omitempty" jsonschema_description:"Role in department (e.g., 'Head', 'Assistant', 'Member')"`
}

type GetDepartmentMembersArgs struct {
	DepartmentID string `json:"departmentId" jsonschema_description:"Department ID"`
	IsActive     *bool  `json:"isActive,omitempty" jsonschema_description:"Filter by active status"`
}

type CreateDepartmentRecordArgs struct {
	DepartmentID string                 `json:"departmentId" jsonschema_description:"Department ID"`
	Title        string                 `json:"title" jsonschema_description:"Record title"`
	Description  string                 `json:"description,omitempty" jsonschema_description:"Detailed description"`
	RecordType   string                 `json:"recordType" jsonschema_description:"Type of record (e.g., 'Meeting Minutes', 'Activity Report', 'Plan')"`
	Data         map[string]interface{} `json:"data,omitempty" jsonschema_description:"Additional structured data (optional)"`
}

type GetDepartmentRecordsArgs struct {
	DepartmentID string  `json:"departmentId" jsonschema_description:"Department ID"`
	RecordType   string  `json:"recordType,omitempty" jsonschema_description:"Filter by record type"`
	Limit        float64 `json:"limit,omitempty" jsonschema_description:"Max records to return (default: 20)"`
}

func departmentTools() []toolEntry {
	return []toolEntry{
		entry[GetDepartmentsArgs]("get_departments",
			"Get list of all church departments with their details.",
			TagDepartments),
		entry[CreateDepartmentArgs]("create_department",
			"Create a new church department.",
			TagDepartments, TagWrite),
		entry[AddDepartmentMemberArgs]("add_department_member",
			"Add a member to a department with specified role.",
			TagDepartments, TagWrite),
		entry[GetDepartmentMembersArgs]("get_department_members",
			"Get all members of a specific department.",
			TagDepartments),
		entry[CreateDepartmentRecordArgs]("create_department_record",
			"Create a record or note for a department (meeting minutes, activity reports, plans, etc.).",
			TagDepartments, TagWrite),
		entry[GetDepartmentRecordsArgs]("get_department_records",
			"Get records for a department.",
			TagDepartments),
	}
}
