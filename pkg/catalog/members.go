package catalog

type SearchMembersArgs struct {
	Query          string  `json:"query,omitempty" jsonschema_description:"Search term (name, email, or phone)"`
	Status         string  `json:"status,omitempty" jsonschema:"enum=ACTIVE,enum=INACTIVE,enum=TRANSFERRED,enum=ALL" jsonschema_description:"Filter by membership status (default: ALL)"`
	MembershipType string  `json:"membershipType,omitempty" jsonschema:"enum=VISITOR,enum=REGULAR,enum=BAPTIZED,enum=PARTNER,enum=LEADERSHIP,enum=ALL" jsonschema_description:"Filter by membership type (default: ALL)"`
	Limit          float64 `json:"limit,omitempty" jsonschema_description:"Maximum results to return (default: 10)"`
}

type GetMemberDetailsArgs struct {
	MemberID string `json:"memberId" jsonschema_description:"Member ID"`
}

type CreateMemberArgs struct {
	FirstName        string `json:"firstName" jsonschema_description:"First name"`
	LastName         string `json:"lastName" jsonschema_description:"Last name"`
	Email            string `json:"email,omitempty" jsonschema_description:"Email address"`
	Phone            string `json:"phone,omitempty" jsonschema_description:"Phone number"`
	DateOfBirth      string `json:"dateOfBirth,omitempty" jsonschema_description:"Date of birth (ISO format)"`
	Gender           string `json:"gender,omitempty" jsonschema:"enum=MALE,enum=FEMALE,enum=OTHER"`
	Address          string `json:"address,omitempty" jsonschema_description:"Street address"`
	City             string `json:"city,omitempty"`
	State            string `json:"state,omitempty"`
	ZipCode          string `json:"zipCode,omitempty"`
	MembershipType   string `json:"membershipType,omitempty" jsonschema:"enum=VISITOR,enum=REGULAR,enum=BAPTIZED,enum=PARTNER,enum=LEADERSHIP" jsonschema_description:"Type of membership (default: REGULAR)"`
	EmergencyContact string `json:"emergencyContact,omitempty"`
	EmergencyPhone   string `json:"emergencyPhone,omitempty"`
	Notes            string `json:"notes,omitempty"`
}

type UpdateMemberArgs struct {
	MemberID string                 `json:"memberId" jsonschema_description:"Member ID to update"`
	Updates  map[string]interface{} `json:"updates" jsonschema_description:"Fields to update (only include fields that need updating)"`
}

type GetMemberStatisticsArgs struct {
	Period string `json:"period,omitempty" jsonschema:"enum=week,enum=month,enum=quarter,enum=year,enum=all_time" jsonschema_description:"Time period for statistics (default: month)"`
}

func memberTools() []toolEntry {
	return []toolEntry{
		entry[SearchMembersArgs]("search_members",
			"Search church members by name, email, phone, or membership status. Use for finding member information, checking membership status, or getting member lists.",
			TagMembers),
		entry[GetMemberDetailsArgs]("get_member_details",
			"Get complete profile information for a specific member including contact details, membership info, attendance history, and giving records.",
			TagMembers),
		entry[CreateMemberArgs]("create_member",
			"Create a new member profile with contact information and membership details.",
			TagMembers, TagWrite),
		entry[UpdateMemberArgs]("update_member",
			"Update an existing member's profile information.",
			TagMembers, TagWrite),
		entry[GetMemberStatisticsArgs]("get_member_statistics",
			"Get statistical overview of church membership including total members, new members this month, membership breakdown by type, age demographics, etc.",
			TagMembers),
	}
}
