package catalog

type GetUpcomingEventsArgs struct {
	Days      float64 `json:"days,omitempty" jsonschema_description:"Number of days ahead to look (default: 30)"`
	EventType string  `json:"eventType,omitempty" jsonschema:"enum=SUNDAY_SERVICE,enum=MIDWEEK_SERVICE,enum=PRAYER_MEETING,enum=BIBLE_STUDY,enum=YOUTH_SERVICE,enum=CHILDREN_SERVICE,enum=SPECIAL_EVENT,enum=ALL" jsonschema_description:"Filter by event type (default: ALL)"`
}

type CreateEventArgs struct {
	Name        string `json:"name" jsonschema_description:"Event name"`
	Type        string `json:"type" jsonschema:"enum=SUNDAY_SERVICE,enum=MIDWEEK_SERVICE,enum=PRAYER_MEETING,enum=BIBLE_STUDY,enum=YOUTH_SERVICE,enum=CHILDREN_SERVICE,enum=SPECIAL_EVENT,enum=CONFERENCE,enum=RETREAT,enum=OUTREACH,enum=OTHER"`
	Date        string `json:"date" jsonschema_description:"Event date (ISO format)"`
	StartTime   string `json:"startTime,omitempty" jsonschema_description:"Start time (HH:MM format)"`
	EndTime     string `json:"endTime,omitempty" jsonschema_description:"End time (HH:MM format)"`
	Location    string `json:"location,omitempty"`
	Description string `json:"description,omitempty"`
}

type RecordAttendanceArgs struct {
	EventID   string   `json:"eventId" jsonschema_description:"Event ID"`
	MemberIDs []string `json:"memberIds" jsonschema_description:"Array of member IDs who attended"`
	Notes     string   `json:"notes,omitempty" jsonschema_description:"Optional notes about attendance"`
}

type GetAttendanceReportArgs struct {
	EventID   string `json:"eventId,omitempty" jsonschema_description:"Specific event ID (optional - leave empty for overall stats)"`
	StartDate string `json:"startDate,omitempty" jsonschema_description:"Start date for report (ISO format)"`
	EndDate   string `json:"endDate,omitempty" jsonschema_description:"End date for report (ISO format)"`
	GroupBy   string `json:"groupBy,omitempty" jsonschema:"enum=event,enum=member,enum=date,enum=event_type" jsonschema_description:"How to group the attendance data"`
}

type GetMemberAttendanceHistoryArgs struct {
	MemberID  string  `json:"memberId" jsonschema_description:"Member ID"`
	StartDate string  `json:"startDate,omitempty" jsonschema_description:"Start date (ISO format)"`
	EndDate   string  `json:"endDate,omitempty" jsonschema_description:"End date (ISO format)"`
	Limit     float64 `json:"limit,omitempty" jsonschema_description:"Max records to return (default: 50)"`
}

func attendanceTools() []toolEntry {
	return []toolEntry{
		entry[GetUpcomingEventsArgs]("get_upcoming_events",
			"Get list of upcoming church events and services.",
			TagAttendance),
		entry[CreateEventArgs]("create_event",
			"Create a new church event or service.",
			TagAttendance, TagWrite),
		entry[RecordAttendanceArgs]("record_attendance",
			"Record attendance for a member at an event. Can record multiple members at once.",
			TagAttendance, TagWrite),
		entry[GetAttendanceReportArgs]("get_attendance_report",
			"Get attendance statistics and reports for events. Shows attendance trends, most active members, and event participation rates.",
			TagAttendance),
		entry[GetMemberAttendanceHistoryArgs]("get_member_attendance_history",
			"Get attendance history for a specific member showing all events they attended.",
			TagAttendance),
	}
}
