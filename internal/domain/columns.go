package domain

// warehouse column names for mapped records, in table order
const (
	ColumnLeadToken             = "PnM_Parameter"
	ColumnDate                  = "Date"
	ColumnFirstUserCampaign     = "First_User_Campaign"
	ColumnFirstUserCampaignID   = "First_User_Campaign_ID"
	ColumnSessions              = "Sessions"
	ColumnSourceMedium          = "Source_Medium"
	ColumnSessionCampaign       = "Session_Campaign"
	ColumnSessionCampaignID     = "Session_Campaign_ID"
	ColumnEngagedSessions       = "Engaged_Sessions"
	ColumnKeyword               = "Keyword"
	ColumnOperatingSystem       = "Operating_System"
	ColumnMobile                = "Mobile"
	ColumnFinalSource           = "Final_Source"
	ColumnFinalSourceCampaignID = "Final_Source_Campaign_ID"
	ColumnStatus                = "Status"
	ColumnShiftingType          = "Shifting_Type"
	ColumnMonth                 = "Month"
	ColumnYear                  = "Year"
)

var BaseColumns = []string{
	ColumnLeadToken,
	ColumnDate,
	ColumnFirstUserCampaign,
	ColumnFirstUserCampaignID,
	ColumnSessions,
	ColumnSourceMedium,
	ColumnSessionCampaign,
	ColumnSessionCampaignID,
	ColumnEngagedSessions,
	ColumnKeyword,
	ColumnOperatingSystem,
	ColumnMobile,
	ColumnFinalSource,
	ColumnFinalSourceCampaignID,
	ColumnStatus,
	ColumnShiftingType,
	ColumnMonth,
	ColumnYear,
}

// fields the merge engine needs to build a CompositeKey
var KeyColumns = []string{ColumnMobile, ColumnMonth, ColumnYear}
