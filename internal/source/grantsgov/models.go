package grantsgov

// APIResponse is the search endpoint's response envelope.
type APIResponse struct {
	Opportunities []Opportunity `json:"opportunities"`
}

// Opportunity is one raw record as returned by the opportunities API.
type Opportunity struct {
	OpportunityID          string   `json:"opportunityId"`
	OpportunityNumber      string   `json:"opportunityNumber"`
	OpportunityTitle       string   `json:"opportunityTitle"`
	OpportunityDescription string   `json:"opportunityDescription"`
	AgencyCode             string   `json:"agencyCode"`
	AgencyName             string   `json:"agencyName"`
	CFDANumbers            string   `json:"cfdaNumbers"`
	PostedDate             string   `json:"postedDate"`
	CloseDate              string   `json:"closeDate"`
	ArchiveDate            string   `json:"archiveDate"`
	AwardCeiling           float64  `json:"awardCeiling"`
	AwardFloor             float64  `json:"awardFloor"`
	EstimatedTotalFunding  *float64 `json:"estimatedTotalProgramFunding"`
	CostSharing            string   `json:"costSharingOrMatchingRequirement"`
	EligibleApplicants     []string `json:"eligibleApplicants"`
	FundingCategories      []string `json:"fundingActivityCategories"`
	OpportunityURL         string   `json:"opportunityURL"`
}
