package usaspending

// SearchRequest is the spending-by-award filter body.
type SearchRequest struct {
	Filters Filters  `json:"filters"`
	Fields  []string `json:"fields"`
	Limit   int      `json:"limit"`
	Page    int      `json:"page"`
}

type Filters struct {
	AwardTypeCodes []string     `json:"award_type_codes"`
	TimePeriod     []TimePeriod `json:"time_period"`
}

type TimePeriod struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// SearchResponse is the search endpoint's response envelope.
type SearchResponse struct {
	Results []AwardResult `json:"results"`
}

// AwardResult is one raw award record.
type AwardResult struct {
	Award         *Award         `json:"Award"`
	Recipient     *Recipient     `json:"Recipient"`
	Place         *Place         `json:"place_of_performance"`
	FundingAgency *FundingAgency `json:"funding_agency"`
	CFDA          *CFDA          `json:"cfda"`
	Period        *Period        `json:"period_of_performance"`
}

type Award struct {
	ID              string   `json:"id"`
	FAIN            string   `json:"fain"`
	URI             string   `json:"uri"`
	Description     string   `json:"description"`
	TotalObligation *float64 `json:"total_obligation"`
	DateSigned      string   `json:"date_signed"`
}

type Recipient struct {
	RecipientName string `json:"recipient_name"`
}

type Place struct {
	StateName   string `json:"state_name"`
	CountryName string `json:"country_name"`
}

type FundingAgency struct {
	ToptierAgencyName string `json:"toptier_agency_name"`
	ToptierAgencyCode string `json:"toptier_agency_code"`
}

type CFDA struct {
	ProgramNumber string `json:"program_number"`
	ProgramTitle  string `json:"program_title"`
}

type Period struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}
