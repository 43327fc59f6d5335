package config

// Sheet names of the reference workbook. Excel truncates sheet names to 31
// characters, which is why several end mid-word or with a space.
const (
	DefaultRevenueSheet      = "Netflix annual revenue 2011 to "
	DefaultSubscribersSheet  = "Netflix annual subscribers 2011"
	DefaultContentSpendSheet = "Netflix annual content spend ($"
	DefaultNetIncomeSheet    = "Netflix annual net incomeloss ("
)

const (
	DefaultWorkbook   = "Netflix Revenue and Usage Statistics.xlsx"
	DefaultExportFile = "netflix_forecast.csv"
	DefaultRecordFile = "netflix_financials.csv"
)
