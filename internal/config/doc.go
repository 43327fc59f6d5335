// Package config loads application configuration.
//
// Values are layered, lowest precedence first:
//
//	1. Default()
//	2. a YAML file (REVCAST_CONFIG, ./config.yaml or ./configs/config.yaml)
//	3. REVCAST_* environment variables, e.g.
//
//	REVCAST_SERVER_PORT=8080
//	REVCAST_FORECAST_DEFAULT_YEARS=5
//	REVCAST_SOURCE_WORKBOOK=/data/financials.xlsx
//	REVCAST_SOURCE_SHEETS_REVENUE="Revenue"
//
// The merged result is checked with validator struct tags before use.
package config
