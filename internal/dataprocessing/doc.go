// Package dataprocessing turns the Netflix revenue and usage workbook into a
// yearly revenue series ready for forecasting.
//
// # Data Flow
//
//	Container → Loader → RawMetricTable → Normalizer → CleanedMetricTable → Reconciler → ReconciledRecord → BuildTimeSeries
//
// A Container is either an xlsx workbook (ExcelContainer, via excelize) or a
// Google spreadsheet (SheetsContainer). Both expose sheets as rows of display
// text so the loader does not care where the data came from.
//
// # Usage
//
//	c, err := dataprocessing.OpenExcelFile("Netflix Revenue and Usage Statistics.xlsx")
//	if err != nil {
//	    return err
//	}
//	defer c.Close()
//
//	raw, err := dataprocessing.NewLoader(dataprocessing.DefaultLayout(), logger).Load(ctx, c)
//	cleaned, err := dataprocessing.CleanTables(raw, dataprocessing.NewNormalizer(dataprocessing.DefaultNormalizerOptions()))
//	records, err := dataprocessing.NewReconciler(dataprocessing.JoinInner, logger).Reconcile(cleaned)
//	series, err := dataprocessing.BuildTimeSeries(records)
//
// # Error Handling
//
// Every failure is a *errors.PipelineError whose kind names the stage:
// missing_table, schema_shape, malformed_value, duplicate_key,
// incomplete_period or insufficient_history. Messages carry the table name
// and, where one exists, the offending cell text.
package dataprocessing
