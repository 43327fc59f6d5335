// Package exporter writes and reads the CSV artifacts of a forecast run.
//
// The forecast artifact has a single header row
//
//	Timestamp,PointEstimate,LowerBound,UpperBound
//
// followed by one row per forecast point, dates in ISO form. WriteForecast
// and ReadForecast round-trip a forecast within the configured precision.
// WriteReconciled exports the merged yearly dataset.
//
// CSVWriter persists both artifacts under the reports directory:
//
//	w := exporter.NewCSVWriter(paths.ReportsDir, exporter.DefaultFormatOptions(), logger)
//	path, err := w.WriteForecastFile("netflix_forecast.csv", run.Forecast)
package exporter
