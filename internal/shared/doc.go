// Package shared holds code used across layers that belongs to no single
// domain package.
//
// The testutil subpackage builds xlsx fixtures in memory (BuildWorkbook,
// WriteWorkbook, StandardSheets) and captures slog output for assertions
// (NewTestLogger, AssertLogContains). It is imported only from tests.
package shared
