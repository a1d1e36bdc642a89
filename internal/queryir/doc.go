// Package queryir is a small query representation for searching recorded
// resolution traces.
//
// Callers describe what they want (a source table, a filter, an ordering)
// and a backend compiles it. internal/querysql is the only backend; it
// targets the SQLite schema of internal/store.
//
//	[cli --where flags] → [queryir.Select] → [querysql] → SQL + params
//
// Filters are built from Equals, Compare and And. Values are ir.IRValue,
// so floats cannot appear and every comparison is exact.
//
// Every query has a total order. Select.OrderBy may be empty; backends
// then order by the source's logical sequence column with a binary
// tiebreaker, so two runs over the same log return rows in the same order.
//
// Validate checks fields against the known columns of each source before
// anything reaches SQL. Field names are never taken from user input
// without passing Validate.
package queryir
