// Package domain models the Belgian COVID-19 open-data series and the calendar
// rules every analytic is anchored on.
//
// # Data Source
//
// The public health institute publishes one JSON array per topic at
// https://epistat.sciensano.be/Data. Each element is a flat row:
//
//	COVID19BE_CASES_AGESEX.json  DATE, PROVINCE, REGION, AGEGROUP, SEX, CASES
//	COVID19BE_HOSP.json          DATE, PROVINCE, REGION, TOTAL_IN, TOTAL_IN_ICU, ...
//	COVID19BE_MORT.json          DATE, REGION, AGEGROUP, SEX, DEATHS
//
// Rows are summed per (DATE, PROVINCE) into [Record] values. Rows without a
// DATE carry counts of unknown date and are skipped. Mortality has no
// PROVINCE column, so it has no regional breakdown: [FilterByRegion] passes it
// through unchanged for every province.
//
// # Series
//
// A [Series] maps a calendar day to a [Value], which is either a bare number or
// a record with a total and a province tag. Iteration always re-sorts by date.
// [Series.Fingerprint] hashes the content so caches key on values, not on
// which object happened to hold them.
//
// # Consolidation
//
// The most recent days keep being revised as late reports arrive. Analytics
// anchor on [LastConsolidatedDataDay], which lags [Today] by
// [ConsolidationLagDays].
//
// # Absence
//
// Zero is a valid observation. Missing data is reported through a separate
// boolean, never by returning zero.
package domain
