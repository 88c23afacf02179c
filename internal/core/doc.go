// Package core converts values between client input and the tables API.
//
// This package holds the parts of the integration that decide what actually
// gets written into a remote cell. It performs no I/O and can be used by the
// HTTP client, the host service, the CSV importer, or tests without
// modification.
//
// # Architecture
//
// The package is organized around four pieces:
//
//   - Column model: [Column] snapshots fetched per operation, with the
//     per-type constraint fields the remote service stores.
//   - Value formatter: [Format] turns a raw value bag keyed by column id into
//     an API-ready payload, validating every value against its column.
//   - Row projection: [Project] reshapes a raw row into an object keyed by
//     column title, for output to humans and automation.
//   - Locator resolver: [Resolve] normalizes ids, numeric strings and
//     structured locators into one positive integer id.
//
// # Formatting
//
// Each column type is handled by one variant registered in a closed table:
//
//	out, err := core.Format(map[string]any{
//	    "12": "  hello ",
//	    "13": "42.456",
//	}, columns, core.DefaultFormatOptions())
//	// out["13"] == 42.46 when column 13 has numberDecimals = 2
//
// Keys whose value is nil or the empty string are treated as not supplied
// and never appear in the output.
//
// # Error Handling
//
// Every failure is a [*Error] carrying an [ErrorKind]. Local failures from
// the formatter and resolver are always [KindValidation]. HTTP failures are
// labelled by [Classify]:
//
//	400, 422      validation
//	401           auth
//	403           permission
//	404           not_found
//	409           conflict
//	429           rate_limit   (retryable)
//	500           server
//	502, 503, 504 unavailable  (retryable)
//	anything else unknown
//
// Use errors.Is with the sentinel values ([ErrValidation], [ErrNotFound], ...)
// to branch on kind.
package core
