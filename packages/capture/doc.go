// Package capture extracts values from HTTP responses.
//
// It supports capturing values from:
//   - Response body (gjson paths, bracket indexes allowed)
//   - Response headers
//   - Response cookies
//   - Response status code and duration
//
// It also validates JSON bodies against a JSON schema.
package capture
