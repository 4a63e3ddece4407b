// Package errors provides structured, actionable error messages for
// the Parley CLI.
//
// Each error carries a stable code, a plain-language explanation, a
// fix suggestion, and a documentation link. Config errors can point at
// the offending line of parley.yaml.
//
// # Error Categories
//
// Errors are organized into categories:
//   - session: session lifecycle errors (unknown session, closed session)
//   - protocol: wire protocol errors (invalid messages, handshake failures)
//   - config: parley.yaml errors (malformed file, bad values)
//   - transfer: file spool errors
//   - cli: command-line errors (missing project, bad arguments)
//
// # Usage
//
//	err := errors.New("E040").
//	    WithLocationFromYAML("parley.yaml", yamlErr).
//	    WithSuggestion("Check the indentation around the reported line")
//
//	fmt.Println(err.Format())
//	// Output:
//	// ERROR E040: Invalid parley.yaml
//	//
//	//   parley.yaml:7
//	//
//	//      5 | server:
//	//      6 |   host: localhost
//	//   >  7 |   port: not-a-number
//	//      8 |
//	//
//	//   Hint: Check the indentation around the reported line
//	//
//	//   Learn more: https://parley.dev/docs/errors/E040
package errors
