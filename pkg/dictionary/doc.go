// Package dictionary defines data dictionaries: the catalog of transaction
// fields a domain's rules may reference, each with a declared data type,
// nullability, optional default, and validation rules.
//
// The engine consults the deployed dictionary for field defaults when a
// transaction omits a field. ValidateTransaction applies the per-field
// validation rules (regex, range, length, and CEL-based custom expressions)
// to an incoming transaction before evaluation.
package dictionary
