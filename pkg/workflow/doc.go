// Package workflow implements the maker-checker approval process for rule
// governance.
//
// Every mutation to rules, rulesets, dictionaries, and deployments goes
// through a change request. A maker submits the request, a different user
// with checker rights approves or rejects it. Approval applies the change to
// the version store and records an audit entry; if either step fails, the
// applied change is compensated and the request returns to PENDING so the
// checker can retry.
//
// Self-approval is rejected regardless of role: an ADMIN who submits a
// change still needs a second pair of eyes.
package workflow
