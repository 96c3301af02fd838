// Package engine evaluates transactions against deployed rulesets.
//
// Evaluation has three layers. The condition evaluator decides a single leaf
// predicate (field, operator, value, data type) against a transaction value.
// The rule evaluator walks a rule's condition tree, short-circuiting AND on
// the first false child and OR on the first true child, and yields the
// rule's action when the tree is satisfied. The ruleset engine fetches the
// ruleset version deployed to the requested environment, evaluates its
// active rules in priority order, and combines matched actions into a final
// Decision under the ruleset's policy (first-block-wins by default).
//
// When the ruleset binds a data dictionary deployed to the same environment,
// the transaction is validated against the dictionary before any rule runs
// and the dictionary's field defaults fill in absent transaction fields.
//
// Evaluation is read-only against the version store; any
// number of evaluations may run concurrently. A failure inside one rule is
// recorded as a degraded entry and never aborts the decision for the
// transaction; failures on the mutation path elsewhere in the system are
// handled strictly. This asymmetry is deliberate.
package engine
