// Package commission implements the commission ledger: rate resolution from
// the tier schedule, calculation on order completion, the referral cascade,
// maturation release, payouts, voids and the quarterly tier reset.
//
// Ledger states move forward only:
//
//	pending -> calculated -> available -> paid
//
// and any state before paid may move to void. Every transition is a single
// database transaction guarded on the source state, so batch jobs can be
// re-run and may overlap with order completions.
//
// A completed order without a spend amount stays pending and is flagged for
// review; the sweep skips it until an operator records the spend.
package commission
