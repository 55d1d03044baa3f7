// Package billing connects the payment provider to the entitlement ledger.
//
// The Provider interface hides the processor behind three operations:
// opening hosted checkouts, verifying and normalizing webhook events, and
// fetching settled checkout sessions. PaddleProvider is the production
// implementation.
//
// The Reconciler is the only writer of entitlement state on the billing
// path. Every webhook handler recomputes the target record from the event
// and current state instead of applying increments, which together with a
// bounded set of recently seen event ids makes duplicate and out-of-order
// deliveries converge on the same row.
//
// Checkout and ActivationWaiter cover the two client-facing halves of a
// purchase: starting the hosted session and waiting for the resulting
// entitlement to appear after the user returns from it.
package billing
