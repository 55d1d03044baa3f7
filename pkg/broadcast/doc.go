// Package broadcast provides a generic publish/subscribe primitive for
// fanning events out to in-process listeners.
//
// The billing reconciler publishes entitlement activations here so a waiting
// checkout-return request can be notified immediately instead of discovering
// the change by polling. Slow consumers never block the publisher; their
// messages are dropped and the subscription is torn down.
package broadcast
