// Package xenbridge bridges an order management platform to Xendit's
// hosted invoice API. It creates invoices for orders, receives the
// provider's settlement webhooks, and reconciles each notification
// against the order store: verify the callback token, locate the order,
// move it into ArrangingPayment, and record the settled payment.
//
// # Architecture
//
// The payment flow follows this pattern:
//
//	┌─────────────────┐    ┌─────────────────┐    ┌─────────────────┐
//	│                 │    │                 │    │                 │
//	│  Order Platform │◄──►│    XenBridge    │◄──►│     Xendit      │
//	│  (order store)  │    │   (this repo)   │    │ (hosted invoice)│
//	│                 │    │                 │    │                 │
//	└─────────────────┘    └─────────────────┘    └─────────────────┘
//
// The xendit package holds the provider client and the webhook
// reconciler; the order package defines the order store contract plus a
// SQLite reference implementation; handler and router expose the HTTP
// surface.
//
// Every webhook notification ends in exactly one terminal state
// (payment recorded, replay skipped, rejected, or acknowledged no-op),
// and the HTTP status returned to the provider follows from that state
// alone. Notifications that can never succeed, like settlements for
// cancelled orders, are acknowledged with 200 so the provider stops
// retrying them.
package xenbridge
