// Package inventory manages stock batches and the append-only inventory ledger.
//
// Every quantity change is paired with a ledger entry in the same transaction:
// receiving a batch writes a +qty "receive" entry, and each batch consumed by a
// sale gets a -qty "sale" entry written by the fulfillment orchestrator. The
// ledger sum per item therefore always equals the remaining batch quantity per
// item; Reconcile checks this.
//
// Allocate implements FIFO consumption. Batches are consumed earliest expiry
// first (no expiry last), then oldest first, then by id.
package inventory
