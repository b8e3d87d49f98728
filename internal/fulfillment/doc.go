// Package fulfillment places orders.
//
// Service.PlaceOrder is the single unit of work of the point-of-sale back
// end. Inside one store transaction it:
//
//  1. validates and prices the cart
//  2. rejects unknown menu item ids (read only, before any write)
//  3. inserts the order header with status "paid"
//  4. for each cart line, in order: inserts the line, allocates stock FIFO and
//     appends one "sale" ledger entry per consumed batch
//  5. inserts the payment
//  6. renders the receipt from the persisted lines and stores it
//  7. writes an "order.placed" outbox event
//
// and then commits. Any failure rolls the whole transaction back, so a failed
// checkout leaves batches, ledger, orders and outbox exactly as they were.
// Errors are *domain.Error values; only TRANSACTION_FAILURE is retryable, and
// the core never retries on its own.
package fulfillment
