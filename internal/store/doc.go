// Package store provides durable storage for the point-of-sale back end.
//
// One Store fronts either SQLite (the default) or PostgreSQL. Repositories in
// the catalog, inventory, order, receipt and outbox packages write their SQL
// once with '?' placeholders against a Querier; Store and Tx rebind them for
// the open dialect.
//
// # Transactions
//
// WithTx runs a function inside one serializable transaction. On SQLite the
// pool holds a single connection and every BEGIN is IMMEDIATE, so a checkout's
// read-then-update of batch quantities never interleaves with another writer.
// On PostgreSQL the isolation level is SERIALIZABLE and the allocator locks
// candidate rows with FOR UPDATE.
//
// Every failure that escapes WithTx is a *domain.Error. Driver errors, commit
// failures and context deadlines become TRANSACTION_FAILURE; Cause names the
// underlying reason for logs and metrics.
//
// # Schema
//
//   - menu_item, inventory_batch (quantity CHECK >= 0)
//   - orders (checkout_id UNIQUE), order_item, payment, order_receipt
//   - inventory_ledger: append-only, UPDATE and DELETE rejected by triggers
//   - outbox: events written with the order, relayed after commit
//
// # Database Configuration (SQLite)
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//   - _txlock=immediate: Writers serialize at BEGIN
//
// Money is stored as integer minor units. Timestamps are stored as fixed-width
// UTC text (see TimeLayout) so they order lexically on both engines.
package store
