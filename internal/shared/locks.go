package shared

import "fmt"

// SupplierResolveLockKey names the per-account critical section guarding
// supplier search-then-create.
func SupplierResolveLockKey(accountID string) string {
	return fmt.Sprintf("suppliers:resolve:%s", accountID)
}

// DocumentSyncKey builds the idempotency key for syncing one document's supplier.
func DocumentSyncKey(documentID string) string {
	return fmt.Sprintf("documents:%s:supplier-sync", documentID)
}
