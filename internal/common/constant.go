package common

// MasterPasswordHeaderName carries the master password on HTTP requests that
// read or mutate vault contents.
const MasterPasswordHeaderName = "X-Master-Password"

// AccountIDContextKey is the gin context key holding the authenticated account id.
const AccountIDContextKey = "account_id"
