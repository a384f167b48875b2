// Package access answers authorization questions for authenticated
// principals.
//
// Functional checks ask whether a user holds a permission code. Data checks
// ask whether an actor may act on another user's records and are decided by
// a rego policy over the permissions and role levels of both sides. The
// default policy is DefaultPolicy; callers may supply their own as long as it
// defines data.goguard.access.allow.
package access
