// Package credentials verifies usernames and passwords for goGuard.Engine.Login.
//
// New hashes are Argon2id in PHC form. Verification also accepts bcrypt
// hashes so accounts migrated from other systems keep working until they
// are rehashed.
package credentials
