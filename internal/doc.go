// Package internal holds small helpers shared by goGuard packages that are
// not part of the public API.
//
// # What this package must NOT do
//
//   - Import goGuard or any public sibling package.
//   - Be imported outside the goGuard module.
package internal
