// Package confloader loads goGuard configuration for binaries.
//
// Sources are applied in order, later ones winning: built-in defaults, a
// YAML file, environment variables, then an explicit override map (flags).
// Environment keys take the form GOGUARD_<SECTION>__<KEY>, for example
// GOGUARD_JWT__ACCESS_TTL=10m or GOGUARD_SESSION__MAX_SESSIONS=3.
package confloader
