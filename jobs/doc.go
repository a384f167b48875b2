// Package jobs runs periodic maintenance tasks such as directory cache
// warm-up and identifier pool refill.
package jobs
