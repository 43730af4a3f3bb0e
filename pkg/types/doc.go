// Package types defines the configuration, result store interface, domain
// records and standard errors shared by the launcher, the application and
// the storage backends.
package types
