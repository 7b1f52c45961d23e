// Package types defines the domain types shared across pledgewatch: the
// exact-decimal Amount, the on-chain Pledge/Admin snapshot values, Transfer
// events, stored donation records, and standard error values.
package types
