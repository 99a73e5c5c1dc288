// Package domains implements the custom-domain verification workflow.
//
// A domain is registered with a random verification token, proven via a
// DNS TXT record at _verification.<domain>, and transitions through
// unverified -> verified/failed. Verification is observational over DNS
// state: it never deletes or regenerates the token and is safe to retry.
//
// The service depends on a Repository for persistence and a Resolver for
// DNS; both are interfaces so the workflow is testable without a network
// or a database.
package domains
