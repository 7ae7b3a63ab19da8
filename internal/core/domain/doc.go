// Package domain contains the core business entities for accesskeeper:
// identity scopes, account allow-lists, and the domain error taxonomy.
// It has no dependencies on storage or transport concerns.
package domain
