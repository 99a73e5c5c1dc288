// Package domain contains the core entity types shared across services,
// repositories, and handlers.
//
// Types here are plain data records with status enums and small helper
// methods. Business rules (status transitions, validation, dispatch logic)
// live in the service packages; persistence lives in repository/postgres.
// This package must not import from either.
package domain
