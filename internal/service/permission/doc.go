// Package permission resolves a member's effective permission set: the
// union of the permission strings on every committee position the member
// holds, with admin roles and the full_admin grant implying everything.
package permission
