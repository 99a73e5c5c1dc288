// Package campaign implements campaign lifecycle management and dispatch.
//
// The service layer contains all business logic for creating, editing,
// and sending email campaigns. Dispatch claims a draft campaign with an
// atomic conditional status update, then sends to the list's subscribed
// recipients in fixed-size concurrent batches with per-recipient failure
// isolation. It depends on repository interfaces defined in this package
// and should never import from the api layer.
package campaign
