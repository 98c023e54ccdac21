// Package crmsync defines the contract for pushing confirmed reconciliation
// matches to the external CRM that is the system of record, and for reading
// payments and expectations back from it.
//
// The CRM is reached through a single action dispatch call. Adapters live in
// the infrastructure layer; this package holds the ports, the wire-independent
// record shapes, and the sync and status propagation state machines:
//
//	staged -> submitted -> confirmed | rate_limited | failed
//	confirmed -> pending_status_update -> propagated | degraded
//
// Nothing moves back from failed or rate_limited automatically; a retry is an
// explicit re-run over the still-unsynced set.
package crmsync
