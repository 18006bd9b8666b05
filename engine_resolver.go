package enrollflow

import (
	"context"
)

// roleDestinations is the strict resolution order. The first source the user
// exists in wins; later sources are never consulted for routing.
var roleDestinations = [...]struct {
	source RoleSource
	dest   Destination
}{
	{RolePlatformAdmin, DestinationAdmin},
	{RoleGateOps, DestinationGate},
	{RoleVenueStaff, DestinationVenue},
	{RoleOrganizerStaff, DestinationOrganizer},
	{RolePromoter, DestinationPromoter},
	{RolePerformer, DestinationPerformer},
}

// resolveDestination maps a user to exactly one landing destination. Lookup
// failures on one source skip to the next source rather than failing the
// whole resolution, so a degraded directory can only demote a user toward
// DestinationHome, never block finalization.
func (e *Engine) resolveDestination(ctx context.Context, runID, userID string) Destination {
	scope := auditScope{runID: runID, userID: userID}

	if dest, ok := resolveReturnTo(ctx); ok {
		e.metricInc(MetricResolveOverride)
		e.emitAudit(ctx, auditEventRoleResolve, true, scope, nil, func() map[string]string {
			return map[string]string{
				"destination": string(dest),
				"override":    "return_to",
			}
		})
		return dest
	}

	resolved := DestinationHome

	for _, rd := range roleDestinations {
		lctx, cancel := context.WithTimeout(ctx, e.config.Resolver.LookupTimeout)
		exists, err := e.roles.ExistsIn(lctx, rd.source, userID)
		cancel()

		if err != nil {
			e.metricInc(MetricResolveLookupError)
			continue
		}
		if exists {
			resolved = rd.dest
			break
		}
	}

	dest := resolved
	e.emitAudit(ctx, auditEventRoleResolve, true, scope, nil, func() map[string]string {
		return map[string]string{"destination": string(dest)}
	})

	return resolved
}

// resolveReturnTo honors a caller-requested destination verbatim when it
// names one of the recognized staff surfaces, bypassing the affiliation walk
// entirely. Requests for the public surface or for unrecognized routes fall
// through to priority resolution.
func resolveReturnTo(ctx context.Context) (Destination, bool) {
	requested, ok := returnToFromContext(ctx)
	if !ok {
		return "", false
	}

	for _, rd := range roleDestinations {
		if rd.dest == requested {
			return requested, true
		}
	}

	return "", false
}
