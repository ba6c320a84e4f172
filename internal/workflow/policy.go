package workflow

import (
	"github.com/spec-kit/guest-requests/internal/domain"
	apperrors "github.com/spec-kit/guest-requests/pkg/util/errorutil"
)

var (
	guestKinds     = kindSet(KindCancel, KindAddComment)
	frontDeskKinds = kindSet(KindAssign, KindCancel, KindAddComment)
	agentKinds     = kindSet(
		KindStart, KindComplete, KindBlock, KindUpdateBlock, KindUnblock, KindCancel,
		KindRequestSupervisor, KindCancelSupervisorRequest, KindRequestSLAException, KindAddComment,
	)
	supervisorKinds = kindSet(
		KindAssign, KindApproveSupervisorRequest, KindRejectSupervisorRequest,
		KindGrantSLAException, KindRejectSLAException,
	)
	systemKinds = kindSet(KindAssign, KindUnblock, KindBreach)
)

func kindSet(kinds ...Kind) map[Kind]struct{} {
	set := make(map[Kind]struct{}, len(kinds))
	for _, k := range kinds {
		set[k] = struct{}{}
	}
	return set
}

// Authorize checks that actor may perform kind on ticket. Visibility is the
// caller's concern.
func Authorize(actor domain.Actor, kind Kind, ticket domain.Ticket) error {
	var allowed bool
	switch actor.Type {
	case domain.ActorTypeGuest:
		_, allowed = guestKinds[kind]
		if allowed && (ticket.CreatorID == nil || actor.ID == nil || *ticket.CreatorID != *actor.ID) {
			return apperrors.NewForbidden("guests may only act on their own requests")
		}
	case domain.ActorTypeFrontDesk:
		_, allowed = frontDeskKinds[kind]
	case domain.ActorTypeStaff:
		_, allowed = agentKinds[kind]
		if !allowed && actor.IsSupervisor() {
			_, allowed = supervisorKinds[kind]
		}
	case domain.ActorTypeSystem:
		_, allowed = systemKinds[kind]
	}
	if !allowed {
		return apperrors.NewForbidden(string(actor.Type) + " may not " + string(kind))
	}
	return nil
}

// AuthorizeCreate checks that actor may open a new ticket.
func AuthorizeCreate(actor domain.Actor) error {
	switch actor.Type {
	case domain.ActorTypeGuest, domain.ActorTypeFrontDesk, domain.ActorTypeStaff:
		return nil
	}
	return apperrors.NewForbidden(string(actor.Type) + " may not create tickets")
}

// Available lists the transitions actor could attempt now, judged by role and
// state guard only. Breach is never offered.
func Available(f Facts, actor domain.Actor) []Kind {
	out := make([]Kind, 0, len(AllKinds))
	for _, kind := range AllKinds {
		if kind == KindBreach {
			continue
		}
		if Authorize(actor, kind, f.Ticket) != nil {
			continue
		}
		if Guard(f, kind) != nil {
			continue
		}
		out = append(out, kind)
	}
	return out
}
