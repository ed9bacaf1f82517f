package app

import (
	"advisory/api/internal/rbac"
	"advisory/api/internal/session"
	"advisory/api/internal/store"
)

// authorize gates an operation on the caller's role. Ownership is not checked
// here; it is part of the store predicates so a foreign id matches nothing.
func authorize(sess *session.Session, action rbac.Action) error {
	if sess == nil {
		return errUnauthenticated()
	}
	if !rbac.Can(sess.User.Role, action) {
		return errForbidden()
	}
	return nil
}

// readScope limits requesters to their own questions; responders see all.
func readScope(sess *session.Session) store.ListScope {
	if sess.User.Role.ScopedToOwner() {
		return store.ListScope{OwnerID: sess.User.ID}
	}
	return store.ListScope{}
}
