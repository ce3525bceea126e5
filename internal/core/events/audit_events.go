package events

import (
	"time"

	"github.com/google/uuid"
)

// Audit event types published by the admin services.
const (
	EventUserAdded          = "user.added"
	EventUserUpdated        = "user.updated"
	EventUserDeactivated    = "user.deactivated"
	EventUserLoggedIn       = "user.logged_in"
	EventResourceRegistered = "resource.registered"
	EventGrantChanged       = "grant.changed"
	EventGrantRevoked       = "grant.revoked"
)

func newAuditEvent(eventType string, data map[string]interface{}) BaseEvent {
	return BaseEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now(),
		Data:      data,
	}
}

func NewUserAddedEvent(userID int64, email string, roles []string, actorID int64) BaseEvent {
	return newAuditEvent(EventUserAdded, map[string]interface{}{
		"user_id":  userID,
		"email":    email,
		"roles":    roles,
		"actor_id": actorID,
	})
}

func NewUserUpdatedEvent(userID int64, actorID int64) BaseEvent {
	return newAuditEvent(EventUserUpdated, map[string]interface{}{
		"user_id":  userID,
		"actor_id": actorID,
	})
}

func NewUserDeactivatedEvent(userID int64, actorID int64) BaseEvent {
	return newAuditEvent(EventUserDeactivated, map[string]interface{}{
		"user_id":  userID,
		"actor_id": actorID,
	})
}

func NewUserLoggedInEvent(userID int64, email string, roles []string) BaseEvent {
	return newAuditEvent(EventUserLoggedIn, map[string]interface{}{
		"user_id": userID,
		"email":   email,
		"roles":   roles,
	})
}

func NewResourceRegisteredEvent(resourceID int64, resourceType, externalID string, actorID int64) BaseEvent {
	return newAuditEvent(EventResourceRegistered, map[string]interface{}{
		"resource_id":   resourceID,
		"resource_type": resourceType,
		"external_id":   externalID,
		"actor_id":      actorID,
	})
}

func NewGrantChangedEvent(userID, resourceID int64, permissionCode string, granted bool, actorID int64) BaseEvent {
	return newAuditEvent(EventGrantChanged, map[string]interface{}{
		"user_id":         userID,
		"resource_id":     resourceID,
		"permission_code": permissionCode,
		"granted":         granted,
		"actor_id":        actorID,
	})
}

func NewGrantRevokedEvent(userID, resourceID int64, permissionCode string, actorID int64) BaseEvent {
	return newAuditEvent(EventGrantRevoked, map[string]interface{}{
		"user_id":         userID,
		"resource_id":     resourceID,
		"permission_code": permissionCode,
		"actor_id":        actorID,
	})
}
