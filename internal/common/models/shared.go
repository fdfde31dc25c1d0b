package models

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContextKey string

const (
	TenantIDKey ContextKey = "tenant_id"
	ActorIDKey  ContextKey = "actor_id"
)

// TenantFromContext returns the tenant id set by the auth middleware
func TenantFromContext(ctx context.Context) string {
	tenantID, _ := ctx.Value(TenantIDKey).(string)
	return tenantID
}

// ActorFromContext returns the authenticated user id, or "system" outside a request
func ActorFromContext(ctx context.Context) string {
	if actorID, ok := ctx.Value(ActorIDKey).(string); ok && actorID != "" {
		return actorID
	}
	return "system"
}

// WithTenant scopes ctx to a tenant and actor
func WithTenant(ctx context.Context, tenantID, actorID string) context.Context {
	ctx = context.WithValue(ctx, TenantIDKey, tenantID)
	return context.WithValue(ctx, ActorIDKey, actorID)
}

type AuditAction string

const (
	AuditActionCreate   AuditAction = "CREATE"
	AuditActionUpdate   AuditAction = "UPDATE"
	AuditActionDelete   AuditAction = "DELETE"
	AuditActionMigrate  AuditAction = "MIGRATE"
	AuditActionAssign   AuditAction = "ASSIGN"
	AuditActionOnboard  AuditAction = "ONBOARD"
	AuditActionMaintain AuditAction = "MAINTENANCE"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	TenantID  string             `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	Action    AuditAction        `bson:"action" json:"action"`
	Module    string             `bson:"module" json:"module"`                       // The feature the record belongs to
	RecordID  string             `bson:"record_id" json:"record_id"`                 // The ID of the record being modified
	ActorID   string             `bson:"actor_id" json:"actor_id"`                   // User ID who performed the action
	Changes   map[string]Change  `bson:"changes,omitempty" json:"changes,omitempty"` // For updates: field -> {old, new}
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

type Log struct {
	ApplicationId string    `bson:"application_id" json:"application_id"`
	Message       string    `bson:"message" json:"message"`
	IpAddress     string    `bson:"ip_address" json:"ip_address"`
	TenantId      string    `bson:"tenant_id,omitempty" json:"tenant_id,omitempty"`
	Caller        string    `bson:"caller,omitempty" json:"caller,omitempty"`
	LogLevelId    int       `bson:"log_level_id" json:"log_level_id"`
	CreatedOnUtc  time.Time `bson:"created_on_utc" json:"created_on_utc"`
}
