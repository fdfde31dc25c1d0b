package main

import (
	"context"
	"log"
	"time"

	"twol-crm/internal/cache"
	common_models "twol-crm/internal/common/models"
	"twol-crm/internal/config"
	"twol-crm/internal/database"
	"twol-crm/internal/features/audit"
	"twol-crm/internal/features/organization"
	"twol-crm/internal/features/permissionset"
	"twol-crm/internal/features/seat"
	"twol-crm/internal/features/system"
	"twol-crm/internal/logger"
	"twol-crm/pkg/utils"

	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	demoTenantName = "T-WOL Demo"
	demoOwnerID    = "demo-owner"
	demoRepID      = "demo-sales-rep"
)

type demoSet struct {
	name   string
	grants permissionset.FlatRecord
}

var demoSets = []demoSet{
	{
		name: "Sales Representative",
		grants: permissionset.FlatRecord{
			"crm_contacts_view":       permissionset.TierTeamOnly,
			"crm_contacts_edit":       permissionset.TierOwnedOnly,
			"crm_deals_view":          permissionset.TierTeamOnly,
			"crm_deals_edit":          permissionset.TierOwnedOnly,
			"crm_tasks_view":          permissionset.TierOwnedOnly,
			"crm_tasks_edit":          permissionset.TierOwnedOnly,
			"sales_sales_access":      true,
			"sales_quotes_view":       permissionset.TierTeamOnly,
			"sales_quotes_edit":       permissionset.TierOwnedOnly,
			"sales_meetings_schedule": true,
		},
	},
	{
		name: "Marketing Viewer",
		grants: permissionset.FlatRecord{
			"crm_contacts_view":          permissionset.TierEverything,
			"marketing_marketing_access": true,
			"marketing_campaigns_view":   permissionset.TierEverything,
			"marketing_emails_view":      permissionset.TierEverything,
			"reports_reports_access":     true,
			"reports_dashboards_view":    permissionset.TierEverything,
		},
	},
}

func main() {
	app := fx.New(
		fx.Provide(
			config.LoadConfig,
			database.NewDatabase,
			database.NewPostgres,
			logger.NewLogger,
			cache.NewClient,
			system.NewHub,

			audit.NewAuditRepository,
			permissionset.NewPermissionSetRepository,
			seat.NewSeatRepository,
			organization.NewOrganizationRepository,
			seat.NewEffectiveCache,

			audit.NewAuditService,
			permissionset.NewPermissionSetService,
			organization.NewOrganizationService,

			func(r seat.SeatRepository) permissionset.SeatStore { return r },
			func(p *database.Postgres) permissionset.Transactor { return p },
			func(h *system.Hub) permissionset.EventPublisher { return h },
			func(c *seat.EffectiveCache) permissionset.PermissionCache { return c },
		),
		fx.NopLogger,
		fx.Invoke(seed),
	)

	// Run blocks until seed triggers shutdown
	app.Run()
}

func seed(
	lc fx.Lifecycle,
	shutdowner fx.Shutdowner,
	cfg *config.Config,
	orgs organization.OrganizationService,
	sets permissionset.PermissionSetService,
	seats seat.SeatRepository,
	logger *zap.Logger,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				code := 0
				if err := runSeed(cfg, orgs, sets, seats, logger); err != nil {
					logger.Error("seeding failed", zap.Error(err))
					code = 1
				}
				_ = shutdowner.Shutdown(fx.ExitCode(code))
			}()
			return nil
		},
	})
}

func runSeed(
	cfg *config.Config,
	orgs organization.OrganizationService,
	sets permissionset.PermissionSetService,
	seats seat.SeatRepository,
	logger *zap.Logger,
) error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	logger.Info("starting database seeding")

	onboarding, err := orgs.Onboard(ctx, demoTenantName, demoOwnerID)
	if err != nil {
		return err
	}
	tenantID := onboarding.Organization.ID
	ctx = common_models.WithTenant(ctx, tenantID, demoOwnerID)

	schema := permissionset.DefaultSchema()
	var repSetID string
	for _, ds := range demoSets {
		nested := permissionset.Unflatten(schema, withRestrictiveDefaults(schema, ds.grants))
		id, err := sets.CreatePermissionSet(ctx, tenantID, ds.name, permissionset.Custom(nested))
		if err != nil {
			return err
		}
		if repSetID == "" {
			repSetID = id
		}
		logger.Info("created permission set", zap.String("name", ds.name), zap.String("id", id))
	}

	now := time.Now().UTC()
	rep := &seat.Seat{
		ID:              uuid.NewString(),
		TenantID:        tenantID,
		UserID:          demoRepID,
		PermissionSetID: repSetID,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := seats.Create(ctx, rep); err != nil {
		return err
	}

	utils.SetSecret(cfg.JWTSecret)
	token, err := utils.GenerateToken(demoOwnerID, tenantID, 24*time.Hour)
	if err != nil {
		return err
	}

	log.Printf("Seeded tenant %s (%s)", onboarding.Organization.Name, tenantID)
	log.Printf("Owner token (24h): %s", token)
	return nil
}

// withRestrictiveDefaults fills every column grants leaves out.
func withRestrictiveDefaults(schema *permissionset.Schema, grants permissionset.FlatRecord) permissionset.FlatRecord {
	flat := make(permissionset.FlatRecord, schema.Len())
	for leaf := range schema.Leaves() {
		flat[leaf.Column()] = leaf.Restrictive()
	}
	for col, v := range grants {
		if _, ok := schema.Leaf(col); ok {
			flat[col] = v
		}
	}
	return flat
}
