package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/frahmantamala/knowledge-gateway/internal/permission"
	permissionPostgres "github.com/frahmantamala/knowledge-gateway/internal/permission/postgres"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestPermissionPostgres(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Permission Postgres Suite")
}

// SQLite-compatible models for testing
type SQLiteResource struct {
	ID           int64     `gorm:"primaryKey"`
	ResourceType string    `gorm:"column:resource_type;uniqueIndex:uq_resource"`
	ExternalID   string    `gorm:"column:external_id;uniqueIndex:uq_resource"`
	Name         string    `gorm:"column:name"`
	ParentID     *int64    `gorm:"column:parent_id"`
	CreatedAt    time.Time `gorm:"column:created_at"`
}

func (SQLiteResource) TableName() string { return "resources" }

type SQLiteGrant struct {
	ID             int64      `gorm:"primaryKey"`
	UserID         int64      `gorm:"column:user_id;uniqueIndex:uq_user_resource_permission"`
	ResourceID     int64      `gorm:"column:resource_id;uniqueIndex:uq_user_resource_permission"`
	PermissionCode string     `gorm:"column:permission_code;uniqueIndex:uq_user_resource_permission"`
	Granted        bool       `gorm:"column:granted;default:true"`
	GrantedBy      *int64     `gorm:"column:granted_by"`
	ExpiresAt      *time.Time `gorm:"column:expires_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
}

func (SQLiteGrant) TableName() string { return "grants" }

var _ = Describe("Permission PostgreSQL Repository", func() {
	var (
		db   *gorm.DB
		repo permission.Repository
		ctx  context.Context
	)

	BeforeEach(func() {
		var err error
		db, err = gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
			Logger: logger.Default.LogMode(logger.Silent),
		})
		Expect(err).NotTo(HaveOccurred())

		err = db.AutoMigrate(&SQLiteResource{}, &SQLiteGrant{})
		Expect(err).NotTo(HaveOccurred())

		repo = permissionPostgres.NewRepository(db)
		ctx = context.Background()
	})

	Describe("CreateResource and Find", func() {
		It("should round-trip a resource by (type, external_id)", func() {
			res := &permission.Resource{Type: permission.ResourceTypeFolder, ExternalID: "F1", Name: "Policies"}

			Expect(repo.CreateResource(ctx, res)).NotTo(HaveOccurred())
			Expect(res.ID).To(BeNumerically(">", 0))

			found, err := repo.Find(ctx, permission.ResourceTypeFolder, "F1")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).NotTo(BeNil())
			Expect(found.ID).To(Equal(res.ID))
			Expect(found.Name).To(Equal("Policies"))
		})

		It("should return nil for an unknown resource", func() {
			found, err := repo.Find(ctx, permission.ResourceTypeFolder, "missing")
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeNil())
		})

		It("should allow the same external id under a different type", func() {
			a := &permission.Resource{Type: permission.ResourceTypeFolder, ExternalID: "X"}
			Expect(repo.CreateResource(ctx, a)).NotTo(HaveOccurred())

			b := &permission.Resource{Type: permission.ResourceTypeNotebook, ExternalID: "X"}
			Expect(repo.CreateResource(ctx, b)).NotTo(HaveOccurred())
		})

		It("should enforce uniqueness of the (type, external_id) pair", func() {
			a := &permission.Resource{Type: permission.ResourceTypeFolder, ExternalID: "X"}
			Expect(repo.CreateResource(ctx, a)).NotTo(HaveOccurred())

			dup := &permission.Resource{Type: permission.ResourceTypeFolder, ExternalID: "X"}
			Expect(repo.CreateResource(ctx, dup)).To(HaveOccurred())
		})

		It("should persist the parent link", func() {
			parent := &permission.Resource{Type: permission.ResourceTypeFolder, ExternalID: "F1"}
			Expect(repo.CreateResource(ctx, parent)).NotTo(HaveOccurred())

			child := &permission.Resource{Type: permission.ResourceTypeNotebook, ExternalID: "N1", ParentID: &parent.ID}
			Expect(repo.CreateResource(ctx, child)).NotTo(HaveOccurred())

			found, err := repo.FindByID(ctx, child.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ParentID).NotTo(BeNil())
			Expect(*found.ParentID).To(Equal(parent.ID))
		})
	})

	Describe("UpdateResourceParent", func() {
		It("should re-parent and detach", func() {
			a := &permission.Resource{Type: permission.ResourceTypeFolder, ExternalID: "A"}
			Expect(repo.CreateResource(ctx, a)).NotTo(HaveOccurred())
			b := &permission.Resource{Type: permission.ResourceTypeFolder, ExternalID: "B"}
			Expect(repo.CreateResource(ctx, b)).NotTo(HaveOccurred())

			Expect(repo.UpdateResourceParent(ctx, b.ID, &a.ID)).NotTo(HaveOccurred())
			found, err := repo.FindByID(ctx, b.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(*found.ParentID).To(Equal(a.ID))

			Expect(repo.UpdateResourceParent(ctx, b.ID, nil)).NotTo(HaveOccurred())
			found, err = repo.FindByID(ctx, b.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.ParentID).To(BeNil())
		})
	})

	Describe("UpsertGrant", func() {
		var res *permission.Resource

		BeforeEach(func() {
			res = &permission.Resource{Type: permission.ResourceTypeFolder, ExternalID: "F1"}
			Expect(repo.CreateResource(ctx, res)).NotTo(HaveOccurred())
		})

		It("should create a grant readable by the exact triple", func() {
			actor := int64(42)
			grant := &permission.Grant{
				UserID: 3, ResourceID: res.ID, Kind: permission.KindUpload,
				Granted: true, GrantedBy: &actor,
			}

			Expect(repo.UpsertGrant(ctx, grant)).NotTo(HaveOccurred())

			found, err := repo.GetGrant(ctx, 3, res.ID, permission.KindUpload)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).NotTo(BeNil())
			Expect(found.Granted).To(BeTrue())
			Expect(*found.GrantedBy).To(Equal(actor))
		})

		It("should replace the existing grant for the same triple", func() {
			grant := &permission.Grant{UserID: 3, ResourceID: res.ID, Kind: permission.KindUpload, Granted: true}
			Expect(repo.UpsertGrant(ctx, grant)).NotTo(HaveOccurred())

			expiry := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
			replacement := &permission.Grant{
				UserID: 3, ResourceID: res.ID, Kind: permission.KindUpload,
				Granted: false, ExpiresAt: &expiry,
			}
			Expect(repo.UpsertGrant(ctx, replacement)).NotTo(HaveOccurred())

			found, err := repo.GetGrant(ctx, 3, res.ID, permission.KindUpload)
			Expect(err).NotTo(HaveOccurred())
			Expect(found.Granted).To(BeFalse())
			Expect(found.ExpiresAt).NotTo(BeNil())

			grants, err := repo.ListGrantsForUser(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(HaveLen(1))
		})

		It("should keep grants for different kinds separate", func() {
			for _, kind := range []permission.Kind{permission.KindView, permission.KindUpload} {
				grant := &permission.Grant{UserID: 3, ResourceID: res.ID, Kind: kind, Granted: true}
				Expect(repo.UpsertGrant(ctx, grant)).NotTo(HaveOccurred())
			}

			grants, err := repo.ListGrantsForUser(ctx, 3)
			Expect(err).NotTo(HaveOccurred())
			Expect(grants).To(HaveLen(2))
		})

		It("should return nil for an absent triple", func() {
			found, err := repo.GetGrant(ctx, 3, res.ID, permission.KindDelete)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeNil())
		})
	})

	Describe("DeleteGrant", func() {
		It("should remove exactly the named triple", func() {
			res := &permission.Resource{Type: permission.ResourceTypeFolder, ExternalID: "F1"}
			Expect(repo.CreateResource(ctx, res)).NotTo(HaveOccurred())

			for _, userID := range []int64{3, 4} {
				grant := &permission.Grant{UserID: userID, ResourceID: res.ID, Kind: permission.KindView, Granted: true}
				Expect(repo.UpsertGrant(ctx, grant)).NotTo(HaveOccurred())
			}

			Expect(repo.DeleteGrant(ctx, 3, res.ID, permission.KindView)).NotTo(HaveOccurred())

			found, err := repo.GetGrant(ctx, 3, res.ID, permission.KindView)
			Expect(err).NotTo(HaveOccurred())
			Expect(found).To(BeNil())

			other, err := repo.GetGrant(ctx, 4, res.ID, permission.KindView)
			Expect(err).NotTo(HaveOccurred())
			Expect(other).NotTo(BeNil())
		})
	})

	Describe("ListResources", func() {
		It("should order by type then name", func() {
			for _, spec := range []struct{ t, id, name string }{
				{permission.ResourceTypeNotebook, "N1", "beta"},
				{permission.ResourceTypeFolder, "F2", "zulu"},
				{permission.ResourceTypeFolder, "F1", "alpha"},
			} {
				res := &permission.Resource{Type: spec.t, ExternalID: spec.id, Name: spec.name}
				Expect(repo.CreateResource(ctx, res)).NotTo(HaveOccurred())
			}

			resources, err := repo.ListResources(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(resources).To(HaveLen(3))
			Expect(resources[0].Name).To(Equal("alpha"))
			Expect(resources[1].Name).To(Equal("zulu"))
			Expect(resources[2].Name).To(Equal("beta"))
		})
	})
})
