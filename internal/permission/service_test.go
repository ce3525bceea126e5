package permission

import (
	"context"
	"log/slog"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/knowledge-gateway/internal"
)

// mockRepository layers the write operations over mockResourceStore so
// service tests reuse the same in-memory tree.
type mockRepository struct {
	*mockResourceStore
	nextID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{mockResourceStore: newMockResourceStore(), nextID: 1}
}

func (m *mockRepository) CreateResource(_ context.Context, res *Resource) error {
	res.ID = m.nextID
	m.nextID++
	res.CreatedAt = time.Now()
	m.resources[res.ID] = res
	return nil
}

func (m *mockRepository) UpdateResourceParent(_ context.Context, resourceID int64, parentID *int64) error {
	res, ok := m.resources[resourceID]
	if !ok {
		return internal.ErrResourceNotFound
	}
	res.ParentID = parentID
	return nil
}

func (m *mockRepository) ListResources(_ context.Context) ([]*Resource, error) {
	out := make([]*Resource, 0, len(m.resources))
	for _, res := range m.resources {
		out = append(out, res)
	}
	return out, nil
}

func (m *mockRepository) UpsertGrant(_ context.Context, grant *Grant) error {
	m.grants[grantKey(grant.UserID, grant.ResourceID, grant.Kind)] = grant
	return nil
}

func (m *mockRepository) DeleteGrant(_ context.Context, userID, resourceID int64, kind Kind) error {
	delete(m.grants, grantKey(userID, resourceID, kind))
	return nil
}

func (m *mockRepository) ListGrantsForUser(_ context.Context, userID int64) ([]*Grant, error) {
	var out []*Grant
	for _, g := range m.grants {
		if g.UserID == userID {
			out = append(out, g)
		}
	}
	return out, nil
}

var _ = ginkgo.Describe("PermissionService", func() {
	var (
		service *Service
		repo    *mockRepository
		ctx     context.Context
	)

	ginkgo.BeforeEach(func() {
		repo = newMockRepository()
		resolver := NewResolver(newMockIdentityStore(), repo, nil, slog.Default())
		service = NewService(repo, resolver, nil, slog.Default())
		ctx = context.Background()
	})

	ginkgo.Describe("RegisterResource", func() {
		ginkgo.It("should register a root resource", func() {
			dto := RegisterResourceDTO{Type: ResourceTypeFolder, ExternalID: "F1", Name: "Policies"}

			res, err := service.RegisterResource(ctx, dto, 1)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(res.ID).To(gomega.BeNumerically(">", 0))
			gomega.Expect(res.ParentID).To(gomega.BeNil())
		})

		ginkgo.It("should attach a child under a registered parent", func() {
			parentDTO := RegisterResourceDTO{Type: ResourceTypeFolder, ExternalID: "F1"}
			parent, err := service.RegisterResource(ctx, parentDTO, 1)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			childDTO := RegisterResourceDTO{
				Type:       ResourceTypeNotebook,
				ExternalID: "N1",
				Parent:     &ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"},
			}
			child, err := service.RegisterResource(ctx, childDTO, 1)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(child.ParentID).ToNot(gomega.BeNil())
			gomega.Expect(*child.ParentID).To(gomega.Equal(parent.ID))
		})

		ginkgo.It("should reject a duplicate (type, external_id) pair", func() {
			dto := RegisterResourceDTO{Type: ResourceTypeFolder, ExternalID: "F1"}
			_, err := service.RegisterResource(ctx, dto, 1)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			_, err = service.RegisterResource(ctx, dto, 1)

			gomega.Expect(err).To(gomega.Equal(internal.ErrResourceExists))
		})

		ginkgo.It("should reject an unregistered parent", func() {
			dto := RegisterResourceDTO{
				Type:       ResourceTypeNotebook,
				ExternalID: "N1",
				Parent:     &ResourceRef{Type: ResourceTypeFolder, ExternalID: "missing"},
			}

			_, err := service.RegisterResource(ctx, dto, 1)

			gomega.Expect(err).To(gomega.Equal(internal.ErrResourceNotFound))
		})

		ginkgo.It("should reject an unknown resource type", func() {
			dto := RegisterResourceDTO{Type: "spreadsheet", ExternalID: "S1"}

			_, err := service.RegisterResource(ctx, dto, 1)

			gomega.Expect(err).To(gomega.HaveOccurred())
		})
	})

	ginkgo.Describe("SetResourceParent", func() {
		var folder, notebook *Resource

		ginkgo.BeforeEach(func() {
			var err error
			folder, err = service.RegisterResource(ctx, RegisterResourceDTO{Type: ResourceTypeFolder, ExternalID: "F1"}, 1)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			notebook, err = service.RegisterResource(ctx, RegisterResourceDTO{
				Type: ResourceTypeNotebook, ExternalID: "N1",
				Parent: &ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"},
			}, 1)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			_, err = service.RegisterResource(ctx, RegisterResourceDTO{
				Type: ResourceTypeDocument, ExternalID: "D1",
				Parent: &ResourceRef{Type: ResourceTypeNotebook, ExternalID: "N1"},
			}, 1)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should move a resource under a new parent", func() {
			other, err := service.RegisterResource(ctx, RegisterResourceDTO{Type: ResourceTypeFolder, ExternalID: "F2"}, 1)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			err = service.SetResourceParent(ctx, notebook.ID, &ResourceRef{Type: ResourceTypeFolder, ExternalID: "F2"}, 1)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(*repo.resources[notebook.ID].ParentID).To(gomega.Equal(other.ID))
		})

		ginkgo.It("should detach a resource when parent is nil", func() {
			err := service.SetResourceParent(ctx, notebook.ID, nil, 1)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(repo.resources[notebook.ID].ParentID).To(gomega.BeNil())
		})

		ginkgo.It("should refuse to parent a resource to itself", func() {
			err := service.SetResourceParent(ctx, folder.ID, &ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"}, 1)

			gomega.Expect(err).To(gomega.Equal(internal.ErrResourceCycle))
		})

		ginkgo.It("should refuse a re-parent that closes a cycle", func() {
			// folder under document would make F1 -> D1 -> N1 -> F1
			err := service.SetResourceParent(ctx, folder.ID, &ResourceRef{Type: ResourceTypeDocument, ExternalID: "D1"}, 1)

			gomega.Expect(err).To(gomega.Equal(internal.ErrResourceCycle))
			gomega.Expect(repo.resources[folder.ID].ParentID).To(gomega.BeNil())
		})

		ginkgo.It("should fail for an unknown resource", func() {
			err := service.SetResourceParent(ctx, 999, nil, 1)

			gomega.Expect(err).To(gomega.Equal(internal.ErrResourceNotFound))
		})
	})

	ginkgo.Describe("Grant", func() {
		var folder *Resource

		ginkgo.BeforeEach(func() {
			var err error
			folder, err = service.RegisterResource(ctx, RegisterResourceDTO{Type: ResourceTypeFolder, ExternalID: "F1"}, 1)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should save an allow grant and record the actor", func() {
			dto := GrantDTO{
				UserID:   3,
				Resource: ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"},
				Kind:     "upload",
				Granted:  true,
			}

			grant, err := service.Grant(ctx, dto, 42)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(grant.ResourceID).To(gomega.Equal(folder.ID))
			gomega.Expect(*grant.GrantedBy).To(gomega.Equal(int64(42)))

			allowed, err := service.Resolve(ctx, 3, KindUpload, &ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(allowed).To(gomega.BeTrue())
		})

		ginkgo.It("should replace an allow with a deny for the same triple", func() {
			dto := GrantDTO{
				UserID:   2,
				Resource: ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"},
				Kind:     "upload",
				Granted:  true,
			}
			_, err := service.Grant(ctx, dto, 42)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			dto.Granted = false
			_, err = service.Grant(ctx, dto, 42)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			allowed, err := service.Resolve(ctx, 2, KindUpload, &ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(allowed).To(gomega.BeFalse())
		})

		ginkgo.It("should reject an unknown permission code", func() {
			dto := GrantDTO{
				UserID:   3,
				Resource: ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"},
				Kind:     "teleport",
				Granted:  true,
			}

			_, err := service.Grant(ctx, dto, 42)

			gomega.Expect(err).To(gomega.HaveOccurred())
		})

		ginkgo.It("should reject a grant on an unregistered resource", func() {
			dto := GrantDTO{
				UserID:   3,
				Resource: ResourceRef{Type: ResourceTypeFolder, ExternalID: "missing"},
				Kind:     "upload",
				Granted:  true,
			}

			_, err := service.Grant(ctx, dto, 42)

			gomega.Expect(err).To(gomega.Equal(internal.ErrResourceNotFound))
		})
	})

	ginkgo.Describe("Revoke", func() {
		ginkgo.BeforeEach(func() {
			_, err := service.RegisterResource(ctx, RegisterResourceDTO{Type: ResourceTypeFolder, ExternalID: "F1"}, 1)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			_, err = service.Grant(ctx, GrantDTO{
				UserID:   3,
				Resource: ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"},
				Kind:     "upload",
				Granted:  true,
			}, 42)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
		})

		ginkgo.It("should remove the grant so roles decide again", func() {
			dto := RevokeDTO{
				UserID:   3,
				Resource: ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"},
				Kind:     "upload",
			}

			err := service.Revoke(ctx, dto, 42)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			// viewer role has no upload, so denial returns
			allowed, err := service.Resolve(ctx, 3, KindUpload, &ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"})
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(allowed).To(gomega.BeFalse())
		})

		ginkgo.It("should fail when no grant exists for the triple", func() {
			dto := RevokeDTO{
				UserID:   3,
				Resource: ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"},
				Kind:     "edit",
			}

			err := service.Revoke(ctx, dto, 42)

			gomega.Expect(err).To(gomega.Equal(internal.ErrGrantNotFound))
		})
	})

	ginkgo.Describe("ListUserGrants", func() {
		ginkgo.It("should return only the user's grants", func() {
			_, err := service.RegisterResource(ctx, RegisterResourceDTO{Type: ResourceTypeFolder, ExternalID: "F1"}, 1)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			for _, userID := range []int64{3, 4} {
				_, err := service.Grant(ctx, GrantDTO{
					UserID:   userID,
					Resource: ResourceRef{Type: ResourceTypeFolder, ExternalID: "F1"},
					Kind:     "view",
					Granted:  true,
				}, 42)
				gomega.Expect(err).ToNot(gomega.HaveOccurred())
			}

			grants, err := service.ListUserGrants(ctx, 3)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(grants).To(gomega.HaveLen(1))
			gomega.Expect(grants[0].UserID).To(gomega.Equal(int64(3)))
		})
	})
})
