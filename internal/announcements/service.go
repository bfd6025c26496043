package announcements

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/pelita-edu/pelita/internal/authz"
	"github.com/pelita-edu/pelita/internal/identity"
	"github.com/pelita-edu/pelita/internal/shared"
)

// ResourceTag names this record family for cache invalidation.
const ResourceTag = "announcements"

// IdentityResolver turns a session into an AuthContext for one tenant.
type IdentityResolver interface {
	Resolve(ctx context.Context, sess *shared.Session, tenantID string) (*identity.AuthContext, error)
}

// Notifier signals that cached views of a tenant's records are stale.
type Notifier interface {
	Invalidate(ctx context.Context, tenantID, resourceTag string) error
}

// Auditor records successful mutations. Audit failures are logged, never
// surfaced to the caller.
type Auditor interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// ListCache stores serialized list pages keyed per tenant and filter.
type ListCache interface {
	GetOrBuild(ctx context.Context, tenantID, resourceTag, fingerprint string, build func(context.Context) ([]byte, error)) ([]byte, error)
}

// Service is the mutation contract layer for announcements. Every operation
// walks the same gates in order and stops at the first failure: identity,
// tenant, payload validation, record load, permission check, persistence,
// invalidation. All failures come back as typed ActionError values; nothing
// panics across this boundary.
type Service struct {
	repo     Repository
	ident    IdentityResolver
	notifier Notifier
	audit    Auditor
	cache    ListCache
	validate *validator.Validate
	logger   *slog.Logger
	now      func() time.Time
}

// NewService constructs a Service. audit and cache may be nil.
func NewService(repo Repository, ident IdentityResolver, notifier Notifier, audit Auditor, cache ListCache, logger *slog.Logger) *Service {
	return &Service{
		repo:     repo,
		ident:    ident,
		notifier: notifier,
		audit:    audit,
		cache:    cache,
		validate: validator.New(),
		logger:   logger,
		now:      time.Now,
	}
}

// gate resolves identity and tenant, in that order. A request with no
// session fails as not authenticated regardless of payload or tenant.
func (s *Service) gate(ctx context.Context, sess *shared.Session, tenantID string) (*identity.AuthContext, *shared.ActionError) {
	if sess == nil || sess.User() == "" {
		return nil, shared.NotAuthenticatedError()
	}
	if tenantID == "" {
		return nil, shared.MissingTenantError()
	}
	authCtx, err := s.ident.Resolve(ctx, sess, tenantID)
	if err != nil {
		if errors.Is(err, identity.ErrNotAuthenticated) {
			return nil, shared.NotAuthenticatedError()
		}
		return nil, s.internal("resolve identity", err)
	}
	return authCtx, nil
}

func (s *Service) validateStruct(payload any) map[string]string {
	err := s.validate.Struct(payload)
	if err == nil {
		return nil
	}
	fields := make(map[string]string)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		for _, fe := range verrs {
			fields[strings.ToLower(fe.Field())] = "failed " + fe.Tag() + " check"
		}
	} else {
		fields["payload"] = "malformed payload"
	}
	return fields
}

// Create authors a new announcement at the requested scope.
func (s *Service) Create(ctx context.Context, sess *shared.Session, tenantID string, req CreateAnnouncementRequest) (*Announcement, *shared.ActionError) {
	authCtx, aerr := s.gate(ctx, sess, tenantID)
	if aerr != nil {
		return nil, aerr
	}

	fields := s.validateStruct(req)
	for field, msg := range req.scopeTargetFields() {
		if fields == nil {
			fields = make(map[string]string)
		}
		fields[field] = msg
	}
	if len(fields) > 0 {
		return nil, shared.ValidationError(fields)
	}

	target := authz.ScopeTarget{}
	if req.GroupID != nil {
		target.GroupID = *req.GroupID
	}
	if req.TargetRole != nil {
		target.TargetRole = *req.TargetRole
	}
	if err := authz.ValidateScope(authCtx, req.Scope, target); err != nil {
		var scopeErr *authz.ScopeError
		if errors.As(err, &scopeErr) {
			return nil, shared.ScopeDeniedError(scopeErr.Message)
		}
		return nil, shared.ScopeDeniedError(err.Error())
	}

	// Immediate publication is a privileged field. Non-privileged authors
	// create drafts and publish through SetPublished, which re-checks their
	// rights against the stored record.
	if req.Published && !authCtx.Role.Privileged() {
		return nil, shared.UnauthorizedError("publishing on create requires elevated role")
	}

	now := s.now()
	priority := req.Priority
	if priority == "" {
		priority = PriorityNormal
	}

	ownerID := authCtx.UserID
	a := Announcement{
		ID:        uuid.NewString(),
		TenantID:  tenantID,
		Title:     req.Title,
		Body:      req.Body,
		Scope:     req.Scope,
		GroupID:   req.GroupID,
		OwnerID:   &ownerID,
		Priority:  priority,
		Pinned:    req.Pinned,
		Published: req.Published,
		ExpiresAt: req.ExpiresAt,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.TargetRole != nil {
		role := *req.TargetRole
		a.TargetRole = &role
	}
	if req.Published {
		publishedAt := now
		a.PublishedAt = &publishedAt
	}

	if err := s.repo.Create(ctx, a); err != nil {
		return nil, s.internal("create announcement", err)
	}

	s.invalidateAndAudit(ctx, authCtx, "announcement.create", a.ID, nil)
	return &a, nil
}

// Get returns one announcement visible to the caller.
func (s *Service) Get(ctx context.Context, sess *shared.Session, tenantID, id string) (*Announcement, *shared.ActionError) {
	authCtx, aerr := s.gate(ctx, sess, tenantID)
	if aerr != nil {
		return nil, aerr
	}

	a, err := s.repo.FindOne(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundError()
		}
		return nil, s.internal("load announcement", err)
	}

	rec := a.AuthzRecord()
	// A record past its expiry reads as unpublished for everyone but the
	// privileged and the owner.
	if a.Expired(s.now()) {
		rec.Published = false
	}
	if dec := authz.Check(authCtx, authz.ActionRead, rec); !dec.Allowed {
		return nil, denialToError(dec)
	}
	return a, nil
}

// Update modifies mutable fields of an existing announcement. Scope and
// targeting are immutable; the update payload cannot express them.
func (s *Service) Update(ctx context.Context, sess *shared.Session, tenantID, id string, req UpdateAnnouncementRequest) (*Announcement, *shared.ActionError) {
	authCtx, aerr := s.gate(ctx, sess, tenantID)
	if aerr != nil {
		return nil, aerr
	}

	if fields := s.validateStruct(req); len(fields) > 0 {
		return nil, shared.ValidationError(fields)
	}

	a, err := s.repo.FindOne(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundError()
		}
		return nil, s.internal("load announcement", err)
	}

	if dec := authz.Check(authCtx, authz.ActionUpdate, a.AuthzRecord()); !dec.Allowed {
		return nil, denialToError(dec)
	}

	patch := UpdatePatch{
		Title:     req.Title,
		Body:      req.Body,
		Priority:  req.Priority,
		Pinned:    req.Pinned,
		ExpiresAt: req.ExpiresAt,
	}
	affected, err := s.repo.UpdateWhere(ctx, tenantID, id, patch)
	if err != nil {
		return nil, s.internal("update announcement", err)
	}
	if affected == 0 {
		return nil, shared.NotFoundError()
	}

	s.invalidateAndAudit(ctx, authCtx, "announcement.update", id, nil)

	updated, err := s.repo.FindOne(ctx, tenantID, id)
	if err != nil {
		return nil, s.internal("reload announcement", err)
	}
	return updated, nil
}

// Delete removes an announcement.
func (s *Service) Delete(ctx context.Context, sess *shared.Session, tenantID, id string) *shared.ActionError {
	authCtx, aerr := s.gate(ctx, sess, tenantID)
	if aerr != nil {
		return aerr
	}

	a, err := s.repo.FindOne(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return shared.NotFoundError()
		}
		return s.internal("load announcement", err)
	}

	if dec := authz.Check(authCtx, authz.ActionDelete, a.AuthzRecord()); !dec.Allowed {
		return denialToError(dec)
	}

	affected, err := s.repo.DeleteWhere(ctx, tenantID, id)
	if err != nil {
		return s.internal("delete announcement", err)
	}
	if affected == 0 {
		return shared.NotFoundError()
	}

	s.invalidateAndAudit(ctx, authCtx, "announcement.delete", id, nil)
	return nil
}

// SetPublished flips the published gate of an announcement.
func (s *Service) SetPublished(ctx context.Context, sess *shared.Session, tenantID, id string, req SetPublishedRequest) (*Announcement, *shared.ActionError) {
	authCtx, aerr := s.gate(ctx, sess, tenantID)
	if aerr != nil {
		return nil, aerr
	}

	a, err := s.repo.FindOne(ctx, tenantID, id)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.NotFoundError()
		}
		return nil, s.internal("load announcement", err)
	}

	if dec := authz.Check(authCtx, authz.ActionPublish, a.AuthzRecord()); !dec.Allowed {
		return nil, denialToError(dec)
	}

	published := req.Published
	patch := UpdatePatch{Published: &published}
	if published && a.PublishedAt == nil {
		publishedAt := s.now()
		patch.PublishedAt = &publishedAt
	}

	affected, err := s.repo.UpdateWhere(ctx, tenantID, id, patch)
	if err != nil {
		return nil, s.internal("set published", err)
	}
	if affected == 0 {
		return nil, shared.NotFoundError()
	}

	action := "announcement.publish"
	if !published {
		action = "announcement.unpublish"
	}
	s.invalidateAndAudit(ctx, authCtx, action, id, nil)

	updated, err := s.repo.FindOne(ctx, tenantID, id)
	if err != nil {
		return nil, s.internal("reload announcement", err)
	}
	return updated, nil
}

// List returns one page of announcements visible to the caller, plus
// pagination metadata from an independent count under the same filter.
func (s *Service) List(ctx context.Context, sess *shared.Session, tenantID string, req ListAnnouncementsRequest) (*ListAnnouncementsResult, *shared.ActionError) {
	authCtx, aerr := s.gate(ctx, sess, tenantID)
	if aerr != nil {
		return nil, aerr
	}

	if fields := s.validateStruct(req); len(fields) > 0 {
		return nil, shared.ValidationError(fields)
	}

	sortColumn, sortDesc := shared.SortKey(req.Sort, "published_at", SortableColumns)
	filter := ListFilter{
		Search:      req.Search,
		Scope:       req.Scope,
		Published:   req.Published,
		SortColumn:  sortColumn,
		SortDesc:    sortDesc,
		PinnedFirst: req.Sort == "",
	}
	if !authCtx.Role.Privileged() {
		filter.VisibleTo = &Visibility{
			UserID:   authCtx.UserID,
			Role:     authCtx.Role,
			GroupIDs: authCtx.TaughtClassIDs,
			Now:      s.now(),
		}
	}

	if s.cache == nil {
		return s.buildList(ctx, tenantID, filter, req.Page, req.PerPage)
	}

	// The fingerprint includes the caller's visibility, so a cached page can
	// never serve another identity's view of the tenant.
	data, err := s.cache.GetOrBuild(ctx, tenantID, ResourceTag, listFingerprint(filter, req.Page, req.PerPage), func(ctx context.Context) ([]byte, error) {
		result, aerr := s.buildList(ctx, tenantID, filter, req.Page, req.PerPage)
		if aerr != nil {
			return nil, aerr
		}
		return json.Marshal(result)
	})
	if err != nil {
		var aerr *shared.ActionError
		if errors.As(err, &aerr) {
			return nil, aerr
		}
		return nil, s.internal("list cache", err)
	}

	var result ListAnnouncementsResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, s.internal("decode cached list", err)
	}
	return &result, nil
}

func (s *Service) buildList(ctx context.Context, tenantID string, filter ListFilter, page, perPage int) (*ListAnnouncementsResult, *shared.ActionError) {
	total, err := s.repo.Count(ctx, tenantID, filter)
	if err != nil {
		return nil, s.internal("count announcements", err)
	}

	pagination := shared.NewPagination(page, perPage, total)
	filter.Limit = pagination.PerPage
	filter.Offset = pagination.Offset()

	items, err := s.repo.List(ctx, tenantID, filter)
	if err != nil {
		return nil, s.internal("list announcements", err)
	}
	if items == nil {
		items = []Announcement{}
	}

	return &ListAnnouncementsResult{Items: items, Pagination: pagination}, nil
}

func listFingerprint(filter ListFilter, page, perPage int) string {
	scope := ""
	if filter.Scope != nil {
		scope = string(*filter.Scope)
	}
	published := ""
	if filter.Published != nil {
		published = strconv.FormatBool(*filter.Published)
	}
	visibility := "all"
	if v := filter.VisibleTo; v != nil {
		visibility = v.UserID + ":" + string(v.Role) + ":" + strings.Join(v.GroupIDs, ",")
	}
	raw := strings.Join([]string{
		filter.Search, scope, published,
		filter.SortColumn, strconv.FormatBool(filter.SortDesc), strconv.FormatBool(filter.PinnedFirst),
		strconv.Itoa(page), strconv.Itoa(perPage),
		visibility,
	}, "|")
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:16])
}

func denialToError(dec authz.Decision) *shared.ActionError {
	switch dec.Reason {
	case authz.DenyNotFound:
		return shared.NotFoundError()
	case authz.DenyScope:
		return shared.ScopeDeniedError("requested scope not permitted")
	case authz.DenyRead:
		return shared.UnauthorizedError("not allowed to view this record")
	default:
		return shared.UnauthorizedError("not allowed to modify this record")
	}
}

func (s *Service) invalidateAndAudit(ctx context.Context, authCtx *identity.AuthContext, action, entityID string, meta map[string]any) {
	if s.notifier != nil {
		if err := s.notifier.Invalidate(ctx, authCtx.TenantID, ResourceTag); err != nil && s.logger != nil {
			s.logger.Warn("invalidate cache", slog.String("tenant", authCtx.TenantID), slog.Any("error", err))
		}
	}
	if s.audit != nil {
		log := shared.AuditLog{
			TenantID: authCtx.TenantID,
			ActorID:  authCtx.UserID,
			Action:   action,
			Entity:   "announcement",
			EntityID: entityID,
			Meta:     meta,
			At:       s.now(),
		}
		if err := s.audit.Record(ctx, log); err != nil && s.logger != nil {
			s.logger.Warn("audit record", slog.String("action", action), slog.Any("error", err))
		}
	}
}

func (s *Service) internal(op string, err error) *shared.ActionError {
	if s.logger != nil {
		s.logger.Error(op, slog.Any("error", err))
	}
	return shared.InternalError(err)
}
