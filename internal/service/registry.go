package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"vendorse/internal/models"
)

const (
	minPasswordLength = 8
	maxNameLength     = 200
	maxEmailLength    = 320
)

//// Organizations

func (s *Service) CreateOrganization(ctx context.Context, name string, orgType models.OrganizationType, address string) (models.Organization, error) {
	name = strings.TrimSpace(name)
	switch {
	case name == "":
		return models.Organization{}, fmt.Errorf("service.Service.CreateOrganization: %w", invalidInput("name is required"))
	case utf8.RuneCountInString(name) > maxNameLength:
		return models.Organization{}, fmt.Errorf("service.Service.CreateOrganization: %w", invalidInput("name is longer than %d characters", maxNameLength))
	case !models.ValidOrganizationType(orgType):
		return models.Organization{}, fmt.Errorf("service.Service.CreateOrganization: %w", invalidInput("unknown organization type %q", orgType))
	}

	org, err := s.store.CreateOrganization(ctx, models.Organization{Name: name, Type: orgType, Address: strings.TrimSpace(address)})
	if err != nil {
		return models.Organization{}, fmt.Errorf("service.Service.CreateOrganization: %w", err)
	}
	return org, nil
}

func (s *Service) GetOrganization(ctx context.Context, id string) (models.Organization, error) {
	org, err := s.store.GetOrganization(ctx, id)
	if err != nil {
		return models.Organization{}, fmt.Errorf("service.Service.GetOrganization: %w", lookupErr(err, models.ErrNoOrganization, id))
	}
	return org, nil
}

func (s *Service) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	orgs, err := s.store.ListOrganizations(ctx)
	if err != nil {
		return nil, fmt.Errorf("service.Service.ListOrganizations: %w", err)
	}
	if orgs == nil {
		orgs = []models.Organization{}
	}
	return orgs, nil
}

//// Credentials

// Register creates an ACTIVE user and signs them in. ADMIN accounts cannot be
// self-registered.
func (s *Service) Register(ctx context.Context, reg models.Registration) (models.AuthResult, error) {
	reg.Email = normalizeEmail(reg.Email)
	reg.Name = strings.TrimSpace(reg.Name)

	err := validateRegistration(reg)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("service.Service.Register: %w", err)
	}
	if reg.Role == models.RoleAdmin {
		return models.AuthResult{}, fmt.Errorf("service.Service.Register: %w: %s", models.ErrRoleNotAllowed, reg.Role)
	}

	_, err = s.store.GetOrganization(ctx, reg.OrganizationId)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("service.Service.Register: %w", lookupErr(err, models.ErrNoOrganization, reg.OrganizationId))
	}

	hash, err := s.passwords.Hash(reg.Password)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("service.Service.Register: %w", err)
	}

	user, err := s.store.CreateUser(ctx, models.User{
		Email:          reg.Email,
		PasswordHash:   hash,
		Name:           reg.Name,
		Role:           reg.Role,
		Status:         models.UserActive,
		OrganizationId: reg.OrganizationId,
	})
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("service.Service.Register: %w", err)
	}

	result, err := s.issue(user)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("service.Service.Register: %w", err)
	}
	return result, nil
}

func validateRegistration(reg models.Registration) error {
	err := validateEmail(reg.Email)
	if err != nil {
		return err
	}
	switch {
	case utf8.RuneCountInString(reg.Password) < minPasswordLength:
		return invalidInput("password must be at least %d characters", minPasswordLength)
	case reg.Name == "":
		return invalidInput("name is required")
	case utf8.RuneCountInString(reg.Name) > maxNameLength:
		return invalidInput("name is longer than %d characters", maxNameLength)
	case !models.ValidRole(reg.Role):
		return invalidInput("unknown role %q", reg.Role)
	case strings.TrimSpace(reg.OrganizationId) == "":
		return invalidInput("organizationId is required")
	}
	return nil
}

// Login checks the credentials of an ACTIVE user and issues a token. Every
// failure reports the same invalid credentials error.
func (s *Service) Login(ctx context.Context, email, password string) (models.AuthResult, error) {
	user, err := s.store.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		err = lookupErr(err, models.ErrInvalidCredentials, "")
		return models.AuthResult{}, fmt.Errorf("service.Service.Login: %w", err)
	}

	if user.Status != models.UserActive {
		return models.AuthResult{}, fmt.Errorf("service.Service.Login: %w", models.ErrInvalidCredentials)
	}

	err = s.passwords.Compare(user.PasswordHash, password)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("service.Service.Login: %w", err)
	}

	result, err := s.issue(user)
	if err != nil {
		return models.AuthResult{}, fmt.Errorf("service.Service.Login: %w", err)
	}
	return result, nil
}

// Authenticate resolves a bearer token to an actor. Role and organization come
// from the registry, so a suspended user is rejected even with a valid token.
func (s *Service) Authenticate(ctx context.Context, token string) (models.Actor, error) {
	if s.tokens == nil {
		return models.Actor{}, errors.New("service.Service.Authenticate: token issuer is not configured")
	}

	claims, err := s.tokens.Parse(token)
	if err != nil {
		return models.Actor{}, fmt.Errorf("service.Service.Authenticate: %w", err)
	}

	user, err := s.store.GetUser(ctx, claims.Subject)
	if err != nil {
		err = lookupErr(err, models.ErrUnauthenticated, claims.Subject)
		return models.Actor{}, fmt.Errorf("service.Service.Authenticate: %w", err)
	}
	if user.Status != models.UserActive {
		return models.Actor{}, fmt.Errorf("service.Service.Authenticate: %w: user %s is %s", models.ErrUnauthenticated, user.Id, user.Status)
	}

	return user.Actor(), nil
}

func (s *Service) issue(user models.User) (models.AuthResult, error) {
	if s.tokens == nil {
		return models.AuthResult{}, errors.New("token issuer is not configured")
	}
	token, expires, err := s.tokens.Issue(user)
	if err != nil {
		return models.AuthResult{}, err
	}
	return models.AuthResult{AccessToken: token, ExpiresAt: expires, User: user}, nil
}

//// Users

func (s *Service) GetUser(ctx context.Context, actor models.Actor, id string) (models.User, error) {
	if actor.Role != models.RoleAdmin && actor.Id != id {
		return models.User{}, fmt.Errorf("service.Service.GetUser: %w: %s", models.ErrForbidden, id)
	}

	user, err := s.store.GetUser(ctx, id)
	if err != nil {
		return models.User{}, fmt.Errorf("service.Service.GetUser: %w", lookupErr(err, models.ErrNoUser, id))
	}
	return user, nil
}

func (s *Service) ListUsers(ctx context.Context, actor models.Actor, q models.UserQuery) (models.UserPage, error) {
	err := requireRole(actor, models.RoleAdmin)
	if err != nil {
		return models.UserPage{}, fmt.Errorf("service.Service.ListUsers: %w", err)
	}

	if q.Role != "" && !models.ValidRole(q.Role) {
		return models.UserPage{}, fmt.Errorf("service.Service.ListUsers: %w", invalidInput("unknown role %q", q.Role))
	}
	if q.Status != "" && !models.ValidUserStatus(q.Status) {
		return models.UserPage{}, fmt.Errorf("service.Service.ListUsers: %w", invalidInput("unknown status %q", q.Status))
	}

	page, limit := pageParams(q.Page, q.Limit)
	filter := models.UserFilter{Role: q.Role, Status: q.Status, Limit: limit, Offset: (page - 1) * limit}

	users, err := s.store.ListUsers(ctx, filter)
	if err != nil {
		return models.UserPage{}, fmt.Errorf("service.Service.ListUsers: %w", err)
	}
	total, err := s.store.CountUsers(ctx, filter)
	if err != nil {
		return models.UserPage{}, fmt.Errorf("service.Service.ListUsers: %w", err)
	}
	if users == nil {
		users = []models.User{}
	}

	return models.UserPage{
		Users:      users,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: totalPages(total, limit),
	}, nil
}

func (s *Service) CountUsers(ctx context.Context, actor models.Actor, role models.Role, status models.UserStatus) (int, error) {
	err := requireRole(actor, models.RoleAdmin)
	if err != nil {
		return 0, fmt.Errorf("service.Service.CountUsers: %w", err)
	}

	count, err := s.store.CountUsers(ctx, models.UserFilter{Role: role, Status: status})
	if err != nil {
		return 0, fmt.Errorf("service.Service.CountUsers: %w", err)
	}
	return count, nil
}

// UpdateUser changes a profile. Users may edit themselves; role and status
// changes are reserved to ADMIN.
func (s *Service) UpdateUser(ctx context.Context, actor models.Actor, id string, upd models.UserUpdate) (models.User, error) {
	if actor.Role != models.RoleAdmin && actor.Id != id {
		return models.User{}, fmt.Errorf("service.Service.UpdateUser: %w: %s", models.ErrForbidden, id)
	}
	if actor.Role != models.RoleAdmin && (upd.Role != nil || upd.Status != nil) {
		return models.User{}, fmt.Errorf("service.Service.UpdateUser: %w: role and status are managed by administrators", models.ErrForbidden)
	}

	err := s.prepareUpdate(&upd)
	if err != nil {
		return models.User{}, fmt.Errorf("service.Service.UpdateUser: %w", err)
	}

	user, err := s.store.UpdateUser(ctx, id, upd)
	if err != nil {
		return models.User{}, fmt.Errorf("service.Service.UpdateUser: %w", lookupErr(err, models.ErrNoUser, id))
	}
	return user, nil
}

func (s *Service) prepareUpdate(upd *models.UserUpdate) error {
	if upd.Name != nil {
		name := strings.TrimSpace(*upd.Name)
		if name == "" || utf8.RuneCountInString(name) > maxNameLength {
			return invalidInput("name must be 1 to %d characters", maxNameLength)
		}
		upd.Name = &name
	}
	if upd.Email != nil {
		email := normalizeEmail(*upd.Email)
		err := validateEmail(email)
		if err != nil {
			return err
		}
		upd.Email = &email
	}
	if upd.Role != nil && !models.ValidRole(*upd.Role) {
		return invalidInput("unknown role %q", *upd.Role)
	}
	if upd.Status != nil && !models.ValidUserStatus(*upd.Status) {
		return invalidInput("unknown status %q", *upd.Status)
	}
	if upd.Password != nil {
		if utf8.RuneCountInString(*upd.Password) < minPasswordLength {
			return invalidInput("password must be at least %d characters", minPasswordLength)
		}
		hash, err := s.passwords.Hash(*upd.Password)
		if err != nil {
			return err
		}
		upd.PasswordHash = &hash
		upd.Password = nil
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func validateEmail(email string) error {
	at := strings.Index(email, "@")
	if at <= 0 || at == len(email)-1 || strings.ContainsAny(email, " \t\n") {
		return invalidInput("invalid email %q", email)
	}
	if len(email) > maxEmailLength {
		return invalidInput("email is longer than %d characters", maxEmailLength)
	}
	return nil
}
