package repository

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"vendorse/internal/models"
)

type organizationRow struct {
	Id        string                  `db:"id"`
	Name      string                  `db:"name"`
	Type      models.OrganizationType `db:"type"`
	Address   string                  `db:"address"`
	Verified  bool                    `db:"verified"`
	CreatedAt time.Time               `db:"created_at"`
	UpdatedAt time.Time               `db:"updated_at"`
}

func (r organizationRow) model() models.Organization {
	return models.Organization(r)
}

const organizationColumns = `id, name, type, address, verified, created_at, updated_at`

func (repo *Repository) CreateOrganization(ctx context.Context, org models.Organization) (models.Organization, error) {
	query := `
	INSERT INTO organizations (name, type, address)
	VALUES ($1, $2, $3)
	RETURNING ` + organizationColumns

	var row organizationRow
	err := repo.getContext(ctx, &row, query, org.Name, org.Type, org.Address)
	if err != nil {
		return models.Organization{}, fmt.Errorf("repository.Repository.CreateOrganization: %w", err)
	}
	return row.model(), nil
}

func (repo *Repository) GetOrganization(ctx context.Context, id string) (models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations WHERE id = $1`

	var row organizationRow
	err := repo.getContext(ctx, &row, query, id)
	if err != nil {
		return models.Organization{}, errNotFound("repository.Repository.GetOrganization", id, err)
	}
	return row.model(), nil
}

func (repo *Repository) ListOrganizations(ctx context.Context) ([]models.Organization, error) {
	query := `SELECT ` + organizationColumns + ` FROM organizations ORDER BY name, id`

	var rows []organizationRow
	err := repo.selectContext(ctx, &rows, query)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.ListOrganizations: %w", err)
	}

	result := make([]models.Organization, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.model())
	}
	return result, nil
}

type userRow struct {
	Id             string            `db:"id"`
	Email          string            `db:"email"`
	PasswordHash   string            `db:"password_hash"`
	Name           string            `db:"name"`
	Role           models.Role       `db:"role"`
	Status         models.UserStatus `db:"status"`
	OrganizationId string            `db:"organization_id"`
	CreatedAt      time.Time         `db:"created_at"`
	UpdatedAt      time.Time         `db:"updated_at"`
}

func (r userRow) model() models.User {
	return models.User(r)
}

const userColumns = `id, email, password_hash, name, role, status, organization_id, created_at, updated_at`

func (repo *Repository) CreateUser(ctx context.Context, user models.User) (models.User, error) {
	query := `
	INSERT INTO users (email, password_hash, name, role, status, organization_id)
	VALUES ($1, $2, $3, $4, $5, $6)
	RETURNING ` + userColumns

	var row userRow
	err := repo.getContext(ctx, &row, query, user.Email, user.PasswordHash, user.Name, user.Role, user.Status, user.OrganizationId)
	if isUniqueViolation(err) {
		return models.User{}, fmt.Errorf("repository.Repository.CreateUser: %w: %s", models.ErrEmailTaken, user.Email)
	}
	if err != nil {
		return models.User{}, fmt.Errorf("repository.Repository.CreateUser: %w", err)
	}
	return row.model(), nil
}

func (repo *Repository) GetUser(ctx context.Context, id string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	var row userRow
	err := repo.getContext(ctx, &row, query, id)
	if err != nil {
		return models.User{}, errNotFound("repository.Repository.GetUser", id, err)
	}
	return row.model(), nil
}

func (repo *Repository) GetUserByEmail(ctx context.Context, email string) (models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	var row userRow
	err := repo.getContext(ctx, &row, query, email)
	if err != nil {
		return models.User{}, errNotFound("repository.Repository.GetUserByEmail", email, err)
	}
	return row.model(), nil
}

func userConditions(f models.UserFilter) *conditions {
	c := &conditions{}
	if f.Role != "" {
		c.add("role = $$", f.Role)
	}
	if f.Status != "" {
		c.add("status = $$", f.Status)
	}
	return c
}

func (repo *Repository) ListUsers(ctx context.Context, f models.UserFilter) ([]models.User, error) {
	c := userConditions(f)
	query := `
	SELECT ` + userColumns + `
	FROM users
	` + c.where(3) + `
	ORDER BY created_at DESC, id
	LIMIT $1
	OFFSET $2
	`
	params := append([]interface{}{limitParam(f.Limit), f.Offset}, c.params...)

	var rows []userRow
	err := repo.selectContext(ctx, &rows, query, params...)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.ListUsers: %w", err)
	}

	result := make([]models.User, 0, len(rows))
	for _, r := range rows {
		result = append(result, r.model())
	}
	return result, nil
}

func (repo *Repository) CountUsers(ctx context.Context, f models.UserFilter) (int, error) {
	c := userConditions(f)
	query := `SELECT COUNT(*) FROM users ` + c.where(1)

	var count int
	err := repo.getContext(ctx, &count, query, c.params...)
	if err != nil {
		return 0, fmt.Errorf("repository.Repository.CountUsers: %w", err)
	}
	return count, nil
}

// UpdateUser applies the non-nil fields of upd. Password must already be hashed
// into PasswordHash.
func (repo *Repository) UpdateUser(ctx context.Context, id string, upd models.UserUpdate) (models.User, error) {
	sets := []string{"updated_at = CURRENT_TIMESTAMP"}
	params := []interface{}{id}

	set := func(column string, value interface{}) {
		params = append(params, value)
		sets = append(sets, column+" = $"+strconv.Itoa(len(params)))
	}

	if upd.Name != nil {
		set("name", *upd.Name)
	}
	if upd.Email != nil {
		set("email", *upd.Email)
	}
	if upd.PasswordHash != nil {
		set("password_hash", *upd.PasswordHash)
	}
	if upd.Role != nil {
		set("role", *upd.Role)
	}
	if upd.Status != nil {
		set("status", *upd.Status)
	}

	query := `
	UPDATE users
	SET ` + strings.Join(sets, ", ") + `
	WHERE id = $1
	RETURNING ` + userColumns

	var row userRow
	err := repo.getContext(ctx, &row, query, params...)
	if isUniqueViolation(err) {
		return models.User{}, fmt.Errorf("repository.Repository.UpdateUser: %w: %s", models.ErrEmailTaken, *upd.Email)
	}
	if err != nil {
		return models.User{}, errNotFound("repository.Repository.UpdateUser", id, err)
	}
	return row.model(), nil
}
