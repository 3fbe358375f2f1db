package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/schoolsecure/hallpass/internal/model"
	"github.com/schoolsecure/hallpass/internal/utils"
)

// UserRepo provides data access to the users table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

const userColumns = `id,school_id,email,password_hash,role,first_name,last_name,is_active,created_at,updated_at`

// Create hashes the password and inserts the user, assigning the
// generated ID back to u. Email is normalized to lowercase before
// insertion. A duplicate email maps to ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, u *model.User, password string, cost int) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (school_id, email, password_hash, role, first_name, last_name) VALUES (?,?,?,?,?,?)",
		u.SchoolID, u.Email, u.PasswordHash, string(u.Role), u.FirstName, u.LastName)
	if err != nil {
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)
	return nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.SchoolID, &u.Email, &u.PasswordHash, &u.Role, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	var u model.User
	err := r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.SchoolID, &u.Email, &u.PasswordHash, &u.Role, &u.FirstName, &u.LastName, &u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// CountActiveStaff returns how many active teacher or admin accounts a
// school has. Dashboard rate metrics divide by this figure.
func (r *UserRepo) CountActiveStaff(ctx context.Context, schoolID uint64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM users WHERE school_id=? AND role IN ('TEACHER','ADMIN') AND is_active=1",
		schoolID).Scan(&n)
	return n, err
}
