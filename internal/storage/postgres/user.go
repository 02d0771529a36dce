package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/placementhub/auth-service/internal/models"
	"github.com/placementhub/auth-service/internal/storage"
)

const pqUniqueViolation = "23505"

type UserRepository struct {
	db storage.DBTX
}

func NewUserRepository(db storage.DBTX) *UserRepository {
	return &UserRepository{db: db}
}

const userColumns = `id, name, email, phone, password_hash, role, refresh_token_ref, last_login_ip,
	course, college, year, skills, resume_url, company_id, designation, created_at, updated_at`

func (r *UserRepository) CreateUser(ctx context.Context, user models.User) (*models.User, error) {
	query := `INSERT INTO users (id, name, email, phone, password_hash, role, course, college, year, skills, resume_url, company_id, designation)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7, $8, $9, $10, $11, NULLIF($12, ''), $13)
		RETURNING ` + userColumns

	var sp models.StudentProfile
	var rp models.RecruiterProfile
	if user.Profile.Student != nil {
		sp = *user.Profile.Student
	}
	if user.Profile.Recruiter != nil {
		rp = *user.Profile.Recruiter
	}

	row := r.db.QueryRowContext(ctx, query,
		user.ID,
		user.Name,
		user.Email,
		user.Phone,
		user.PasswordHash,
		user.Role,
		sp.Course,
		sp.College,
		sp.Year,
		pq.Array(sp.Skills),
		sp.ResumeURL,
		rp.CompanyID,
		rp.Designation,
	)

	created, err := scanUser(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			switch pqErr.Constraint {
			case "users_phone_key":
				return nil, storage.ErrDuplicatePhone
			default:
				return nil, storage.ErrDuplicateEmail
			}
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return created, nil
}

func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, email))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by id: %w", err)
	}
	return user, nil
}

func (r *UserRepository) GetUserByPhone(ctx context.Context, phone string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE phone = $1`
	user, err := scanUser(r.db.QueryRowContext(ctx, query, phone))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("get user by phone: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpdateProfile(ctx context.Context, id string, name string, profile models.Profile) (*models.User, error) {
	var sp models.StudentProfile
	var rp models.RecruiterProfile
	if profile.Student != nil {
		sp = *profile.Student
	}
	if profile.Recruiter != nil {
		rp = *profile.Recruiter
	}

	query := `UPDATE users SET name = $2, course = $3, college = $4, year = $5, skills = $6,
		resume_url = $7, company_id = NULLIF($8, ''), designation = $9, updated_at = now()
		WHERE id = $1 RETURNING ` + userColumns
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id, name,
		sp.Course, sp.College, sp.Year, pq.Array(sp.Skills), sp.ResumeURL,
		rp.CompanyID, rp.Designation))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrUserNotFound
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = now() WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, passwordHash)
	if err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return storage.ErrUserNotFound
	}
	return nil
}

// setRefreshRef writes the fast-check reference and records the client IP
// that earned it. Empty values store NULL.
func setRefreshRef(ctx context.Context, db storage.DBTX, userID, ref, ip string) (int64, error) {
	query := `UPDATE users SET refresh_token_ref = NULLIF($2, ''), last_login_ip = COALESCE(NULLIF($3, ''), last_login_ip), updated_at = now() WHERE id = $1`
	res, err := db.ExecContext(ctx, query, userID, ref, ip)
	if err != nil {
		return 0, fmt.Errorf("set refresh ref: %w", err)
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var user models.User
	var phone, refreshRef, lastLoginIP sql.NullString
	var course, college, year, resumeURL, companyID, designation sql.NullString
	var skills pq.StringArray

	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&phone,
		&user.PasswordHash,
		&user.Role,
		&refreshRef,
		&lastLoginIP,
		&course,
		&college,
		&year,
		&skills,
		&resumeURL,
		&companyID,
		&designation,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	user.Phone = phone.String
	user.RefreshTokenRef = refreshRef.String
	user.LastLoginIP = lastLoginIP.String

	switch user.Role {
	case models.RoleStudent:
		user.Profile.Student = &models.StudentProfile{
			Course:    course.String,
			College:   college.String,
			Year:      year.String,
			Skills:    skills,
			ResumeURL: resumeURL.String,
		}
	case models.RoleRecruiter:
		user.Profile.Recruiter = &models.RecruiterProfile{
			CompanyID:   companyID.String,
			Designation: designation.String,
		}
	}

	return &user, nil
}
