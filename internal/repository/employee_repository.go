package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-hr-approvals/internal/database"
	"github.com/pesio-ai/be-hr-approvals/internal/errors"
)

// profileColumns are the employee fields a finalized update workflow may
// touch. Payload keys outside this set are rejected at submission.
var profileColumns = map[string]string{
	"name":        "name",
	"email":       "email",
	"phone":       "phone",
	"department":  "department",
	"designation": "designation",
}

// EmployeeRepository is the employee directory: manager lookups for the step
// policy, partial profile updates for the finalizer, and leave-balance
// mutations for the escalation chain.
type EmployeeRepository struct {
	db *database.DB
}

// NewEmployeeRepository creates a new EmployeeRepository.
func NewEmployeeRepository(db *database.DB) *EmployeeRepository {
	return &EmployeeRepository{db: db}
}

// GetByID retrieves an employee by primary key.
func (r *EmployeeRepository) GetByID(ctx context.Context, id string) (*Employee, error) {
	query := `
		SELECT id, name, email, role, manager_id,
		       phone, department, designation, leave_balances,
		       created_at, updated_at
		FROM employees
		WHERE id = $1
	`

	emp, err := scanEmployee(r.db.QueryRow(ctx, query, id))
	if err == pgx.ErrNoRows {
		return nil, errors.NotFound("employee", id)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get employee")
	}
	return emp, nil
}

// ValidateProfileFields checks that every payload key maps to an updatable
// profile column. Called at submission so bad payloads fail before a
// workflow is created, not at finalization.
func ValidateProfileFields(fields map[string]any) error {
	for key := range fields {
		if _, ok := profileColumns[key]; !ok {
			return errors.InvalidInput("payload", fmt.Sprintf("field %q is not updatable", key))
		}
	}
	return nil
}

// ApplyProfileUpdateTx applies a partial field update inside the finalizing
// transaction. Only fields present in the payload are touched.
func (r *EmployeeRepository) ApplyProfileUpdateTx(ctx context.Context, tx pgx.Tx, id string, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}

	setClauses := make([]string, 0, len(fields)+1)
	args := []any{id}
	for key, value := range fields {
		col, ok := profileColumns[key]
		if !ok {
			return errors.InvalidInput("payload", fmt.Sprintf("field %q is not updatable", key))
		}
		args = append(args, value)
		setClauses = append(setClauses, fmt.Sprintf("%s = $%d", col, len(args)))
	}
	setClauses = append(setClauses, "updated_at = NOW()")

	query := fmt.Sprintf(
		"UPDATE employees SET %s WHERE id = $1 RETURNING id",
		strings.Join(setClauses, ", "),
	)

	var returnedID string
	err := tx.QueryRow(ctx, query, args...).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("employee", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to apply profile update")
	}
	return nil
}

// AdjustLeaveBalanceTx adds delta days to the employee's balance for one
// category, inside the caller's transaction. Missing categories start at 0.
func (r *EmployeeRepository) AdjustLeaveBalanceTx(ctx context.Context, tx pgx.Tx, id, category string, delta float64) error {
	query := `
		UPDATE employees
		SET leave_balances = jsonb_set(
		        COALESCE(leave_balances, '{}'::jsonb),
		        ARRAY[$2],
		        to_jsonb(COALESCE((leave_balances ->> $2)::numeric, 0) + $3::numeric),
		        true
		    ),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING id
	`

	var returnedID string
	err := tx.QueryRow(ctx, query, id, category, delta).Scan(&returnedID)
	if err == pgx.ErrNoRows {
		return errors.NotFound("employee", id)
	}
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to adjust leave balance")
	}
	return nil
}

func scanEmployee(row rowScanner) (*Employee, error) {
	emp := &Employee{}
	var balancesJSON []byte
	err := row.Scan(
		&emp.ID,
		&emp.Name,
		&emp.Email,
		&emp.Role,
		&emp.ManagerID,
		&emp.Phone,
		&emp.Department,
		&emp.Designation,
		&balancesJSON,
		&emp.CreatedAt,
		&emp.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if balancesJSON != nil {
		if err := json.Unmarshal(balancesJSON, &emp.LeaveBalances); err != nil {
			return nil, err
		}
	}
	return emp, nil
}
