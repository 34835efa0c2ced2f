package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lib/pq"
	"github.com/locvowork/sheetmap/internal/domain"
)

const employeeColumns = `emp_no, first_name, last_name, gender, birth_date, hire_date,
	department, title, salary, active, manager_no`

type employeeRepository struct {
	db *sql.DB
}

func NewEmployeeRepository(db *sql.DB) domain.EmployeeRepository {
	return &employeeRepository{db: db}
}

// listQuery builds the filtered select; departments are bound as one array parameter.
func listQuery(filter domain.EmployeeFilter) (string, []interface{}) {
	var (
		where []string
		args  []interface{}
	)
	if len(filter.Departments) > 0 {
		args = append(args, pq.Array(filter.Departments))
		where = append(where, fmt.Sprintf("department = ANY($%d)", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "active")
	}

	var b strings.Builder
	b.WriteString("SELECT " + employeeColumns + " FROM employees")
	if len(where) > 0 {
		b.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	b.WriteString(" ORDER BY emp_no")
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		fmt.Fprintf(&b, " LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		fmt.Fprintf(&b, " OFFSET $%d", len(args))
	}
	return b.String(), args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanEmployee(row rowScanner) (domain.Employee, error) {
	var (
		e       domain.Employee
		manager sql.NullInt64
	)
	err := row.Scan(&e.EmpNo, &e.FirstName, &e.LastName, &e.Gender, &e.BirthDate, &e.HireDate,
		&e.Department, &e.Title, &e.Salary, &e.Active, &manager)
	if err != nil {
		return e, err
	}
	if manager.Valid {
		e.ManagerNo = &manager.Int64
	}
	return e, nil
}

func (r *employeeRepository) List(ctx context.Context, filter domain.EmployeeFilter) ([]domain.Employee, error) {
	query, args := listQuery(filter)
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []domain.Employee
	for rows.Next() {
		e, err := scanEmployee(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		employees = append(employees, e)
	}
	return employees, rows.Err()
}

func (r *employeeRepository) GetByID(ctx context.Context, empNo int64) (*domain.Employee, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+employeeColumns+" FROM employees WHERE emp_no = $1", empNo)
	e, err := scanEmployee(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrEmployeeNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get employee %d: %w", empNo, err)
	}
	return &e, nil
}

const upsertEmployee = `INSERT INTO employees (` + employeeColumns + `)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
ON CONFLICT (emp_no) DO UPDATE SET
	first_name = EXCLUDED.first_name,
	last_name = EXCLUDED.last_name,
	gender = EXCLUDED.gender,
	birth_date = EXCLUDED.birth_date,
	hire_date = EXCLUDED.hire_date,
	department = EXCLUDED.department,
	title = EXCLUDED.title,
	salary = EXCLUDED.salary,
	active = EXCLUDED.active,
	manager_no = EXCLUDED.manager_no`

func (r *employeeRepository) Upsert(ctx context.Context, employees []domain.Employee) (int, error) {
	if len(employees) == 0 {
		return 0, nil
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertEmployee)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close()

	for _, e := range employees {
		var manager sql.NullInt64
		if e.ManagerNo != nil {
			manager = sql.NullInt64{Int64: *e.ManagerNo, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, e.EmpNo, e.FirstName, e.LastName, e.Gender, e.BirthDate,
			e.HireDate, e.Department, e.Title, e.Salary, e.Active, manager); err != nil {
			return 0, fmt.Errorf("failed to upsert employee %d: %w", e.EmpNo, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit upsert: %w", err)
	}
	return len(employees), nil
}

func (r *employeeRepository) DepartmentSummaries(ctx context.Context) ([]domain.DepartmentSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT department, COUNT(*), AVG(salary), MAX(salary)
FROM employees WHERE active GROUP BY department ORDER BY department`)
	if err != nil {
		return nil, fmt.Errorf("failed to query department summaries: %w", err)
	}
	defer rows.Close()

	var out []domain.DepartmentSummary
	for rows.Next() {
		var s domain.DepartmentSummary
		if err := rows.Scan(&s.Department, &s.Headcount, &s.AverageSalary, &s.MaxSalary); err != nil {
			return nil, fmt.Errorf("failed to scan department summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
