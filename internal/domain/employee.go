package domain

import (
	"context"
	"errors"
	"time"
)

var ErrEmployeeNotFound = errors.New("employee not found")

type Employee struct {
	EmpNo      int64     `json:"emp_no"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Gender     string    `json:"gender"`
	BirthDate  time.Time `json:"birth_date"`
	HireDate   time.Time `json:"hire_date"`
	Department string    `json:"department"`
	Title      string    `json:"title"`
	Salary     float64   `json:"salary"`
	Active     bool      `json:"active"`
	ManagerNo  *int64    `json:"manager_no,omitempty"`
}

type EmployeeFilter struct {
	Departments []string
	ActiveOnly  bool
	Limit       int
	Offset      int
}

// DepartmentSummary is one row of the department headcount report.
type DepartmentSummary struct {
	Department    string  `json:"department"`
	Headcount     int64   `json:"headcount"`
	AverageSalary float64 `json:"average_salary"`
	MaxSalary     float64 `json:"max_salary"`
}

type EmployeeRepository interface {
	List(ctx context.Context, filter EmployeeFilter) ([]Employee, error)
	GetByID(ctx context.Context, empNo int64) (*Employee, error)
	// Upsert inserts or replaces employees keyed by EmpNo in one transaction.
	Upsert(ctx context.Context, employees []Employee) (int, error)
	DepartmentSummaries(ctx context.Context) ([]DepartmentSummary, error)
}
