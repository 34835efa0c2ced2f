package service

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/locvowork/sheetmap/internal/domain"
	"github.com/locvowork/sheetmap/internal/logger"
	"github.com/locvowork/sheetmap/pkg/googlecloud"
	"github.com/locvowork/sheetmap/pkg/sheetmap"
	"github.com/locvowork/sheetmap/pkg/workbook"
)

//go:embed employee_sheet.yaml
var employeeSheetYAML []byte

var ErrBatchNotFound = errors.New("import batch not found")

// AuditStore keeps the outcome of every import.
type AuditStore interface {
	RecordImport(ctx context.Context, batch *googlecloud.ImportBatch, issues []googlecloud.ImportIssue) error
	MarkCommitted(ctx context.Context, id string, rows int) error
	GetImportBatch(ctx context.Context, id string) (*googlecloud.ImportBatch, error)
	// ListIssues returns a page of issues in record order; pageSize 0 means all.
	ListIssues(ctx context.Context, batchID string, pageSize int, cursor string) (*googlecloud.IssuePage, error)
	DeleteImport(ctx context.Context, id string) error
}

type SheetOptions struct {
	DefaultFormat workbook.Format
	TimeLayout    string
	StrictImport  bool
}

type ImportRequest struct {
	FileName string
	Data     []byte
	Format   workbook.Format
	// Strict overrides SheetOptions.StrictImport when set.
	Strict *bool
	Commit bool
}

type ImportReport struct {
	BatchID       string                    `json:"batch_id"`
	TotalRows     int                       `json:"total_rows"`
	ValidRows     int                       `json:"valid_rows"`
	InvalidRows   int                       `json:"invalid_rows"`
	CommittedRows int                       `json:"committed_rows"`
	Issues        []googlecloud.ImportIssue `json:"issues,omitempty"`
}

type PreviewOptions struct {
	MaxColumns int
	NoHeader   bool
	Typed      bool
	SkipBlank  bool
}

type EmployeeSheetService interface {
	Export(ctx context.Context, format workbook.Format, filter domain.EmployeeFilter) ([]byte, error)
	Import(ctx context.Context, req ImportRequest) (*ImportReport, error)
	ImportBatch(ctx context.Context, batchID string) (*googlecloud.ImportBatch, error)
	ImportIssues(ctx context.Context, batchID string, pageSize int, cursor string) (*googlecloud.IssuePage, error)
	DeleteImport(ctx context.Context, batchID string) error
	DepartmentReport(ctx context.Context, format workbook.Format) ([]byte, error)
	PreviewTable(ctx context.Context, data []byte, opts PreviewOptions) (*sheetmap.TabularTable, error)
	DefaultFormat() workbook.Format
}

type employeeSheetService struct {
	repo     domain.EmployeeRepository
	audit    AuditStore
	registry *sheetmap.Registry
	mapping  *sheetmap.Mapping[domain.Employee]
	opts     SheetOptions
}

func NewEmployeeSheetService(repo domain.EmployeeRepository, audit AuditStore, opts SheetOptions) (EmployeeSheetService, error) {
	if opts.DefaultFormat == workbook.FormatUnknown {
		opts.DefaultFormat = workbook.FormatXlsx
	}
	if audit == nil {
		audit = NewMemoryAuditStore()
	}
	reg := sheetmap.NewRegistry(
		sheetmap.WithLogger(logger.Logger()),
		sheetmap.WithTimeLayout(opts.TimeLayout),
	)
	m, err := sheetmap.Register(reg, employeeSchema())
	if err != nil {
		return nil, err
	}
	if err := m.LoadMetadata(employeeSheetYAML); err != nil {
		return nil, fmt.Errorf("failed to load employee sheet metadata: %w", err)
	}
	return &employeeSheetService{repo: repo, audit: audit, registry: reg, mapping: m, opts: opts}, nil
}

func employeeSchema() sheetmap.Schema[domain.Employee] {
	return sheetmap.NewSchema("Employees",
		sheetmap.Field("EmpNo", func(e *domain.Employee) *int64 { return &e.EmpNo }),
		sheetmap.Field("FirstName", func(e *domain.Employee) *string { return &e.FirstName }),
		sheetmap.Field("LastName", func(e *domain.Employee) *string { return &e.LastName }),
		sheetmap.Field("Gender", func(e *domain.Employee) *string { return &e.Gender }),
		sheetmap.Field("BirthDate", func(e *domain.Employee) *time.Time { return &e.BirthDate }),
		sheetmap.Field("HireDate", func(e *domain.Employee) *time.Time { return &e.HireDate }),
		sheetmap.Field("Department", func(e *domain.Employee) *string { return &e.Department }),
		sheetmap.Field("Title", func(e *domain.Employee) *string { return &e.Title }),
		sheetmap.Field("Salary", func(e *domain.Employee) *float64 { return &e.Salary }),
		sheetmap.Field("Active", func(e *domain.Employee) *bool { return &e.Active }),
		sheetmap.Field("ManagerNo", func(e *domain.Employee) **int64 { return &e.ManagerNo }),
		sheetmap.Shadow("FullName", func(e *domain.Employee) any { return e.FirstName + " " + e.LastName }),
	)
}

func (s *employeeSheetService) DefaultFormat() workbook.Format { return s.opts.DefaultFormat }

func (s *employeeSheetService) format(f workbook.Format) workbook.Format {
	if f == workbook.FormatUnknown {
		return s.opts.DefaultFormat
	}
	return f
}

func (s *employeeSheetService) Export(ctx context.Context, format workbook.Format, filter domain.EmployeeFilter) ([]byte, error) {
	employees, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	records := make([]*domain.Employee, len(employees))
	for i := range employees {
		records[i] = &employees[i]
	}
	data, err := s.mapping.ToBytes(records, s.format(format))
	if err != nil {
		return nil, fmt.Errorf("failed to export employees: %w", err)
	}
	logger.InfoLog(ctx, "exported %d employees as %s", len(records), s.format(format))
	return data, nil
}

func (s *employeeSheetService) Import(ctx context.Context, req ImportRequest) (*ImportReport, error) {
	strict := s.opts.StrictImport
	if req.Strict != nil {
		strict = *req.Strict
	}
	var opts []sheetmap.ImportOption
	if strict {
		opts = append(opts, sheetmap.WithStrict())
	}

	records, results, err := s.mapping.ToEntityListWithValidation(req.Data, req.Format, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to read workbook: %w", err)
	}

	report := &ImportReport{BatchID: uuid.NewString()}
	var valid []domain.Employee
	for i, rec := range records {
		result := results[i]
		if rec == nil && result.Valid {
			continue
		}
		report.TotalRows++
		if rec != nil {
			result.Merge(checkDates(rec))
		}
		if !result.Valid {
			report.InvalidRows++
			report.Issues = append(report.Issues, issuesOf(i, result)...)
			continue
		}
		report.ValidRows++
		valid = append(valid, *rec)
	}

	format := req.Format
	if format == workbook.FormatUnknown {
		format, _ = workbook.DetectFormat(req.Data)
	}
	batch := &googlecloud.ImportBatch{
		ID:          report.BatchID,
		FileName:    req.FileName,
		Format:      format.String(),
		Strict:      strict,
		TotalRows:   report.TotalRows,
		ValidRows:   report.ValidRows,
		InvalidRows: report.InvalidRows,
	}
	if err := s.audit.RecordImport(ctx, batch, report.Issues); err != nil {
		logger.ErrorLog(ctx, "failed to record import %s: %v", report.BatchID, err)
		return nil, fmt.Errorf("failed to record import: %w", err)
	}

	if req.Commit && len(valid) > 0 {
		n, err := s.repo.Upsert(ctx, valid)
		if err != nil {
			return nil, err
		}
		report.CommittedRows = n
		if err := s.audit.MarkCommitted(ctx, report.BatchID, n); err != nil {
			logger.WarnLog(ctx, "failed to mark import %s committed: %v", report.BatchID, err)
		}
	}

	logger.InfoLog(ctx, "import %s: %d rows, %d valid, %d invalid, %d committed",
		report.BatchID, report.TotalRows, report.ValidRows, report.InvalidRows, report.CommittedRows)
	return report, nil
}

// checkDates adds the rules that span two columns.
func checkDates(e *domain.Employee) sheetmap.ValidationResult {
	result := sheetmap.NewValidationResult()
	if e.HireDate.IsZero() {
		result.AddError("Hire Date", "Hire Date is required")
	} else if !e.BirthDate.IsZero() && e.HireDate.Before(e.BirthDate) {
		result.AddError("Hire Date", "Hire Date precedes Birth Date")
	}
	if e.ManagerNo != nil && *e.ManagerNo == e.EmpNo {
		result.AddError("Manager No", "an employee cannot manage themselves")
	}
	return result
}

func issuesOf(record int, result sheetmap.ValidationResult) []googlecloud.ImportIssue {
	fields := make([]string, 0, len(result.Errors))
	for field := range result.Errors {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	issues := make([]googlecloud.ImportIssue, 0, len(fields))
	for _, field := range fields {
		issues = append(issues, googlecloud.ImportIssue{Record: record, Field: field, Messages: result.Errors[field]})
	}
	return issues
}

func (s *employeeSheetService) ImportBatch(ctx context.Context, batchID string) (*googlecloud.ImportBatch, error) {
	batch, err := s.audit.GetImportBatch(ctx, batchID)
	if googlecloud.IsNotFoundError(err) {
		return nil, ErrBatchNotFound
	}
	return batch, err
}

func (s *employeeSheetService) ImportIssues(ctx context.Context, batchID string, pageSize int, cursor string) (*googlecloud.IssuePage, error) {
	page, err := s.audit.ListIssues(ctx, batchID, pageSize, cursor)
	if googlecloud.IsNotFoundError(err) {
		return nil, ErrBatchNotFound
	}
	return page, err
}

func (s *employeeSheetService) DeleteImport(ctx context.Context, batchID string) error {
	err := s.audit.DeleteImport(ctx, batchID)
	if googlecloud.IsNotFoundError(err) {
		return ErrBatchNotFound
	}
	if err == nil {
		logger.InfoLog(ctx, "deleted import %s", batchID)
	}
	return err
}

func (s *employeeSheetService) DepartmentReport(ctx context.Context, format workbook.Format) ([]byte, error) {
	summaries, err := s.repo.DepartmentSummaries(ctx)
	if err != nil {
		return nil, err
	}
	table := sheetmap.NewTabularTable("Department", "Headcount", "Average Salary", "Max Salary")
	for _, d := range summaries {
		table.AddRow(d.Department, d.Headcount, d.AverageSalary, d.MaxSalary)
	}
	return s.registry.TableToBytes(table, s.format(format), sheetmap.WithTableSheet(0, "Departments"))
}

func (s *employeeSheetService) PreviewTable(ctx context.Context, data []byte, opts PreviewOptions) (*sheetmap.TabularTable, error) {
	var tableOpts []sheetmap.TableOption
	if opts.MaxColumns > 0 {
		tableOpts = append(tableOpts, sheetmap.WithMaxColumns(opts.MaxColumns))
	}
	if opts.NoHeader {
		tableOpts = append(tableOpts, sheetmap.WithoutHeader())
	}
	if opts.Typed {
		tableOpts = append(tableOpts, sheetmap.WithTypedValues())
	}
	if opts.SkipBlank {
		tableOpts = append(tableOpts, sheetmap.WithRemoveEmptyRows())
	}
	table, err := s.registry.ToDataTable(data, workbook.FormatUnknown, tableOpts...)
	if err != nil {
		return nil, err
	}
	logger.DebugLog(ctx, "previewed table with %d columns and %d rows", len(table.Columns), len(table.Rows))
	return table, nil
}

var _ AuditStore = (*MemoryAuditStore)(nil)

// MemoryAuditStore is the audit store used when Datastore is not configured.
type MemoryAuditStore struct {
	mu      sync.RWMutex
	batches map[string]googlecloud.ImportBatch
	issues  map[string][]googlecloud.ImportIssue
}

func NewMemoryAuditStore() *MemoryAuditStore {
	return &MemoryAuditStore{
		batches: make(map[string]googlecloud.ImportBatch),
		issues:  make(map[string][]googlecloud.ImportIssue),
	}
}

func (m *MemoryAuditStore) RecordImport(_ context.Context, batch *googlecloud.ImportBatch, issues []googlecloud.ImportIssue) error {
	if batch.ID == "" {
		return googlecloud.ErrInvalidKey
	}
	if batch.CreatedAt.IsZero() {
		batch.CreatedAt = time.Now()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.batches[batch.ID] = *batch
	stored := make([]googlecloud.ImportIssue, len(issues))
	for i, issue := range issues {
		issue.ID = int64(i + 1)
		issue.BatchID = batch.ID
		stored[i] = issue
	}
	m.issues[batch.ID] = stored
	return nil
}

func (m *MemoryAuditStore) MarkCommitted(_ context.Context, id string, rows int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	batch, ok := m.batches[id]
	if !ok {
		return googlecloud.ErrNotFound
	}
	batch.Committed = true
	batch.CommittedRows = rows
	m.batches[id] = batch
	return nil
}

func (m *MemoryAuditStore) GetImportBatch(_ context.Context, id string) (*googlecloud.ImportBatch, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	batch, ok := m.batches[id]
	if !ok {
		return nil, googlecloud.ErrNotFound
	}
	return &batch, nil
}

// ListIssues pages by offset; the cursor is the decimal offset of the next issue.
func (m *MemoryAuditStore) ListIssues(_ context.Context, batchID string, pageSize int, cursor string) (*googlecloud.IssuePage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.batches[batchID]; !ok {
		return nil, googlecloud.ErrNotFound
	}
	issues := m.issues[batchID]

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > len(issues) {
			return nil, fmt.Errorf("%w: %q", googlecloud.ErrInvalidCursor, cursor)
		}
		start = n
	}
	end := len(issues)
	if pageSize > 0 && start+pageSize < end {
		end = start + pageSize
	}

	page := &googlecloud.IssuePage{Issues: append([]googlecloud.ImportIssue{}, issues[start:end]...)}
	if pageSize > 0 && end-start == pageSize {
		page.NextCursor = strconv.Itoa(end)
		page.HasMore = true
	}
	return page, nil
}

func (m *MemoryAuditStore) DeleteImport(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.batches[id]; !ok {
		return googlecloud.ErrNotFound
	}
	delete(m.batches, id)
	delete(m.issues, id)
	return nil
}
