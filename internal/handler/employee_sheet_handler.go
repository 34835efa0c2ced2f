package handler

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/locvowork/sheetmap/internal/domain"
	"github.com/locvowork/sheetmap/internal/service"
	"github.com/locvowork/sheetmap/internal/service/serviceutils"
	"github.com/locvowork/sheetmap/pkg/googlecloud"
	"github.com/locvowork/sheetmap/pkg/workbook"
)

var errFileTooLarge = errors.New("uploaded file exceeds the size limit")

type EmployeeSheetHandler struct {
	svc            service.EmployeeSheetService
	maxUploadBytes int64
}

func NewEmployeeSheetHandler(svc service.EmployeeSheetService, maxUploadBytes int64) *EmployeeSheetHandler {
	return &EmployeeSheetHandler{svc: svc, maxUploadBytes: maxUploadBytes}
}

// ExportHandler streams the employees of the requested departments as a workbook.
func (h *EmployeeSheetHandler) ExportHandler(c echo.Context) error {
	format, err := h.formatParam(c)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid format", err)
	}

	filter := domain.EmployeeFilter{ActiveOnly: c.QueryParam("active") == "true"}
	for _, d := range strings.Split(c.QueryParam("department"), ",") {
		if d = strings.TrimSpace(d); d != "" {
			filter.Departments = append(filter.Departments, d)
		}
	}

	data, err := h.svc.Export(c.Request().Context(), format, filter)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusInternalServerError, "Failed to export employees", err)
	}
	return attachment(c, "employees", format, data)
}

// ImportHandler validates an uploaded workbook and optionally commits its valid rows.
func (h *EmployeeSheetHandler) ImportHandler(c echo.Context) error {
	ctx := c.Request().Context()

	name, data, err := h.upload(c)
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			return serviceutils.ResponseError(c, http.StatusRequestEntityTooLarge, "File too large", err)
		}
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid upload", err)
	}

	req := service.ImportRequest{FileName: name, Data: data}
	if f := c.QueryParam("format"); f != "" {
		if req.Format, err = workbook.ParseFormat(f); err != nil {
			return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid format", err)
		}
	}
	if s := c.QueryParam("strict"); s != "" {
		strict, err := strconv.ParseBool(s)
		if err != nil {
			return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid strict flag", err)
		}
		req.Strict = &strict
	}
	if s := c.QueryParam("commit"); s != "" {
		if req.Commit, err = strconv.ParseBool(s); err != nil {
			return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid commit flag", err)
		}
	}

	report, err := h.svc.Import(ctx, req)
	if err != nil {
		if errors.Is(err, workbook.ErrLegacyFormat) || errors.Is(err, workbook.ErrUnrecognizedFormat) {
			return serviceutils.ResponseError(c, http.StatusUnprocessableEntity, "Unsupported workbook", err)
		}
		return serviceutils.ResponseError(c, http.StatusInternalServerError, "Failed to import "+name, err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Import processed", report)
}

func (h *EmployeeSheetHandler) ImportBatchHandler(c echo.Context) error {
	batch, err := h.svc.ImportBatch(c.Request().Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			return serviceutils.ResponseError(c, http.StatusNotFound, "Import not found", err)
		}
		return serviceutils.ResponseError(c, http.StatusInternalServerError, "Failed to load import", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Import retrieved", batch)
}

// ImportIssuesHandler pages through the issues of an import with ?limit= and ?cursor=.
func (h *EmployeeSheetHandler) ImportIssuesHandler(c echo.Context) error {
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid limit", fmt.Errorf("limit must be a non-negative integer, got %q", s))
		}
		limit = n
	}

	page, err := h.svc.ImportIssues(c.Request().Context(), c.Param("id"), limit, c.QueryParam("cursor"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrBatchNotFound):
			return serviceutils.ResponseError(c, http.StatusNotFound, "Import not found", err)
		case errors.Is(err, googlecloud.ErrInvalidCursor):
			return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid cursor", err)
		}
		return serviceutils.ResponseError(c, http.StatusInternalServerError, "Failed to load import issues", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Import issues retrieved", page)
}

func (h *EmployeeSheetHandler) DeleteImportHandler(c echo.Context) error {
	if err := h.svc.DeleteImport(c.Request().Context(), c.Param("id")); err != nil {
		if errors.Is(err, service.ErrBatchNotFound) {
			return serviceutils.ResponseError(c, http.StatusNotFound, "Import not found", err)
		}
		return serviceutils.ResponseError(c, http.StatusInternalServerError, "Failed to delete import", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Import deleted", nil)
}

func (h *EmployeeSheetHandler) DepartmentReportHandler(c echo.Context) error {
	format, err := h.formatParam(c)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid format", err)
	}
	data, err := h.svc.DepartmentReport(c.Request().Context(), format)
	if err != nil {
		return serviceutils.ResponseError(c, http.StatusInternalServerError, "Failed to build department report", err)
	}
	return attachment(c, "departments", format, data)
}

// PreviewHandler returns the first sheet of an uploaded workbook as JSON.
func (h *EmployeeSheetHandler) PreviewHandler(c echo.Context) error {
	_, data, err := h.upload(c)
	if err != nil {
		if errors.Is(err, errFileTooLarge) {
			return serviceutils.ResponseError(c, http.StatusRequestEntityTooLarge, "File too large", err)
		}
		return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid upload", err)
	}

	var opts service.PreviewOptions
	if s := c.QueryParam("max_columns"); s != "" {
		if opts.MaxColumns, err = strconv.Atoi(s); err != nil || opts.MaxColumns < 0 {
			return serviceutils.ResponseError(c, http.StatusBadRequest, "Invalid max_columns", fmt.Errorf("max_columns must be a non-negative integer, got %q", s))
		}
	}
	opts.NoHeader = c.QueryParam("header") == "false"
	opts.Typed = c.QueryParam("typed") == "true"
	opts.SkipBlank = c.QueryParam("skip_blank") == "true"

	table, err := h.svc.PreviewTable(c.Request().Context(), data, opts)
	if err != nil {
		if errors.Is(err, workbook.ErrLegacyFormat) || errors.Is(err, workbook.ErrUnrecognizedFormat) {
			return serviceutils.ResponseError(c, http.StatusUnprocessableEntity, "Unsupported workbook", err)
		}
		return serviceutils.ResponseError(c, http.StatusInternalServerError, "Failed to read workbook", err)
	}
	return serviceutils.ResponseSuccess(c, http.StatusOK, "Table preview", table)
}

func (h *EmployeeSheetHandler) formatParam(c echo.Context) (workbook.Format, error) {
	f := c.QueryParam("format")
	if f == "" {
		return h.svc.DefaultFormat(), nil
	}
	return workbook.ParseFormat(f)
}

// upload reads the multipart "file" field, bounded by maxUploadBytes.
func (h *EmployeeSheetHandler) upload(c echo.Context) (string, []byte, error) {
	fh, err := c.FormFile("file")
	if err != nil {
		return "", nil, fmt.Errorf("missing file field: %w", err)
	}
	if h.maxUploadBytes > 0 && fh.Size > h.maxUploadBytes {
		return "", nil, errFileTooLarge
	}
	f, err := fh.Open()
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	r := io.Reader(f)
	if h.maxUploadBytes > 0 {
		r = io.LimitReader(f, h.maxUploadBytes+1)
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", nil, err
	}
	if h.maxUploadBytes > 0 && int64(len(data)) > h.maxUploadBytes {
		return "", nil, errFileTooLarge
	}
	return fh.Filename, data, nil
}

func attachment(c echo.Context, name string, format workbook.Format, data []byte) error {
	filename := fmt.Sprintf("%s_%s%s", name, time.Now().Format("20060102"), format.Extension())
	return serviceutils.ResponseAttachment(c, filename, format.ContentType(), data)
}
