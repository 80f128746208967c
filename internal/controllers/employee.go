package controllers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"employee-api/internal/entity"
	"employee-api/internal/validation"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/redis/go-redis/v9"
)

const avgSalaryCacheKey = "employees:avg_salary"

const (
	maxPageLimit     = 100
	defaultPageLimit = 10
)

type EmployeeController struct {
	deps *Dependens
}

func NewEmployeeController(deps *Dependens) *EmployeeController {
	return &EmployeeController{
		deps: deps,
	}
}

// Create validates the record, persists it and returns the stored document
// read back from the database. The primary key on employee_id is what
// actually guarantees uniqueness; the pre-insert lookup only produces a
// friendlier error for the common case.
func (c *EmployeeController) Create(ctx context.Context, emp *entity.Employee) (*entity.Employee, error) {
	if err := validation.ValidateCreate(emp, time.Now()); err != nil {
		return nil, err
	}

	var exists bool
	if err := c.deps.DB.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM employees WHERE employee_id = $1)", emp.EmployeeID).Scan(&exists); err != nil {
		c.deps.Logger.Error("Error checking employee uniqueness", slog.String("error", err.Error()))
		return nil, err
	}

	if exists {
		c.deps.Logger.Warn("Employee already exists", slog.String("employee_id", emp.EmployeeID))
		return nil, entity.ErrConflict
	}

	doc, err := json.Marshal(emp)
	if err != nil {
		return nil, fmt.Errorf("failed to encode employee: %w", err)
	}

	if _, err := c.deps.DB.Exec(ctx, "INSERT INTO employees (employee_id, doc) VALUES ($1, $2)", emp.EmployeeID, doc); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return nil, entity.ErrConflict
		}

		c.deps.Logger.Error("Error inserting employee", slog.String("error", err.Error()))
		return nil, err
	}

	c.deps.Logger.Info("Employee created", slog.String("employee_id", emp.EmployeeID))
	c.invalidateAvgSalaryCache(ctx)

	return c.GetByID(ctx, emp.EmployeeID)
}

func (c *EmployeeController) GetByID(ctx context.Context, employeeID string) (*entity.Employee, error) {
	var doc []byte
	if err := c.deps.DB.QueryRow(ctx, "SELECT doc FROM employees WHERE employee_id = $1", employeeID).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, entity.ErrNotFound
		}

		c.deps.Logger.Error("Error querying employee", slog.String("error", err.Error()))
		return nil, err
	}

	var emp entity.Employee
	if err := json.Unmarshal(doc, &emp); err != nil {
		c.deps.Logger.Error("Error decoding employee document", slog.String("error", err.Error()))
		return nil, err
	}

	return &emp, nil
}

// Update applies a merge-patch: only the supplied fields replace their stored
// counterparts, in a single statement keyed by employee_id.
func (c *EmployeeController) Update(ctx context.Context, employeeID string, body []byte) (*entity.Employee, error) {
	upd, err := validation.ValidateUpdate(body, time.Now())
	if err != nil {
		return nil, err
	}

	patch, err := json.Marshal(upd.Patch())
	if err != nil {
		return nil, fmt.Errorf("failed to encode patch: %w", err)
	}

	var doc []byte
	if err := c.deps.DB.QueryRow(ctx, "UPDATE employees SET doc = doc || $2::jsonb WHERE employee_id = $1 RETURNING doc", employeeID, patch).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			c.deps.Logger.Warn("Employee not found", slog.String("employee_id", employeeID))
			return nil, entity.ErrNotFound
		}

		c.deps.Logger.Error("Error updating employee", slog.String("error", err.Error()))
		return nil, err
	}

	var emp entity.Employee
	if err := json.Unmarshal(doc, &emp); err != nil {
		c.deps.Logger.Error("Error decoding employee document", slog.String("error", err.Error()))
		return nil, err
	}

	c.invalidateAvgSalaryCache(ctx)

	return &emp, nil
}

func (c *EmployeeController) Delete(ctx context.Context, employeeID string) error {
	result, err := c.deps.DB.Exec(ctx, "DELETE FROM employees WHERE employee_id = $1", employeeID)
	if err != nil {
		c.deps.Logger.Error("Error deleting employee", slog.String("error", err.Error()))
		return err
	}

	if result.RowsAffected() == 0 {
		c.deps.Logger.Warn("Employee not found", slog.String("employee_id", employeeID))
		return entity.ErrNotFound
	}

	c.invalidateAvgSalaryCache(ctx)

	return nil
}

// List filters by exact department match, orders by joining date descending
// (employee_id ascending breaks ties deterministically) and paginates.
// total_items counts every match regardless of the requested page, and pages
// past the end return an empty list with the same metadata shape.
func (c *EmployeeController) List(ctx context.Context, params entity.ListParams) (*entity.EmployeeList, error) {
	if params.Page == 0 {
		params.Page = 1
	}
	if params.Limit == 0 {
		params.Limit = defaultPageLimit
	}

	verr := &entity.ValidationError{}
	if params.Page < 1 {
		verr.Add("page", "must be at least 1")
	}
	if params.Limit < 1 || params.Limit > maxPageLimit {
		verr.Add("limit", fmt.Sprintf("must be between 1 and %d", maxPageLimit))
	}
	if verr.HasErrors() {
		return nil, verr
	}

	where := ""
	args := []any{}
	if params.Department != nil {
		where = " WHERE doc->>'department' = $1"
		args = append(args, *params.Department)
	}

	var totalItems int
	if err := c.deps.DB.QueryRow(ctx, "SELECT COUNT(*) FROM employees"+where, args...).Scan(&totalItems); err != nil {
		c.deps.Logger.Error("Error counting employees", slog.String("error", err.Error()))
		return nil, err
	}

	query := fmt.Sprintf("SELECT doc FROM employees%s ORDER BY doc->>'joining_date' DESC, employee_id ASC OFFSET $%d LIMIT $%d",
		where, len(args)+1, len(args)+2)
	args = append(args, (params.Page-1)*params.Limit, params.Limit)

	employees, err := c.collectEmployees(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	totalPages := (totalItems + params.Limit - 1) / params.Limit

	return &entity.EmployeeList{
		Data: employees,
		Pagination: entity.Pagination{
			Page:       params.Page,
			Limit:      params.Limit,
			TotalItems: totalItems,
			TotalPages: totalPages,
			HasNext:    params.Page < totalPages,
			HasPrev:    params.Page > 1,
		},
	}, nil
}

// SearchBySkill matches against the normalized skill set exactly: no
// substring matching, no case folding.
func (c *EmployeeController) SearchBySkill(ctx context.Context, skill string) ([]entity.Employee, error) {
	return c.collectEmployees(ctx, "SELECT doc FROM employees WHERE doc->'skills' ? $1 ORDER BY employee_id ASC", skill)
}

// AverageSalaryByDepartment groups every record by department and averages
// salary, rounded to 2 decimal places half away from zero by the database.
// The result is cached in Redis until the next mutation; cache trouble falls
// through to the aggregation query.
func (c *EmployeeController) AverageSalaryByDepartment(ctx context.Context) ([]entity.DepartmentSalary, error) {
	cached, err := c.deps.Redis.Get(ctx, avgSalaryCacheKey).Result()
	if err == nil {
		var result []entity.DepartmentSalary
		if unmarshalErr := json.Unmarshal([]byte(cached), &result); unmarshalErr == nil {
			return result, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.deps.Logger.Warn("Error reading avg salary cache", slog.String("error", err.Error()))
	}

	rows, err := c.deps.DB.Query(ctx,
		"SELECT doc->>'department' AS department, ROUND(AVG((doc->>'salary')::numeric), 2)::float8 AS avg_salary FROM employees GROUP BY 1 ORDER BY 1")
	if err != nil {
		c.deps.Logger.Error("Error aggregating salaries", slog.String("error", err.Error()))
		return nil, err
	}
	defer rows.Close()

	result := make([]entity.DepartmentSalary, 0)
	for rows.Next() {
		var ds entity.DepartmentSalary
		if err := rows.Scan(&ds.Department, &ds.AvgSalary); err != nil {
			c.deps.Logger.Error("Error scanning aggregation row", slog.String("error", err.Error()))
			return nil, err
		}
		result = append(result, ds)
	}
	if err := rows.Err(); err != nil {
		c.deps.Logger.Error("Error iterating aggregation rows", slog.String("error", err.Error()))
		return nil, err
	}

	if encoded, err := json.Marshal(result); err == nil {
		if err := c.deps.Redis.Set(ctx, avgSalaryCacheKey, encoded, c.deps.Config.Redis.AvgSalaryTTL).Err(); err != nil {
			c.deps.Logger.Warn("Error writing avg salary cache", slog.String("error", err.Error()))
		}
	}

	return result, nil
}

func (c *EmployeeController) collectEmployees(ctx context.Context, query string, args ...any) ([]entity.Employee, error) {
	rows, err := c.deps.DB.Query(ctx, query, args...)
	if err != nil {
		c.deps.Logger.Error("Error querying employees", slog.String("error", err.Error()))
		return nil, err
	}
	defer rows.Close()

	employees := make([]entity.Employee, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			c.deps.Logger.Error("Error scanning employee row", slog.String("error", err.Error()))
			return nil, err
		}

		var emp entity.Employee
		if err := json.Unmarshal(doc, &emp); err != nil {
			c.deps.Logger.Error("Error decoding employee document", slog.String("error", err.Error()))
			return nil, err
		}
		employees = append(employees, emp)
	}
	if err := rows.Err(); err != nil {
		c.deps.Logger.Error("Error iterating employee rows", slog.String("error", err.Error()))
		return nil, err
	}

	return employees, nil
}

func (c *EmployeeController) invalidateAvgSalaryCache(ctx context.Context) {
	if err := c.deps.Redis.Del(ctx, avgSalaryCacheKey).Err(); err != nil {
		c.deps.Logger.Warn("Error invalidating avg salary cache", slog.String("error", err.Error()))
	}
}
