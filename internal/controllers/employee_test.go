package controllers

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"testing"

	"employee-api/internal/entity"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var (
	existsQuery = regexp.QuoteMeta("SELECT EXISTS (SELECT 1 FROM employees WHERE employee_id = $1)")
	insertQuery = regexp.QuoteMeta("INSERT INTO employees (employee_id, doc) VALUES ($1, $2)")
	getQuery    = regexp.QuoteMeta("SELECT doc FROM employees WHERE employee_id = $1")
	updateQuery = regexp.QuoteMeta("UPDATE employees SET doc = doc || $2::jsonb WHERE employee_id = $1 RETURNING doc")
	deleteQuery = regexp.QuoteMeta("DELETE FROM employees WHERE employee_id = $1")
)

func testEmployee() entity.Employee {
	return entity.Employee{
		EmployeeID:  "E123",
		Name:        "John Doe",
		Department:  "Engineering",
		Salary:      50000,
		JoiningDate: "2024-01-15",
		Skills:      []string{"Go", "PostgreSQL"},
	}
}

func docFor(t *testing.T, emp entity.Employee) []byte {
	t.Helper()

	doc, err := json.Marshal(emp)
	require.NoError(t, err)
	return doc
}

func TestEmployeeController_Create(t *testing.T) {
	deps, mockDB, mockRedis := newTestDeps(t)
	controller := NewEmployeeController(deps)

	emp := testEmployee()

	mockDB.ExpectQuery(existsQuery).WithArgs("E123").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mockDB.ExpectExec(insertQuery).WithArgs("E123", pgxmock.AnyArg()).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mockDB.ExpectQuery(getQuery).WithArgs("E123").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(docFor(t, emp)))
	expectCacheInvalidation(mockRedis)

	created, err := controller.Create(context.Background(), &emp)
	require.NoError(t, err)

	// The returned record is what storage handed back, not the input object.
	assert.Equal(t, testEmployee(), *created)
	assert.NoError(t, mockDB.ExpectationsWereMet())
	mockRedis.AssertExpectations(t)
}

func TestEmployeeController_CreateDuplicate(t *testing.T) {
	deps, mockDB, _ := newTestDeps(t)
	controller := NewEmployeeController(deps)

	emp := testEmployee()

	mockDB.ExpectQuery(existsQuery).WithArgs("E123").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	_, err := controller.Create(context.Background(), &emp)
	assert.ErrorIs(t, err, entity.ErrConflict)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestEmployeeController_CreateRaceLosesToUniqueIndex(t *testing.T) {
	deps, mockDB, _ := newTestDeps(t)
	controller := NewEmployeeController(deps)

	emp := testEmployee()

	// The fast-path check passes but a concurrent create wins the insert;
	// the unique-violation from the index still comes back as a conflict.
	mockDB.ExpectQuery(existsQuery).WithArgs("E123").
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(false))
	mockDB.ExpectExec(insertQuery).WithArgs("E123", pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: uniqueViolation})

	_, err := controller.Create(context.Background(), &emp)
	assert.ErrorIs(t, err, entity.ErrConflict)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestEmployeeController_CreateInvalid(t *testing.T) {
	deps, mockDB, _ := newTestDeps(t)
	controller := NewEmployeeController(deps)

	emp := testEmployee()
	emp.Salary = -1

	_, err := controller.Create(context.Background(), &emp)

	var verr *entity.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestEmployeeController_GetByID(t *testing.T) {
	deps, mockDB, _ := newTestDeps(t)
	controller := NewEmployeeController(deps)

	mockDB.ExpectQuery(getQuery).WithArgs("E123").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(docFor(t, testEmployee())))

	emp, err := controller.GetByID(context.Background(), "E123")
	require.NoError(t, err)
	assert.Equal(t, testEmployee(), *emp)
}

func TestEmployeeController_GetByIDNotFound(t *testing.T) {
	deps, mockDB, _ := newTestDeps(t)
	controller := NewEmployeeController(deps)

	mockDB.ExpectQuery(getQuery).WithArgs("E404").WillReturnError(pgx.ErrNoRows)

	_, err := controller.GetByID(context.Background(), "E404")
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestEmployeeController_Update(t *testing.T) {
	deps, mockDB, mockRedis := newTestDeps(t)
	controller := NewEmployeeController(deps)

	updated := testEmployee()
	updated.Salary = 60000

	mockDB.ExpectQuery(updateQuery).WithArgs("E123", pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(docFor(t, updated)))
	expectCacheInvalidation(mockRedis)

	emp, err := controller.Update(context.Background(), "E123", []byte(`{"salary": 60000}`))
	require.NoError(t, err)
	assert.Equal(t, 60000.0, emp.Salary)
	assert.Equal(t, "John Doe", emp.Name)
	assert.NoError(t, mockDB.ExpectationsWereMet())
	mockRedis.AssertExpectations(t)
}

func TestEmployeeController_UpdateEmptyBody(t *testing.T) {
	deps, mockDB, _ := newTestDeps(t)
	controller := NewEmployeeController(deps)

	for _, body := range []string{`{}`, `{"employee_id": "E999"}`} {
		_, err := controller.Update(context.Background(), "E123", []byte(body))

		var verr *entity.ValidationError
		require.ErrorAs(t, err, &verr, "body %s", body)
	}

	// No statement may reach storage for an empty update.
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestEmployeeController_UpdateNotFound(t *testing.T) {
	deps, mockDB, _ := newTestDeps(t)
	controller := NewEmployeeController(deps)

	mockDB.ExpectQuery(updateQuery).WithArgs("E404", pgxmock.AnyArg()).
		WillReturnError(pgx.ErrNoRows)

	_, err := controller.Update(context.Background(), "E404", []byte(`{"salary": 60000}`))
	assert.ErrorIs(t, err, entity.ErrNotFound)
}

func TestEmployeeController_Delete(t *testing.T) {
	deps, mockDB, mockRedis := newTestDeps(t)
	controller := NewEmployeeController(deps)

	mockDB.ExpectExec(deleteQuery).WithArgs("E123").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))
	expectCacheInvalidation(mockRedis)

	require.NoError(t, controller.Delete(context.Background(), "E123"))
	mockRedis.AssertExpectations(t)
}

func TestEmployeeController_DeleteNotFound(t *testing.T) {
	deps, mockDB, _ := newTestDeps(t)
	controller := NewEmployeeController(deps)

	// Deleting a missing id twice reports NotFound both times.
	for range 2 {
		mockDB.ExpectExec(deleteQuery).WithArgs("E404").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))

		err := controller.Delete(context.Background(), "E404")
		assert.ErrorIs(t, err, entity.ErrNotFound)
	}
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func listDocs(t *testing.T, count int) *pgxmock.Rows {
	t.Helper()

	rows := pgxmock.NewRows([]string{"doc"})
	for i := range count {
		emp := testEmployee()
		emp.EmployeeID = fmt.Sprintf("E%03d", i)
		rows.AddRow(docFor(t, emp))
	}
	return rows
}

func TestEmployeeController_ListPagination(t *testing.T) {
	countQuery := regexp.QuoteMeta("SELECT COUNT(*) FROM employees")
	pageQuery := regexp.QuoteMeta("SELECT doc FROM employees ORDER BY doc->>'joining_date' DESC, employee_id ASC OFFSET $1 LIMIT $2")

	tests := []struct {
		name    string
		page    int
		items   int
		hasNext bool
		hasPrev bool
	}{
		{"first page", 1, 10, true, false},
		{"last page", 3, 5, false, true},
		{"past the end", 4, 0, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps, mockDB, _ := newTestDeps(t)
			controller := NewEmployeeController(deps)

			mockDB.ExpectQuery(countQuery).
				WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(25))
			mockDB.ExpectQuery(pageQuery).WithArgs((tt.page-1)*10, 10).
				WillReturnRows(listDocs(t, tt.items))

			list, err := controller.List(context.Background(), entity.ListParams{Page: tt.page, Limit: 10})
			require.NoError(t, err)

			assert.Len(t, list.Data, tt.items)
			assert.Equal(t, tt.page, list.Pagination.Page)
			assert.Equal(t, 10, list.Pagination.Limit)
			assert.Equal(t, 25, list.Pagination.TotalItems)
			assert.Equal(t, 3, list.Pagination.TotalPages)
			assert.Equal(t, tt.hasNext, list.Pagination.HasNext)
			assert.Equal(t, tt.hasPrev, list.Pagination.HasPrev)
			assert.NoError(t, mockDB.ExpectationsWereMet())
		})
	}
}

func TestEmployeeController_ListWithDepartmentFilter(t *testing.T) {
	deps, mockDB, _ := newTestDeps(t)
	controller := NewEmployeeController(deps)

	countQuery := regexp.QuoteMeta("SELECT COUNT(*) FROM employees WHERE doc->>'department' = $1")
	pageQuery := regexp.QuoteMeta("SELECT doc FROM employees WHERE doc->>'department' = $1 ORDER BY doc->>'joining_date' DESC, employee_id ASC OFFSET $2 LIMIT $3")

	mockDB.ExpectQuery(countQuery).WithArgs("Engineering").
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(1))
	mockDB.ExpectQuery(pageQuery).WithArgs("Engineering", 0, 10).
		WillReturnRows(listDocs(t, 1))

	department := "Engineering"
	list, err := controller.List(context.Background(), entity.ListParams{Department: &department})
	require.NoError(t, err)

	assert.Len(t, list.Data, 1)
	assert.Equal(t, 1, list.Pagination.TotalItems)
	assert.Equal(t, 1, list.Pagination.TotalPages)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestEmployeeController_ListInvalidParams(t *testing.T) {
	deps, mockDB, _ := newTestDeps(t)
	controller := NewEmployeeController(deps)

	for _, params := range []entity.ListParams{
		{Page: -1, Limit: 10},
		{Page: 1, Limit: 101},
		{Page: 1, Limit: -5},
	} {
		_, err := controller.List(context.Background(), params)

		var verr *entity.ValidationError
		require.ErrorAs(t, err, &verr, "params %+v", params)
	}

	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestEmployeeController_SearchBySkill(t *testing.T) {
	deps, mockDB, _ := newTestDeps(t)
	controller := NewEmployeeController(deps)

	query := regexp.QuoteMeta("SELECT doc FROM employees WHERE doc->'skills' ? $1 ORDER BY employee_id ASC")
	mockDB.ExpectQuery(query).WithArgs("Go").WillReturnRows(listDocs(t, 2))

	employees, err := controller.SearchBySkill(context.Background(), "Go")
	require.NoError(t, err)
	assert.Len(t, employees, 2)
	assert.NoError(t, mockDB.ExpectationsWereMet())
}

func TestEmployeeController_AverageSalaryCacheMiss(t *testing.T) {
	deps, mockDB, mockRedis := newTestDeps(t)
	controller := NewEmployeeController(deps)

	missCmd := redis.NewStringCmd(context.Background())
	missCmd.SetErr(redis.Nil)
	mockRedis.On("Get", mock.Anything, avgSalaryCacheKey).Return(missCmd)
	mockRedis.On("Set", mock.Anything, avgSalaryCacheKey, mock.Anything, deps.Config.Redis.AvgSalaryTTL).
		Return(redis.NewStatusCmd(context.Background()))

	query := regexp.QuoteMeta("SELECT doc->>'department' AS department, ROUND(AVG((doc->>'salary')::numeric), 2)::float8 AS avg_salary FROM employees GROUP BY 1 ORDER BY 1")
	mockDB.ExpectQuery(query).WillReturnRows(
		pgxmock.NewRows([]string{"department", "avg_salary"}).
			AddRow("Eng", 150.0).
			AddRow("Sales", 300.0))

	result, err := controller.AverageSalaryByDepartment(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []entity.DepartmentSalary{
		{Department: "Eng", AvgSalary: 150.0},
		{Department: "Sales", AvgSalary: 300.0},
	}, result)
	assert.NoError(t, mockDB.ExpectationsWereMet())
	mockRedis.AssertExpectations(t)
}

func TestEmployeeController_AverageSalaryCacheHit(t *testing.T) {
	deps, mockDB, mockRedis := newTestDeps(t)
	controller := NewEmployeeController(deps)

	cached := []entity.DepartmentSalary{{Department: "Eng", AvgSalary: 150.0}}
	encoded, err := json.Marshal(cached)
	require.NoError(t, err)

	hitCmd := redis.NewStringCmd(context.Background())
	hitCmd.SetVal(string(encoded))
	mockRedis.On("Get", mock.Anything, avgSalaryCacheKey).Return(hitCmd)

	result, err := controller.AverageSalaryByDepartment(context.Background())
	require.NoError(t, err)

	assert.Equal(t, cached, result)

	// A cache hit never touches the database.
	assert.NoError(t, mockDB.ExpectationsWereMet())
	mockRedis.AssertExpectations(t)
}
