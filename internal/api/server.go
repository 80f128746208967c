package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"employee-api/internal/auth"
	"employee-api/internal/controllers"
	"employee-api/internal/entity"

	"github.com/go-chi/chi/v5"
)

type Server struct {
	deps        *controllers.Dependens
	Controllers *controllers.Controllers
	Tokens      *auth.TokenService
}

func NewServer(deps *controllers.Dependens, tokens *auth.TokenService) *Server {
	return &Server{
		deps:        deps,
		Controllers: controllers.NewControllers(deps),
		Tokens:      tokens,
	}
}

// RegisterRoutes mounts the API. Mutating employee routes sit behind the
// bearer-token gate; reads and the credential endpoints do not.
func (s *Server) RegisterRoutes(r chi.Router) {
	r.Get("/", s.Root)
	r.Post("/register", s.Register)
	r.Post("/token", s.IssueToken)

	r.Route("/employees", func(r chi.Router) {
		r.Get("/", s.ListEmployees)
		r.Get("/avg-salary", s.AverageSalary)
		r.Get("/search", s.SearchBySkill)
		r.Get("/{id}", s.GetEmployee)

		r.With(s.requireAuth).Post("/", s.CreateEmployee)
		r.With(s.requireAuth).Put("/{id}", s.UpdateEmployee)
		r.With(s.requireAuth).Delete("/{id}", s.DeleteEmployee)
	})
}

// requireAuth verifies the bearer token before the wrapped handler runs, so a
// rejected request never reaches the controllers. The subject is discarded:
// any valid token grants full access.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			s.httpResponse(w, http.StatusUnauthorized, map[string]string{"error": "Authorization header missing"}, "error")
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenStr == authHeader {
			s.httpResponse(w, http.StatusUnauthorized, map[string]string{"error": "Invalid bearer token"}, "error")
			return
		}

		if _, err := s.Tokens.Verify(tokenStr); err != nil {
			s.deps.Logger.Warn("Token rejected", slog.String("error", err.Error()))

			message := "Invalid token"
			if errors.Is(err, entity.ErrTokenExpired) {
				message = "Token expired"
			}
			s.httpResponse(w, http.StatusUnauthorized, map[string]string{"error": message}, "error")
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *Server) Root(w http.ResponseWriter, _ *http.Request) {
	s.httpResponse(w, http.StatusOK, map[string]string{"message": "Employee API"}, "success")
}

// Register creates a credential record.
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req entity.RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.httpResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"}, "error")
		return
	}

	if err := s.Controllers.AuthController.Register(r.Context(), req.Username, req.Password); err != nil {
		s.errorResponse(w, err, "Failed to register user")
		return
	}

	s.httpResponse(w, http.StatusCreated, map[string]string{"message": "User registered successfully"}, "success")
}

// IssueToken authenticates a credential pair and returns a bearer token.
func (s *Server) IssueToken(w http.ResponseWriter, r *http.Request) {
	var req entity.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.httpResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"}, "error")
		return
	}

	subject, err := s.Controllers.AuthController.Authenticate(r.Context(), req.Username, req.Password)
	if err != nil {
		s.errorResponse(w, err, "Failed to authenticate")
		return
	}

	token, err := s.Tokens.Issue(subject)
	if err != nil {
		s.deps.Logger.Error("Error signing token", slog.String("error", err.Error()))
		s.httpResponse(w, http.StatusInternalServerError, map[string]string{"error": "Failed to issue token"}, "error")
		return
	}

	s.httpResponse(w, http.StatusOK, entity.TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   int64(s.Tokens.TTL().Seconds()),
	}, "success")
}

func (s *Server) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var emp entity.Employee
	if err := json.NewDecoder(r.Body).Decode(&emp); err != nil {
		s.httpResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"}, "error")
		return
	}

	created, err := s.Controllers.EmployeeController.Create(r.Context(), &emp)
	if err != nil {
		s.errorResponse(w, err, "Failed to create employee")
		return
	}

	s.httpResponse(w, http.StatusCreated, created, "success")
}

func (s *Server) GetEmployee(w http.ResponseWriter, r *http.Request) {
	emp, err := s.Controllers.EmployeeController.GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.errorResponse(w, err, "Failed to get employee")
		return
	}

	s.httpResponse(w, http.StatusOK, emp, "success")
}

func (s *Server) UpdateEmployee(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.httpResponse(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body"}, "error")
		return
	}

	emp, err := s.Controllers.EmployeeController.Update(r.Context(), chi.URLParam(r, "id"), body)
	if err != nil {
		s.errorResponse(w, err, "Failed to update employee")
		return
	}

	s.httpResponse(w, http.StatusOK, emp, "success")
}

func (s *Server) DeleteEmployee(w http.ResponseWriter, r *http.Request) {
	if err := s.Controllers.EmployeeController.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.errorResponse(w, err, "Failed to delete employee")
		return
	}

	s.httpResponse(w, http.StatusOK, map[string]string{"message": "Employee deleted successfully"}, "success")
}

func (s *Server) ListEmployees(w http.ResponseWriter, r *http.Request) {
	params, err := parseListParams(r)
	if err != nil {
		s.errorResponse(w, err, "Failed to list employees")
		return
	}

	list, err := s.Controllers.EmployeeController.List(r.Context(), params)
	if err != nil {
		s.errorResponse(w, err, "Failed to list employees")
		return
	}

	s.httpResponse(w, http.StatusOK, list, "success")
}

func (s *Server) SearchBySkill(w http.ResponseWriter, r *http.Request) {
	skill := r.URL.Query().Get("skill")
	if skill == "" {
		verr := &entity.ValidationError{}
		verr.Add("skill", "query parameter is required")
		s.errorResponse(w, verr, "Failed to search employees")
		return
	}

	employees, err := s.Controllers.EmployeeController.SearchBySkill(r.Context(), skill)
	if err != nil {
		s.errorResponse(w, err, "Failed to search employees")
		return
	}

	s.httpResponse(w, http.StatusOK, employees, "success")
}

func (s *Server) AverageSalary(w http.ResponseWriter, r *http.Request) {
	result, err := s.Controllers.EmployeeController.AverageSalaryByDepartment(r.Context())
	if err != nil {
		s.errorResponse(w, err, "Failed to aggregate salaries")
		return
	}

	s.httpResponse(w, http.StatusOK, result, "success")
}

func parseListParams(r *http.Request) (entity.ListParams, error) {
	params := entity.ListParams{}
	verr := &entity.ValidationError{}

	if department := r.URL.Query().Get("department"); department != "" {
		params.Department = &department
	}

	if raw := r.URL.Query().Get("page"); raw != "" {
		page, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add("page", "must be an integer")
		} else {
			params.Page = page
		}
	}

	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil {
			verr.Add("limit", "must be an integer")
		} else {
			params.Limit = limit
		}
	}

	if verr.HasErrors() {
		return params, verr
	}
	return params, nil
}

// errorResponse maps the domain error kinds onto statuses. Anything
// unrecognized is a storage or internal fault and surfaces only the fallback
// message.
func (s *Server) errorResponse(w http.ResponseWriter, err error, fallback string) {
	var verr *entity.ValidationError

	switch {
	case errors.As(err, &verr):
		s.httpResponse(w, http.StatusUnprocessableEntity, map[string]any{
			"error":   "Validation failed",
			"details": verr.Fields,
		}, "error")
	case errors.Is(err, entity.ErrConflict), errors.Is(err, entity.ErrUserConflict):
		s.httpResponse(w, http.StatusBadRequest, map[string]string{"error": err.Error()}, "error")
	case errors.Is(err, entity.ErrNotFound):
		s.httpResponse(w, http.StatusNotFound, map[string]string{"error": err.Error()}, "error")
	case errors.Is(err, entity.ErrInvalidCredentials):
		s.httpResponse(w, http.StatusUnauthorized, map[string]string{"error": err.Error()}, "error")
	default:
		s.deps.Logger.Error(fallback, slog.String("error", err.Error()))
		s.httpResponse(w, http.StatusInternalServerError, map[string]string{"error": fallback}, "error")
	}
}

func (s *Server) httpResponse(w http.ResponseWriter, status int, data any, respType string) {
	resp := map[string]any{
		"status": status,
		"type":   respType,
		"data":   data,
	}

	respData, marshalErr := json.Marshal(resp)
	if marshalErr != nil {
		s.deps.Logger.Error("Error marshaling response", slog.String("error", marshalErr.Error()))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if _, err := w.Write(respData); err != nil {
		s.deps.Logger.Error("Error writing response", slog.String("error", err.Error()))
	}
}
