package validation

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"employee-api/internal/entity"
)

const (
	MinJoiningDate = "2000-01-01"
	DateLayout     = "2006-01-02"

	minSkills = 1
	maxSkills = 20
)

var (
	employeeIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	namePattern       = regexp.MustCompile(`^[A-Za-z\s.'-]+$`)
	departmentPattern = regexp.MustCompile(`^[A-Za-z\s&-]+$`)
	skillPattern      = regexp.MustCompile(`^[A-Za-z0-9\s+#.&/-]+$`)
	usernamePattern   = regexp.MustCompile(`^[A-Za-z0-9_.-]+$`)
)

// ValidateCreate checks every field of a new record and normalizes the skill
// list in place. All failures are reported in one ValidationError.
func ValidateCreate(emp *entity.Employee, now time.Time) error {
	verr := &entity.ValidationError{}

	checkString(verr, "employee_id", emp.EmployeeID, 3, 20, employeeIDPattern,
		"must be 3-20 characters of letters, digits, hyphens or underscores")
	checkString(verr, "name", emp.Name, 2, 100, namePattern,
		"must be 2-100 characters of letters, spaces, apostrophes, hyphens or dots")
	checkString(verr, "department", emp.Department, 2, 50, departmentPattern,
		"must be 2-50 characters of letters, spaces, ampersands or hyphens")
	checkSalary(verr, emp.Salary)
	checkJoiningDate(verr, emp.JoiningDate, now)

	if skills, ok := checkSkills(verr, emp.Skills); ok {
		emp.Skills = skills
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

// ValidateUpdate parses a merge-patch body and validates each supplied field.
// Unknown keys are ignored; a present-but-null value is rejected so it can
// never be mistaken for "not supplied". An update carrying nothing usable
// fails validation rather than succeeding as a no-op.
func ValidateUpdate(body []byte, now time.Time) (*entity.UpdateEmployee, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		verr := &entity.ValidationError{}
		verr.Add("body", "must be a JSON object")
		return nil, verr
	}

	verr := &entity.ValidationError{}
	upd := &entity.UpdateEmployee{}
	recognized := 0

	for _, field := range []string{"name", "department", "salary", "joining_date", "skills"} {
		value, present := raw[field]
		if !present {
			continue
		}
		recognized++

		if string(value) == "null" {
			verr.Add(field, "must not be null")
			continue
		}

		switch field {
		case "name":
			if s, ok := decodeString(verr, field, value); ok {
				checkString(verr, field, s, 2, 100, namePattern,
					"must be 2-100 characters of letters, spaces, apostrophes, hyphens or dots")
				upd.Name = &s
			}
		case "department":
			if s, ok := decodeString(verr, field, value); ok {
				checkString(verr, field, s, 2, 50, departmentPattern,
					"must be 2-50 characters of letters, spaces, ampersands or hyphens")
				upd.Department = &s
			}
		case "salary":
			var f float64
			if err := json.Unmarshal(value, &f); err != nil {
				verr.Add(field, "must be a number")
				continue
			}
			checkSalary(verr, f)
			upd.Salary = &f
		case "joining_date":
			if s, ok := decodeString(verr, field, value); ok {
				checkJoiningDate(verr, s, now)
				upd.JoiningDate = &s
			}
		case "skills":
			var list []string
			if err := json.Unmarshal(value, &list); err != nil {
				verr.Add(field, "must be an array of strings")
				continue
			}
			if normalized, ok := checkSkills(verr, list); ok {
				upd.Skills = &normalized
			}
		}
	}

	if recognized == 0 {
		verr.Add("body", "no fields to update")
	}

	if verr.HasErrors() {
		return nil, verr
	}
	return upd, nil
}

// ValidateCredentials gates registration input before hashing.
func ValidateCredentials(username, password string) error {
	verr := &entity.ValidationError{}

	checkString(verr, "username", username, 3, 50, usernamePattern,
		"must be 3-50 characters of letters, digits, dots, hyphens or underscores")

	// 72 bytes is bcrypt's input limit.
	if len(password) < 8 || len(password) > 72 {
		verr.Add("password", "must be 8-72 characters")
	}

	if verr.HasErrors() {
		return verr
	}
	return nil
}

func decodeString(verr *entity.ValidationError, field string, value json.RawMessage) (string, bool) {
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		verr.Add(field, "must be a string")
		return "", false
	}
	return s, true
}

func checkString(verr *entity.ValidationError, field, value string, minLen, maxLen int, pattern *regexp.Regexp, message string) {
	if len(value) < minLen || len(value) > maxLen || !pattern.MatchString(value) {
		verr.Add(field, message)
	}
}

func checkSalary(verr *entity.ValidationError, salary float64) {
	if salary <= 0 || salary > 1000000 {
		verr.Add("salary", "must be positive and not exceed 1000000")
	}
}

func checkJoiningDate(verr *entity.ValidationError, value string, now time.Time) {
	if _, err := time.Parse(DateLayout, value); err != nil {
		verr.Add("joining_date", "must be a calendar date in YYYY-MM-DD format")
		return
	}

	// ISO dates compare correctly as strings; "today" is read per call, never
	// cached across requests.
	today := now.Format(DateLayout)
	if value > today {
		verr.Add("joining_date", "cannot be in the future")
	}
	if value < MinJoiningDate {
		verr.Add("joining_date", "cannot be before the year 2000")
	}
}

// checkSkills validates each entry, then trims, deduplicates (case-sensitive)
// and sorts by code point. The normalized list is what gets persisted and
// returned, so running it through again is a no-op.
func checkSkills(verr *entity.ValidationError, skills []string) ([]string, bool) {
	if len(skills) < minSkills || len(skills) > maxSkills {
		verr.Add("skills", fmt.Sprintf("must contain %d-%d entries", minSkills, maxSkills))
		return nil, false
	}

	valid := true
	for _, skill := range skills {
		if strings.TrimSpace(skill) == "" {
			verr.Add("skills", "entries cannot be empty or whitespace")
			valid = false
			continue
		}
		if len(skill) > 50 {
			verr.Add("skills", "entries cannot exceed 50 characters")
			valid = false
			continue
		}
		if !skillPattern.MatchString(skill) {
			verr.Add("skills", fmt.Sprintf("entry %q contains invalid characters", skill))
			valid = false
		}
	}
	if !valid {
		return nil, false
	}

	seen := make(map[string]struct{}, len(skills))
	normalized := make([]string, 0, len(skills))
	for _, skill := range skills {
		trimmed := strings.TrimSpace(skill)
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		normalized = append(normalized, trimmed)
	}
	sort.Strings(normalized)

	return normalized, true
}
