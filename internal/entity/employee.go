package entity

// Employee is the stored record shape. JoiningDate is an ISO-8601 calendar
// date ("2006-01-02") so documents sort correctly as plain strings.
type Employee struct {
	EmployeeID  string   `json:"employee_id"`
	Name        string   `json:"name"`
	Department  string   `json:"department"`
	Salary      float64  `json:"salary"`
	JoiningDate string   `json:"joining_date"`
	Skills      []string `json:"skills"`
}

// UpdateEmployee is the merge-patch shape for PUT /employees/{id}. A nil
// field was not supplied and must stay untouched in the stored document;
// employee_id is immutable and has no slot here.
type UpdateEmployee struct {
	Name        *string   `json:"name,omitempty"`
	Department  *string   `json:"department,omitempty"`
	Salary      *float64  `json:"salary,omitempty"`
	JoiningDate *string   `json:"joining_date,omitempty"`
	Skills      *[]string `json:"skills,omitempty"`
}

// Patch returns only the supplied fields, keyed by document field name.
func (u *UpdateEmployee) Patch() map[string]any {
	patch := make(map[string]any)
	if u.Name != nil {
		patch["name"] = *u.Name
	}
	if u.Department != nil {
		patch["department"] = *u.Department
	}
	if u.Salary != nil {
		patch["salary"] = *u.Salary
	}
	if u.JoiningDate != nil {
		patch["joining_date"] = *u.JoiningDate
	}
	if u.Skills != nil {
		patch["skills"] = *u.Skills
	}
	return patch
}

type ListParams struct {
	Department *string
	Page       int
	Limit      int
}

type Pagination struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	TotalItems int  `json:"total_items"`
	TotalPages int  `json:"total_pages"`
	HasNext    bool `json:"has_next"`
	HasPrev    bool `json:"has_prev"`
}

type EmployeeList struct {
	Data       []Employee `json:"data"`
	Pagination Pagination `json:"pagination"`
}

type DepartmentSalary struct {
	Department string  `json:"department"`
	AvgSalary  float64 `json:"avg_salary"`
}
