package model

// Person is the provider's view of an individual.
type Person struct {
	ID          string   `json:"id,omitempty"`
	Name        string   `json:"name,omitempty"`
	Emails      []string `json:"emails,omitempty"`
	Phones      []string `json:"phones,omitempty"`
	Title       string   `json:"title,omitempty"`
	Location    string   `json:"location,omitempty"`
	LinkedInURL string   `json:"linkedin_url,omitempty"`
}

// Organization is the provider's view of a person's current employer.
type Organization struct {
	ID            string `json:"id,omitempty"`
	Name          string `json:"name,omitempty"`
	Domain        string `json:"domain,omitempty"`
	Website       string `json:"website,omitempty"`
	Industry      string `json:"industry,omitempty"`
	EmployeeCount string `json:"employee_count,omitempty"`
	Location      string `json:"location,omitempty"`
}

// ResultKind tags the variant held by a Result.
type ResultKind string

const (
	ResultSuccess  ResultKind = "success"
	ResultNotFound ResultKind = "not_found"
	ResultError    ResultKind = "error"
)

// Result is the outcome of one enrichment. Exactly one of Success, NotFound
// or Error is set, matching Kind.
type Result struct {
	Kind     ResultKind      `json:"kind"`
	Success  *SuccessResult  `json:"success,omitempty"`
	NotFound *NotFoundResult `json:"not_found,omitempty"`
	Error    *ErrorResult    `json:"error,omitempty"`
}

// SuccessResult carries the matched person and company.
type SuccessResult struct {
	Person  *Person       `json:"person,omitempty"`
	Company *Organization `json:"company,omitempty"`
}

// NotFoundResult carries the provider's no-match message.
type NotFoundResult struct {
	Message string `json:"message"`
}

// ErrorResult describes a failed enrichment.
type ErrorResult struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

// NewSuccess builds a success Result.
func NewSuccess(p *Person, c *Organization) Result {
	return Result{Kind: ResultSuccess, Success: &SuccessResult{Person: p, Company: c}}
}

// NewNotFound builds a not-found Result.
func NewNotFound(msg string) Result {
	return Result{Kind: ResultNotFound, NotFound: &NotFoundResult{Message: msg}}
}

// NewError builds an error Result.
func NewError(kind, msg string) Result {
	return Result{Kind: ResultError, Error: &ErrorResult{Kind: kind, Message: msg}}
}

// IsSuccess reports whether the result is a success.
func (r Result) IsSuccess() bool { return r.Kind == ResultSuccess }
