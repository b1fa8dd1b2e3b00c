package registration

import (
	"errors"
	"regexp"

	"github.com/go-playground/validator/v10"
)

// Validation kinds. Match them with errors.Is on the error Validate returns.
var (
	ErrMissingField     = errors.New("missing required field")
	ErrInvalidName      = errors.New("invalid full name")
	ErrInvalidStudentID = errors.New("invalid student id")
	ErrInvalidEmail     = errors.New("invalid email")
	ErrInvalidPhone     = errors.New("invalid phone number")
)

var (
	nameRegex      = regexp.MustCompile(`^[A-Za-z]+(?: [A-Za-z]+)+$`)
	studentIDRegex = regexp.MustCompile(`^\d{8}$`)
	emailRegex     = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[A-Za-z]{2,}$`)
	phoneRegex     = regexp.MustCompile(`^\d{3}-\d{3}-\d{4}$`)
)

// ValidationError names the first rule a submission broke.
type ValidationError struct {
	Kind  error
	Field string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Kind.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()

	mustRegister(v, "fullname", nameRegex)
	mustRegister(v, "studentid", studentIDRegex)
	mustRegister(v, "demo_email", emailRegex)
	mustRegister(v, "phone", phoneRegex)

	return v
}

func mustRegister(v *validator.Validate, tag string, re *regexp.Regexp) {
	err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
		return re.MatchString(fl.Field().String())
	})
	if err != nil {
		panic(err)
	}
}

type fieldRule struct {
	field string
	value string
	tag   string
	kind  error
}

// Validate checks a raw submission and returns the normalized registration.
// The first failing rule wins: missing fields, then name, student id, email
// and phone. The slot reference is only checked for presence here; whether
// it names a real slot is decided at reservation time.
func Validate(req CreateRegistrationRequest) (Registration, error) {
	in := req.normalized()

	present := []fieldRule{
		{field: "fullName", value: in.FullName},
		{field: "email", value: in.Email},
		{field: "studentId", value: in.StudentID},
		{field: "number", value: in.Number},
		{field: "projectDescription", value: in.ProjectDescription},
		{field: "demoTimeId", value: string(in.DemoTimeID)},
	}

	for _, r := range present {
		if err := validate.Var(r.value, "required"); err != nil {
			return Registration{}, &ValidationError{Kind: ErrMissingField, Field: r.field}
		}
	}

	rules := []fieldRule{
		{field: "fullName", value: in.FullName, tag: "fullname", kind: ErrInvalidName},
		{field: "studentId", value: in.StudentID, tag: "studentid", kind: ErrInvalidStudentID},
		{field: "email", value: in.Email, tag: "demo_email", kind: ErrInvalidEmail},
		{field: "number", value: in.Number, tag: "phone", kind: ErrInvalidPhone},
	}

	for _, r := range rules {
		if err := validate.Var(r.value, r.tag); err != nil {
			return Registration{}, &ValidationError{Kind: r.kind, Field: r.field}
		}
	}

	return Registration{
		StudentID:          in.StudentID,
		FullName:           in.FullName,
		Email:              in.Email,
		Phone:              in.Number,
		ProjectDescription: in.ProjectDescription,
	}, nil
}
