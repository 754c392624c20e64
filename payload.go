package approval

import (
	"encoding/json"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"
)

// MaxGrade is the highest grade offered by the registration form.
const MaxGrade = 7

// ChildPayload is a child listed on a parent registration.
type ChildPayload struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Grade     *int   `json:"grade"`
}

func (c ChildPayload) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.FirstName, validation.Required),
		validation.Field(&c.LastName, validation.Required),
		validation.Field(&c.Grade, validation.NotNil, validation.Min(0), validation.Max(MaxGrade)),
	)
}

// ParentPayload is the registration form of a parent.
type ParentPayload struct {
	FirstName string         `json:"firstName"`
	LastName  string         `json:"lastName"`
	IDNumber  string         `json:"idNumber"`
	Email     string         `json:"email"`
	Children  []ChildPayload `json:"children"`
}

func (p ParentPayload) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required),
		validation.Field(&p.LastName, validation.Required),
		validation.Field(&p.IDNumber, validation.Required),
		validation.Field(&p.Email, is.Email),
		validation.Field(&p.Children, validation.Required, validation.Length(1, 0)),
	)
	if err != nil {
		return err
	}

	for i, child := range p.Children {
		if err := child.Validate(); err != nil {
			return validation.Errors{fmt.Sprintf("children[%d]", i): err}
		}
	}
	return nil
}

// TeacherPayload is the registration form of a teacher.
type TeacherPayload struct {
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Email        string `json:"email"`
	GradesTaught []int  `json:"gradesTaught"`
}

func (p TeacherPayload) Validate() error {
	err := validation.ValidateStruct(&p,
		validation.Field(&p.FirstName, validation.Required),
		validation.Field(&p.LastName, validation.Required),
		validation.Field(&p.Email, is.Email),
		validation.Field(&p.GradesTaught, validation.Required, validation.Length(1, 0)),
	)
	if err != nil {
		return err
	}

	for i, grade := range p.GradesTaught {
		if grade < 0 || grade > MaxGrade {
			return validation.Errors{
				fmt.Sprintf("gradesTaught[%d]", i): fmt.Errorf("must be between 0 and %d", MaxGrade),
			}
		}
	}
	return nil
}

// ValidatePayload checks the role specific shape of a registration payload.
func ValidatePayload(role Role, payload map[string]any) error {
	var target validation.Validatable
	switch role {
	case RoleParent:
		target = &ParentPayload{}
	case RoleTeacher:
		target = &TeacherPayload{}
	default:
		return errorf(ErrInvalidArgument, map[string]any{"role": role}, "unsupported role %q", role)
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return errorf(ErrInvalidArgument, nil, "payload is not serializable: %v", err)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return errorf(ErrInvalidArgument, nil, "payload does not match %s form: %v", role, err)
	}

	if err := target.Validate(); err != nil {
		return errorf(ErrInvalidArgument, map[string]any{"role": role, "fields": err.Error()},
			"invalid %s payload", role)
	}
	return nil
}
