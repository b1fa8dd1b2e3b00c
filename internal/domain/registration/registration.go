package registration

import (
	"bytes"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"time"
)

type Registration struct {
	ID                 int64     `json:"id"`
	StudentID          string    `json:"studentId"`
	FullName           string    `json:"fullName"`
	Email              string    `json:"email"`
	Phone              string    `json:"phone"`
	ProjectDescription string    `json:"projectDescription"`
	SlotID             int64     `json:"slotId"`
	CreatedAt          time.Time `json:"createdAt"`
}

// View is a registration joined with the time of its slot.
type View struct {
	Registration
	SlotTime time.Time `json:"slotTime"`
}

// student id already holds a booking
var ErrDuplicateStudent = errors.New("student already registered")

// CreateRegistrationRequest is the raw submission, either JSON or form
// encoded. Nothing is checked at bind time; Validate owns every rule so the
// reported reason follows a fixed priority.
type CreateRegistrationRequest struct {
	FullName           string  `json:"fullName" form:"fullName"`
	Email              string  `json:"email" form:"email"`
	StudentID          string  `json:"studentId" form:"studentId"`
	Number             string  `json:"number" form:"number"`
	ProjectDescription string  `json:"projectDescription" form:"projectDescription"`
	DemoTimeID         SlotRef `json:"demoTimeId" form:"demoTimeId"`
}

// SlotRef accepts the slot id as a JSON string or number. HTML forms send
// strings, scripted clients usually send numbers.
type SlotRef string

func (r *SlotRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)

	if bytes.Equal(data, []byte("null")) {
		*r = ""
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*r = SlotRef(s)
		return nil
	}

	var n json.Number
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&n); err != nil {
		return &json.UnmarshalTypeError{Value: string(data), Type: reflect.TypeOf("")}
	}

	*r = SlotRef(n.String())
	return nil
}

func (req CreateRegistrationRequest) normalized() CreateRegistrationRequest {
	return CreateRegistrationRequest{
		FullName:           strings.TrimSpace(req.FullName),
		Email:              strings.TrimSpace(req.Email),
		StudentID:          strings.TrimSpace(req.StudentID),
		Number:             strings.TrimSpace(req.Number),
		ProjectDescription: strings.TrimSpace(req.ProjectDescription),
		DemoTimeID:         SlotRef(strings.TrimSpace(string(req.DemoTimeID))),
	}
}
