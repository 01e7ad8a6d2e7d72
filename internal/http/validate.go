package httpx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

type onboardRequest struct {
	Email    string          `json:"email" validate:"required,email"`
	MetaData json.RawMessage `json:"meta_data"`
}

type chatRequest struct {
	Message   string `json:"message" validate:"required"`
	ChatID    string `json:"chat_id" validate:"required"`
	ProjectID string `json:"project_id" validate:"required"`
}

type createProjectRequest struct {
	Default            bool   `json:"default"`
	ProjectName        string `json:"project_name"`
	ProjectDescription string `json:"project_description"`
	ProjectFramework   string `json:"project_framework"`
}

type deployForm struct {
	ProjectID   string `validate:"required"`
	Name        string `validate:"required,max=20"`
	Description string `validate:"required,max=100"`
	Framework   string `validate:"required"`
}

// decodeAndValidate parses a JSON body into dst and runs struct validation.
func decodeAndValidate(req *http.Request, dst any) error {
	if err := json.NewDecoder(req.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return checkStruct(dst)
}

// checkStruct validates dst and flattens the first violation into a message
// suitable for a client response.
func checkStruct(dst any) error {
	err := validate.Struct(dst)
	if err == nil {
		return nil
	}
	var violations validator.ValidationErrors
	if errors.As(err, &violations) && len(violations) > 0 {
		v := violations[0]
		field := strings.ToLower(v.Field())
		switch v.Tag() {
		case "required":
			return fmt.Errorf("%s is required", field)
		case "email":
			return fmt.Errorf("%s must be a valid email address", field)
		case "max":
			return fmt.Errorf("%s must be at most %s characters", field, v.Param())
		default:
			return fmt.Errorf("%s is invalid", field)
		}
	}
	return errors.New("invalid request")
}
