package graph

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"bitbucket.org/mmdatafocus/integrity_backend/models"
	"bitbucket.org/mmdatafocus/integrity_backend/utils"
	"github.com/vektah/gqlparser/v2/gqlerror"
)

// presentError attaches an extensions code to the store sentinels so clients can
// branch without matching messages.
func presentError(err error) error {
	var code string
	switch {
	case errors.Is(err, utils.ErrorRecordNotFound):
		code = "NOT_FOUND"
	case errors.Is(err, utils.ErrorInvalidTransition):
		code = "INVALID_TRANSITION"
	case errors.Is(err, utils.ErrorUnknownField), errors.Is(err, utils.ErrorInvalidFieldValue):
		code = "BAD_USER_INPUT"
	default:
		return err
	}
	return &gqlerror.Error{
		Message:    err.Error(),
		Extensions: map[string]interface{}{"code": code},
	}
}

func argString(args map[string]any, name string) string {
	s, _ := args[name].(string)
	return s
}

// argInt accepts every form an Int argument arrives in: literals parse to int64,
// variables decode to json.Number.
func argInt(args map[string]any, name string, fallback int) (int, error) {
	switch v := args[name].(type) {
	case nil:
		return fallback, nil
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		return int(v), nil
	case json.Number:
		n, err := v.Int64()
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return int(n), nil
	case string:
		n, err := strconv.Atoi(v)
		if err != nil {
			return 0, fmt.Errorf("%s must be an integer", name)
		}
		return n, nil
	}
	return 0, fmt.Errorf("%s must be an integer", name)
}

func triageFilterArg(args map[string]any, name string) (models.TriageFilter, error) {
	var filter models.TriageFilter
	input, _ := args[name].(map[string]interface{})
	if input == nil {
		return filter, nil
	}
	if v := argString(input, "status"); v != "" {
		status := models.ReportStatus(v)
		if !status.IsValid() {
			return filter, fmt.Errorf("invalid status %q", v)
		}
		filter.Status = &status
	}
	if v := argString(input, "severity"); v != "" {
		severity := models.ReportSeverity(v)
		if !severity.IsValid() {
			return filter, fmt.Errorf("invalid severity %q", v)
		}
		filter.Severity = &severity
	}
	if v := argString(input, "level"); v != "" {
		level := models.RiskLevel(v)
		if !level.IsValid() {
			return filter, fmt.Errorf("invalid level %q", v)
		}
		filter.Level = &level
	}
	if automated, ok := input["automatedOnly"].(bool); ok {
		filter.AutomatedOnly = &automated
	}
	return filter, nil
}
