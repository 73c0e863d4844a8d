package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/GoSim-25-26J-441/marketsim/pkg/utils"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	mustRegisterValidation(v, "timestamp", func(fl validator.FieldLevel) bool {
		_, err := utils.ParseTime(fl.Field().String())
		return err == nil
	})
	// Report fields by their YAML names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("yaml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func mustRegisterValidation(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("config: register %q validation: %v", tag, err))
	}
}

// ParseTime parses a scenario timestamp such as "2025-01-01 00:00"
func ParseTime(s string) (time.Time, error) {
	return utils.ParseTime(s)
}

// UnmarshalYAML fills unset global settings with their defaults
func (g *GlobalSettings) UnmarshalYAML(value *yaml.Node) error {
	type plain GlobalSettings
	p := plain(DefaultGlobalSettings())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*g = GlobalSettings(p)
	return nil
}

// UnmarshalYAML fills unset stochastic settings with their defaults
func (s *StochasticBreakpoints) UnmarshalYAML(value *yaml.Node) error {
	type plain StochasticBreakpoints
	p := plain(DefaultStochasticBreakpoints())
	if err := value.Decode(&p); err != nil {
		return err
	}
	*s = StochasticBreakpoints(p)
	return nil
}

// ParseScenarioYAML parses a Scenario from YAML bytes and validates it.
// Fields absent from the document keep their DefaultScenario values.
// This is used for APIs where scenario is provided as payload (not via filesystem).
func ParseScenarioYAML(data []byte) (*Scenario, error) {
	scenario := DefaultScenario()
	if err := yaml.Unmarshal(data, &scenario); err != nil {
		return nil, fmt.Errorf("failed to parse scenario yaml: %w", err)
	}

	if err := ValidateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}

	return &scenario, nil
}

// ParseScenarioYAMLString parses a Scenario from a YAML string and validates it.
func ParseScenarioYAMLString(yamlText string) (*Scenario, error) {
	return ParseScenarioYAML([]byte(yamlText))
}

// MarshalScenarioYAML renders a scenario back to YAML
func MarshalScenarioYAML(s *Scenario) ([]byte, error) {
	return yaml.Marshal(s)
}

// formatFieldError turns a validator failure into a one-line message
func formatFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), "Scenario.")
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s, got %v", field, strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "timestamp":
		return fmt.Sprintf("%s is not a recognized timestamp: %v", field, fe.Value())
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s, got %v", field, fe.Param(), fe.Value())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s, got %v", field, fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s, got %v", field, fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("%s must be less than %s, got %v", field, fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("%s failed %s validation", field, fe.Tag())
	}
}

func structErrors(err error) error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, formatFieldError(fe))
	}
	return errors.New(strings.Join(msgs, "; "))
}
