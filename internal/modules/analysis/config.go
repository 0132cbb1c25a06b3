package analysis

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/aristath/factorlens/internal/config"
	"github.com/aristath/factorlens/internal/modules/correlation"
	"github.com/aristath/factorlens/internal/modules/factors"
	"github.com/aristath/factorlens/internal/modules/returns"
)

// Config holds every setting of one analysis run.
type Config struct {
	Mode               factors.Mode          `json:"preprocessing_mode" msgpack:"mode" validate:"required,oneof=demeaned standardized"`
	VarianceTarget     float64               `json:"variance_target" msgpack:"variance_target" validate:"gt=0,lte=1"`
	RollingWindow      int                   `json:"rolling_window" msgpack:"rolling_window" validate:"min=1"`
	CorrelationWindow  int                   `json:"correlation_window" msgpack:"correlation_window" validate:"min=2"`
	CorrelationPairs   []correlation.Pair    `json:"correlation_pairs" msgpack:"correlation_pairs" validate:"dive"`
	ResidualUnits      factors.ResidualUnits `json:"residual_units" msgpack:"residual_units" validate:"oneof=preprocessed returns"`
	LookbackDays       int                   `json:"lookback_days" msgpack:"lookback_days" validate:"min=0"`   // 0 = all stored history
	MaxComponents      int                   `json:"max_components" msgpack:"max_components" validate:"min=0"` // 0 = report every component
	ForwardFill        bool                  `json:"forward_fill" msgpack:"forward_fill"`
	MaxFillGap         int                   `json:"max_fill_gap" msgpack:"max_fill_gap" validate:"min=0"`
	MaxMissingFraction float64               `json:"max_missing_fraction" msgpack:"max_missing_fraction" validate:"gte=0,lte=1"`
}

// DefaultConfig returns the settings used when a universe does not override them.
func DefaultConfig() Config {
	opts := returns.DefaultOptions()
	return Config{
		Mode:               factors.ModeDemeaned,
		VarianceTarget:     0.80,
		RollingWindow:      60,
		CorrelationWindow:  60,
		ResidualUnits:      factors.UnitsReturns,
		LookbackDays:       3 * 365,
		MaxComponents:      6,
		ForwardFill:        opts.ForwardFill,
		MaxFillGap:         opts.MaxFillGap,
		MaxMissingFraction: opts.MaxMissingFraction,
	}
}

// ConfigFromUniverse applies the universe's analysis overrides and pairs to DefaultConfig.
func ConfigFromUniverse(u *config.Universe) (Config, error) {
	cfg := DefaultConfig()
	s := u.Analysis
	if s.Mode != "" {
		cfg.Mode = factors.Mode(strings.ToLower(s.Mode))
	}
	if s.VarianceTarget != nil {
		cfg.VarianceTarget = *s.VarianceTarget
	}
	if s.RollingWindow != nil {
		cfg.RollingWindow = *s.RollingWindow
	}
	if s.CorrelationWindow != nil {
		cfg.CorrelationWindow = *s.CorrelationWindow
	}
	if s.ResidualUnits != "" {
		cfg.ResidualUnits = factors.ResidualUnits(strings.ToLower(s.ResidualUnits))
	}
	if s.LookbackDays != nil {
		cfg.LookbackDays = *s.LookbackDays
	}
	if s.MaxComponents != nil {
		cfg.MaxComponents = *s.MaxComponents
	}
	if s.ForwardFill != nil {
		cfg.ForwardFill = *s.ForwardFill
	}
	if s.MaxFillGap != nil {
		cfg.MaxFillGap = *s.MaxFillGap
	}
	if s.MaxMissingFraction != nil {
		cfg.MaxMissingFraction = *s.MaxMissingFraction
	}
	cfg.CorrelationPairs = append([]correlation.Pair(nil), u.Pairs...)

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("universe %s: %w", u.Name, err)
	}
	return cfg, nil
}

// ReturnsOptions converts the cleaning settings for the return builder.
func (c Config) ReturnsOptions() returns.Options {
	return returns.Options{
		ForwardFill:        c.ForwardFill,
		MaxFillGap:         c.MaxFillGap,
		MaxMissingFraction: c.MaxMissingFraction,
	}
}

// ConfigError lists the invalid settings of a Config.
type ConfigError struct {
	Fields []FieldError
}

// FieldError is one invalid setting.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (e *ConfigError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Field + ": " + f.Message
	}
	return "invalid analysis config: " + strings.Join(parts, "; ")
}

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func configValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		// Use JSON tag names in error messages
		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
	})
	return validate
}

// Validate checks every field against its constraints.
func (c Config) Validate() error {
	err := configValidator().Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("failed to validate analysis config: %w", err)
	}

	cerr := &ConfigError{}
	for _, fe := range verrs {
		cerr.Fields = append(cerr.Fields, FieldError{
			Field:   fieldPath(fe.Namespace()),
			Message: formatValidationError(fe),
		})
	}
	return cerr
}

// fieldPath strips the struct name from a validator namespace.
func fieldPath(ns string) string {
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return ns
}

func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %v", fe.Param(), fe.Value())
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte", "min":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lte", "max":
		return fmt.Sprintf("must be at most %s, got %v", fe.Param(), fe.Value())
	case "nefield":
		return fmt.Sprintf("must differ from %s", strings.ToLower(fe.Param()))
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}
