// Package settings stores user preferences in their own SQLite file.
//
// Every preference has a default that is returned while the key is absent.
// Reads never fail: a storage error is logged and the defaults are served.
// Writes are transactional, so a multi-key update is applied completely or
// not at all.
package settings

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/franz/travel-sos/internal/util"
)

// Preference keys as persisted
const (
	KeyOnboardingComplete = "onboarding_complete"
	KeyIsFirstLaunch      = "is_first_launch"
	KeyAppTheme           = "app_theme"
	KeyDirectCall         = "direct_call"
	KeyConfirmBeforeCall  = "confirm_before_call"
	KeyDefaultCountryID   = "default_country_id"
)

// Keys lists every preference key in display order
var Keys = []string{
	KeyOnboardingComplete,
	KeyIsFirstLaunch,
	KeyAppTheme,
	KeyDirectCall,
	KeyConfirmBeforeCall,
	KeyDefaultCountryID,
}

// Theme is the app colour scheme
type Theme string

const (
	ThemeLight  Theme = "light"
	ThemeDark   Theme = "dark"
	ThemeSystem Theme = "system"
)

func (t Theme) valid() bool {
	return t == ThemeLight || t == ThemeDark || t == ThemeSystem
}

// Preferences is a snapshot of every preference
type Preferences struct {
	OnboardingComplete bool   `json:"onboarding_complete"`
	IsFirstLaunch      bool   `json:"is_first_launch"`
	AppTheme           Theme  `json:"app_theme"`
	DirectCall         bool   `json:"direct_call"`
	ConfirmBeforeCall  bool   `json:"confirm_before_call"`
	DefaultCountryID   *int64 `json:"default_country_id"`
}

// Defaults returns the values used for absent keys
func Defaults() Preferences {
	return Preferences{
		OnboardingComplete: false,
		IsFirstLaunch:      true,
		AppTheme:           ThemeSystem,
		DirectCall:         false,
		ConfirmBeforeCall:  true,
		DefaultCountryID:   nil,
	}
}

// Get returns the value of key formatted as it is stored. An unset default
// country is "".
func (p Preferences) Get(key string) (string, error) {
	switch key {
	case KeyOnboardingComplete:
		return strconv.FormatBool(p.OnboardingComplete), nil
	case KeyIsFirstLaunch:
		return strconv.FormatBool(p.IsFirstLaunch), nil
	case KeyAppTheme:
		return string(p.AppTheme), nil
	case KeyDirectCall:
		return strconv.FormatBool(p.DirectCall), nil
	case KeyConfirmBeforeCall:
		return strconv.FormatBool(p.ConfirmBeforeCall), nil
	case KeyDefaultCountryID:
		if p.DefaultCountryID == nil {
			return "", nil
		}
		return strconv.FormatInt(*p.DefaultCountryID, 10), nil
	}
	return "", fmt.Errorf("%w: unknown setting %q", util.ErrInvalidConfig, key)
}

// apply sets key from its stored form. Unknown keys are ignored so a newer
// file can be read by an older build.
func (p *Preferences) apply(key, value string) error {
	var err error
	switch key {
	case KeyOnboardingComplete:
		p.OnboardingComplete, err = strconv.ParseBool(value)
	case KeyIsFirstLaunch:
		p.IsFirstLaunch, err = strconv.ParseBool(value)
	case KeyAppTheme:
		if t := Theme(value); t.valid() {
			p.AppTheme = t
		} else {
			err = fmt.Errorf("invalid theme %q", value)
		}
	case KeyDirectCall:
		p.DirectCall, err = strconv.ParseBool(value)
	case KeyConfirmBeforeCall:
		p.ConfirmBeforeCall, err = strconv.ParseBool(value)
	case KeyDefaultCountryID:
		var id int64
		id, err = strconv.ParseInt(value, 10, 64)
		if err == nil {
			p.DefaultCountryID = &id
		}
	}
	return err
}

// Patch is a set of preference changes applied together. Nil fields are
// left alone. ClearDefaultCountry unsets the default country.
type Patch struct {
	OnboardingComplete  *bool  `json:"onboarding_complete,omitempty"`
	IsFirstLaunch       *bool  `json:"is_first_launch,omitempty"`
	AppTheme            *Theme `json:"app_theme,omitempty"`
	DirectCall          *bool  `json:"direct_call,omitempty"`
	ConfirmBeforeCall   *bool  `json:"confirm_before_call,omitempty"`
	DefaultCountryID    *int64 `json:"default_country_id,omitempty"`
	ClearDefaultCountry bool   `json:"clear_default_country,omitempty"`
}

// change is one key write; a nil value deletes the key
type change struct {
	key   string
	value *string
}

func (p Patch) changes() ([]change, error) {
	var out []change
	set := func(key, value string) {
		out = append(out, change{key: key, value: &value})
	}
	boolean := func(key string, v *bool) {
		if v != nil {
			set(key, strconv.FormatBool(*v))
		}
	}

	boolean(KeyOnboardingComplete, p.OnboardingComplete)
	boolean(KeyIsFirstLaunch, p.IsFirstLaunch)
	if p.AppTheme != nil {
		if !p.AppTheme.valid() {
			return nil, fmt.Errorf("%w: app_theme must be light, dark or system, got %q", util.ErrInvalidConfig, *p.AppTheme)
		}
		set(KeyAppTheme, string(*p.AppTheme))
	}
	boolean(KeyDirectCall, p.DirectCall)
	boolean(KeyConfirmBeforeCall, p.ConfirmBeforeCall)

	switch {
	case p.ClearDefaultCountry && p.DefaultCountryID != nil:
		return nil, fmt.Errorf("%w: default_country_id both set and cleared", util.ErrInvalidConfig)
	case p.ClearDefaultCountry:
		out = append(out, change{key: KeyDefaultCountryID})
	case p.DefaultCountryID != nil:
		set(KeyDefaultCountryID, strconv.FormatInt(*p.DefaultCountryID, 10))
	}
	return out, nil
}

// ParsePatch builds a single-key Patch from text, as typed on a command
// line. An empty value for default_country_id clears it.
func ParsePatch(key, value string) (Patch, error) {
	var p Patch
	value = strings.TrimSpace(value)

	parseBool := func() (*bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%w: %s must be true or false, got %q", util.ErrInvalidConfig, key, value)
		}
		return &b, nil
	}

	var err error
	switch key {
	case KeyOnboardingComplete:
		p.OnboardingComplete, err = parseBool()
	case KeyIsFirstLaunch:
		p.IsFirstLaunch, err = parseBool()
	case KeyAppTheme:
		t := Theme(strings.ToLower(value))
		if !t.valid() {
			return p, fmt.Errorf("%w: app_theme must be light, dark or system, got %q", util.ErrInvalidConfig, value)
		}
		p.AppTheme = &t
	case KeyDirectCall:
		p.DirectCall, err = parseBool()
	case KeyConfirmBeforeCall:
		p.ConfirmBeforeCall, err = parseBool()
	case KeyDefaultCountryID:
		if value == "" || value == "null" {
			p.ClearDefaultCountry = true
			break
		}
		id, perr := strconv.ParseInt(value, 10, 64)
		if perr != nil || id <= 0 {
			return p, fmt.Errorf("%w: default_country_id must be a positive integer, got %q", util.ErrInvalidConfig, value)
		}
		p.DefaultCountryID = &id
	default:
		return p, fmt.Errorf("%w: unknown setting %q", util.ErrInvalidConfig, key)
	}
	return p, err
}
