package config

import (
	"fmt"
	"os"
	"time"

	"github.com/mbolis/cerimonial/questionnaire"
	"github.com/mbolis/cerimonial/templating"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"
)

// Locale is the YAML form of the presentation choices. Keys left out of
// the file keep their defaults.
type Locale struct {
	FinalizeThreshold float64 `yaml:"finalize_threshold"`
	Language          string  `yaml:"language"`
	Timezone          string  `yaml:"timezone"`
	CurrencySymbol    string  `yaml:"currency_symbol"`
	DateLayout        string  `yaml:"date_layout"`
	DateTimeLayout    string  `yaml:"date_time_layout"`

	Fallbacks struct {
		Currency      string `yaml:"currency"`
		DateUndefined string `yaml:"date_undefined"`
		DateInvalid   string `yaml:"date_invalid"`
		TimeUndefined string `yaml:"time_undefined"`
		UnknownDevice string `yaml:"unknown_device"`
		DeviceJoiner  string `yaml:"device_joiner"`
	} `yaml:"fallbacks"`

	Signature struct {
		Awaiting string `yaml:"awaiting"`
		Invalid  string `yaml:"invalid"`
		Alt      string `yaml:"alt"`
	} `yaml:"signature"`

	ScopeClass string `yaml:"scope_class"`
}

func DefaultLocale() Locale {
	d := templating.DefaultLocale()
	l := Locale{
		FinalizeThreshold: questionnaire.DefaultFinalizeThreshold,
		Language:          d.Language.String(),
		Timezone:          d.Location.String(),
		CurrencySymbol:    d.CurrencySymbol,
		DateLayout:        d.DateLayout,
		DateTimeLayout:    d.DateTimeLayout,
		ScopeClass:        d.ScopeClass,
	}
	l.Fallbacks.Currency = d.ZeroCurrency
	l.Fallbacks.DateUndefined = d.DateUndefined
	l.Fallbacks.DateInvalid = d.DateInvalid
	l.Fallbacks.TimeUndefined = d.TimeUndefined
	l.Fallbacks.UnknownDevice = d.UnknownDevice
	l.Fallbacks.DeviceJoiner = d.DeviceJoiner
	l.Signature.Awaiting = d.AwaitingSignature
	l.Signature.Invalid = d.InvalidSignature
	l.Signature.Alt = d.SignatureAlt
	return l
}

func LoadLocale(path string) (Locale, error) {
	l := DefaultLocale()
	b, err := os.ReadFile(path)
	if err != nil {
		return l, fmt.Errorf("read locale file: %w", err)
	}
	if err = yaml.Unmarshal(b, &l); err != nil {
		return l, fmt.Errorf("parse locale file %s: %w", path, err)
	}
	if l.FinalizeThreshold < 0 || l.FinalizeThreshold > 100 {
		return l, fmt.Errorf("finalize_threshold %.1f out of range 0-100", l.FinalizeThreshold)
	}
	return l, nil
}

// Templating resolves the language tag and time zone for the document engine.
func (l Locale) Templating() (templating.Locale, error) {
	tag, err := language.Parse(l.Language)
	if err != nil {
		return templating.Locale{}, fmt.Errorf("locale language %q: %w", l.Language, err)
	}
	loc, err := time.LoadLocation(l.Timezone)
	if err != nil {
		return templating.Locale{}, fmt.Errorf("locale timezone %q: %w", l.Timezone, err)
	}

	return templating.Locale{
		Language:          tag,
		Location:          loc,
		CurrencySymbol:    l.CurrencySymbol,
		DateLayout:        l.DateLayout,
		DateTimeLayout:    l.DateTimeLayout,
		ZeroCurrency:      l.Fallbacks.Currency,
		DateUndefined:     l.Fallbacks.DateUndefined,
		DateInvalid:       l.Fallbacks.DateInvalid,
		TimeUndefined:     l.Fallbacks.TimeUndefined,
		UnknownDevice:     l.Fallbacks.UnknownDevice,
		DeviceJoiner:      l.Fallbacks.DeviceJoiner,
		AwaitingSignature: l.Signature.Awaiting,
		InvalidSignature:  l.Signature.Invalid,
		SignatureAlt:      l.Signature.Alt,
		ScopeClass:        l.ScopeClass,
	}, nil
}
