package rules

import (
	"fmt"

	"github.com/hazyhaar/a11y/contrast"
)

// Options tunes the built-in rules. Zero values take the defaults.
type Options struct {
	// Disabled lists rule IDs to switch off. Enabled lists opt-in rules
	// (DOC_TITLE_MISSING) to switch on. Disabled wins over Enabled.
	Disabled []string
	Enabled  []string

	// GenericLinkPhrases is the LINK_GENERIC_TEXT deny-list, compared after
	// normalization.
	GenericLinkPhrases []string

	// ContrastNormal and ContrastLarge are the minimum ratios for normal and
	// large text.
	ContrastNormal float64
	ContrastLarge  float64

	// AltMaxLength is the IMG_ALT_LENGTH limit in characters.
	AltMaxLength int

	// DecorativeRoles exempt an img from IMG_ALT_MISSING.
	DecorativeRoles []string

	// Expressions are user-defined rules registered after the built-ins.
	Expressions []ExprSpec
}

// DefaultGenericLinkPhrases is the default LINK_GENERIC_TEXT deny-list.
var DefaultGenericLinkPhrases = []string{
	"click here",
	"here",
	"read more",
	"learn more",
	"more",
	"link",
	"this link",
}

// DefaultOptions returns the options used when no configuration is given.
func DefaultOptions() Options {
	o := Options{}
	o.defaults()
	return o
}

func (o *Options) defaults() {
	if len(o.GenericLinkPhrases) == 0 {
		o.GenericLinkPhrases = append([]string(nil), DefaultGenericLinkPhrases...)
	}
	if o.ContrastNormal <= 0 {
		o.ContrastNormal = contrast.MinRatioNormal
	}
	if o.ContrastLarge <= 0 {
		o.ContrastLarge = contrast.MinRatioLarge
	}
	if o.AltMaxLength <= 0 {
		o.AltMaxLength = 120
	}
	if len(o.DecorativeRoles) == 0 {
		o.DecorativeRoles = []string{"presentation", "none"}
	}
}

// Default builds the registry of built-in rules, in reporting order, followed
// by the expression rules in o. DOC_TITLE_MISSING is registered disabled
// unless listed in o.Enabled.
func Default(o Options) (*Registry, error) {
	o.defaults()
	reg := NewRegistry()

	builtins := []struct {
		rule  Rule
		optIn bool
	}{
		{rule: NewDocLang()},
		{rule: NewDocTitle(), optIn: true},
		{rule: NewColorContrast(o.ContrastNormal, o.ContrastLarge)},
		{rule: NewImgAlt(o.DecorativeRoles)},
		{rule: NewImgAltLength(o.AltMaxLength)},
		{rule: NewGenericLinkText(o.GenericLinkPhrases)},
		{rule: NewHeadingOrder()},
		{rule: NewMultipleH1()},
	}
	for _, b := range builtins {
		var err error
		if b.optIn {
			err = reg.RegisterDisabled(b.rule)
		} else {
			err = reg.Register(b.rule)
		}
		if err != nil {
			return nil, err
		}
	}

	for _, spec := range o.Expressions {
		r, err := NewExprRule(spec)
		if err != nil {
			return nil, err
		}
		if err := reg.Register(r); err != nil {
			return nil, err
		}
	}

	for _, id := range o.Enabled {
		if err := reg.SetEnabled(id, true); err != nil {
			return nil, fmt.Errorf("rules: enable: %w", err)
		}
	}
	for _, id := range o.Disabled {
		if err := reg.SetEnabled(id, false); err != nil {
			return nil, fmt.Errorf("rules: disable: %w", err)
		}
	}
	return reg, nil
}
