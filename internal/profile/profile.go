// Package profile loads the issuing company's identity: the bill-from block,
// header branding, currency wording and logo candidates.
package profile

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"invoicer/assets"
	"invoicer/internal/core"
)

// Logo source kinds.
const (
	SourceFile     = "file"
	SourceURL      = "url"
	SourceEmbedded = "embedded"
)

// Grouping names accepted in the currency block.
const (
	GroupingSouthAsian = "south-asian"
	GroupingWestern    = "western"
)

type (
	Profile struct {
		Name     string         `yaml:"name"`
		Initials string         `yaml:"initials"`
		Tagline  string         `yaml:"tagline"`
		Address  []string       `yaml:"address"`
		Phone    string         `yaml:"phone"`
		Email    string         `yaml:"email"`
		Currency Currency       `yaml:"currency"`
		Document Document       `yaml:"document"`
		Logo     []LogoLocation `yaml:"logo"`
	}

	Currency struct {
		Prefix    string `yaml:"prefix"`
		Grouping  string `yaml:"grouping"`
		MajorUnit string `yaml:"major_unit"`
		MinorUnit string `yaml:"minor_unit"`
	}

	Document struct {
		ThankYou        string `yaml:"thank_you"`
		SupplierCaption string `yaml:"supplier_caption"`
		CustomerCaption string `yaml:"customer_caption"`
		SupplierLabel   string `yaml:"supplier_label"`
		CustomerLabel   string `yaml:"customer_label"`
	}

	// LogoLocation is one candidate place to load the logo from, tried in order.
	LogoLocation struct {
		Source   string `yaml:"source"`
		Location string `yaml:"location"`
	}
)

// Default returns the embedded profile.
func Default() Profile {
	data, err := assets.BrandFS.ReadFile(assets.DefaultProfilePath)
	if err != nil {
		panic(fmt.Sprintf("embedded profile missing: %v", err))
	}
	p, err := Parse(data)
	if err != nil {
		panic(fmt.Sprintf("embedded profile invalid: %v", err))
	}
	return p
}

// Load reads a profile from path. An empty path or a missing file yields Default.
// Fields left out of the file keep their default values.
func Load(path string) (Profile, error) {
	if strings.TrimSpace(path) == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Default(), nil
		}
		return Profile{}, err
	}
	p, err := parseOver(Default(), data)
	if err != nil {
		return Profile{}, fmt.Errorf("parsing %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes a full profile document.
func Parse(data []byte) (Profile, error) {
	return parseOver(Profile{}, data)
}

func parseOver(base Profile, data []byte) (Profile, error) {
	p := base
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, err
	}
	if err := p.Validate(); err != nil {
		return Profile{}, err
	}
	return p, nil
}

// Validate rejects profiles the document layout cannot render.
func (p Profile) Validate() error {
	var problems []string
	if strings.TrimSpace(p.Name) == "" {
		problems = append(problems, "name is required")
	}
	switch p.Currency.Grouping {
	case "", GroupingSouthAsian, GroupingWestern:
	default:
		problems = append(problems, fmt.Sprintf("unknown currency grouping %q", p.Currency.Grouping))
	}
	for i, l := range p.Logo {
		switch l.Source {
		case SourceFile, SourceURL, SourceEmbedded:
		default:
			problems = append(problems, fmt.Sprintf("logo[%d]: unknown source %q", i, l.Source))
		}
		if strings.TrimSpace(l.Location) == "" {
			problems = append(problems, fmt.Sprintf("logo[%d]: location is required", i))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid profile: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Mark is the text used for the fallback logo and the watermark.
func (p Profile) Mark() string {
	if p.Initials != "" {
		return p.Initials
	}
	return p.Name
}

// BillFrom lists the lines of the issuer panel.
func (p Profile) BillFrom() []string {
	lines := append([]string{p.Name}, p.Address...)
	if p.Phone != "" {
		lines = append(lines, "Cell Phone: "+p.Phone)
	}
	if p.Email != "" {
		lines = append(lines, "Email: "+p.Email)
	}
	return lines
}

// CurrencyFormat converts the currency block into a formatter.
func (p Profile) CurrencyFormat() core.CurrencyFormat {
	f := core.DefaultCurrencyFormat
	if p.Currency.Prefix != "" {
		f.Prefix = p.Currency.Prefix
	}
	if p.Currency.Grouping == GroupingWestern {
		f.Grouping = core.GroupingWestern
	}
	return f
}

// WordsFormat converts the currency block into a words speller.
func (p Profile) WordsFormat() core.WordsFormat {
	f := core.DefaultWordsFormat
	if p.Currency.MajorUnit != "" {
		f.Major = p.Currency.MajorUnit
	}
	if p.Currency.MinorUnit != "" {
		f.Minor = p.Currency.MinorUnit
	}
	return f
}
