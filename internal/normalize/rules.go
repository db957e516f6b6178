package normalize

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Rules lists the candidate header names tried, in order, for each canonical
// field. The built-in defaults match the column vocabulary of the lead
// exports we ingest; a YAML rules file can override any list.
type Rules struct {
	Name    []string `yaml:"name"`
	Website []string `yaml:"website"`
	Email   []string `yaml:"email"`
	Phone   []string `yaml:"phone"`
	Address []string `yaml:"address"`
}

// DefaultRules returns the built-in candidate header lists.
func DefaultRules() Rules {
	return Rules{
		Name:    []string{"Name", "Company", "Business Name", "Full Name"},
		Website: []string{"Website", "Company Website"},
		Email:   []string{"Email", "Company Email", "Work Email #1", "Direct Email #1"},
		Phone:   []string{"Phone", "Company Phone", "Phone #1"},
		Address: []string{"Address", "Location"},
	}
}

// LoadRules reads a YAML rules file. Lists absent from the file keep their
// built-in defaults.
func LoadRules(path string) (Rules, error) {
	rules := DefaultRules()

	data, err := os.ReadFile(path)
	if err != nil {
		return rules, eris.Wrapf(err, "normalize: read rules %s", path)
	}

	var override Rules
	if err := yaml.Unmarshal(data, &override); err != nil {
		return rules, eris.Wrapf(err, "normalize: parse rules %s", path)
	}

	if len(override.Name) > 0 {
		rules.Name = override.Name
	}
	if len(override.Website) > 0 {
		rules.Website = override.Website
	}
	if len(override.Email) > 0 {
		rules.Email = override.Email
	}
	if len(override.Phone) > 0 {
		rules.Phone = override.Phone
	}
	if len(override.Address) > 0 {
		rules.Address = override.Address
	}

	return rules, nil
}
