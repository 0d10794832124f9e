package conversation

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// DefaultPersona is the tag assigned to records that never chose one.
const DefaultPersona = "sério"

var builtinPersonas = map[string]string{
	"engraçado":   "Você é um assistente divertido e bem humorado. Você deve ser engraçado, fazer piadas e usar um tom leve e descontraído. Suas respostas devem ser concisas e diretas ao ponto.",
	"sério":       "Você é um assistente profissional e objetivo. Mantenha um tom formal e técnico, evitando humor ou linguagem informal. Suas respostas devem ser claras, precisas e diretas.",
	"malandro":    "Você é um assistente com jeito malandro brasileiro. Use gírias, expressões informais do Brasil e um tom despojado e astuto. Seja esperto e sagaz em suas respostas.",
	"conselheiro": "Você é um assistente empático e sábio. Ofereça conselhos de forma gentil e compreensiva, mostrando interesse genuíno. Use um tom acolhedor e motivacional em suas respostas.",
}

// Catalog maps persona tags to system prompts. It is read-only once built.
type Catalog struct {
	prompts map[string]string
}

// DefaultCatalog returns the four built-in personas.
func DefaultCatalog() *Catalog {
	return NewCatalog(builtinPersonas)
}

// NewCatalog copies prompts into a new catalog.
func NewCatalog(prompts map[string]string) *Catalog {
	m := make(map[string]string, len(prompts))
	for k, v := range prompts {
		m[k] = v
	}
	return &Catalog{prompts: m}
}

type catalogFile struct {
	Personas map[string]string `yaml:"personas"`
}

// LoadCatalog reads a YAML document of the form
//
//	personas:
//	  pirata: "Você é um pirata..."
//
// and overlays it on the built-in personas. An empty path yields the defaults.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return DefaultCatalog(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona file: %w", err)
	}
	var f catalogFile
	if err := yaml.Unmarshal(b, &f); err != nil {
		return nil, fmt.Errorf("parse persona file: %w", err)
	}
	merged := make(map[string]string, len(builtinPersonas)+len(f.Personas))
	for k, v := range builtinPersonas {
		merged[k] = v
	}
	for k, v := range f.Personas {
		if k == "" || v == "" {
			continue
		}
		merged[k] = v
	}
	return NewCatalog(merged), nil
}

// Prompt returns the system prompt for tag.
func (c *Catalog) Prompt(tag string) (string, bool) {
	p, ok := c.prompts[tag]
	return p, ok
}

// Has reports whether tag is known.
func (c *Catalog) Has(tag string) bool {
	_, ok := c.prompts[tag]
	return ok
}

// Tags lists the known tags in sorted order.
func (c *Catalog) Tags() []string {
	out := make([]string, 0, len(c.prompts))
	for k := range c.prompts {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
