// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package prompts holds prompt template text and domain glossaries,
// treated per spec as data composed by concatenation rather than code.
package prompts

// DomainConfig customizes the Intent Parser's and Query Builder's prompts
// for a specific research domain.
type DomainConfig struct {
	Name                    string
	Description             string
	ConceptCategories       []string
	PrioritySources         []string
	ExtraIntentInstructions string
}

// MaterialsScience is the one concrete domain specialization carried over
// from the source prompt library.
var MaterialsScience = DomainConfig{
	Name:        "materials_science",
	Description: "Materials science and engineering",
	ConceptCategories: []string{
		"Material System (composition, crystal structure, morphology)",
		"Processing (synthesis, heat treatment, deposition, sintering)",
		"Structure (grain size, texture, defects, interfaces, porosity)",
		"Properties (mechanical, electrical, thermal, magnetic, optical)",
		"Mechanism/Model (phase transformation, diffusion, DFT, MD, CALPHAD)",
		"Application/Constraints (service environment, cost, scalability)",
	},
	PrioritySources: []string{"semantic_scholar", "scopus", "web_of_science"},
	ExtraIntentInstructions: `When analyzing materials science queries, also identify:
- Specific material families (oxides, sulfides, polymers, composites, coatings)
- Test standards (ASTM, ISO, IEC) if applicable
- Computational methods (DFT, MD, CALPHAD, phase-field) if applicable
- Whether the query implies structural/crystallographic data needs (ICSD, COD, Materials Project)
- Whether the query implies phase diagram or thermodynamic data needs
`,
}

// Get returns the DomainConfig for name, or ok=false if name is not a
// recognized domain. The domain set is a closed enum at the core boundary.
func Get(name string) (DomainConfig, bool) {
	if name == "materials_science" {
		return MaterialsScience, true
	}
	return DomainConfig{}, false
}
