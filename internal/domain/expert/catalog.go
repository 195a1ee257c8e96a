package expert

// DefaultCatalog returns the built-in expert descriptors in registration order.
func DefaultCatalog() []Descriptor {
	catalog := []Descriptor{
		{
			ID:             "analysis_ghost",
			Name:           "Analysis Ghost",
			Domain:         DomainCore,
			Expertise:      "Code analysis and quality assessment",
			Specialization: "Mesh and model quality analysis",
			Keywords:       []string{"analysis", "mesh", "model", "quality", "validation"},
			Description:    "Specialized in analyzing mesh and model quality",
		},
		{
			ID:             "optimization_ghost",
			Name:           "Optimization Ghost",
			Domain:         DomainCore,
			Expertise:      "Algorithm optimization",
			Specialization: "Slicing algorithm optimization",
			Keywords:       []string{"optimization", "performance", "slicing", "algorithm"},
			Description:    "Specialized in optimizing slicing algorithms",
		},
		{
			ID:             "error_ghost",
			Name:           "Error Ghost",
			Domain:         DomainCore,
			Expertise:      "Error detection and correction",
			Specialization: "Error handling and debugging",
			Keywords:       []string{"error", "exception", "debug", "troubleshooting"},
			Description:    "Specialized in error detection and correction",
		},
		{
			ID:             "research_ghost",
			Name:           "Research Ghost",
			Domain:         DomainResearch,
			Expertise:      "Research and innovation",
			Specialization: "FOSS solutions and best practices",
			Keywords:       []string{"research", "foss", "innovation", "solutions"},
			Description:    "Specialized in researching FOSS solutions and innovations",
		},
		{
			ID:             "physics_ghost",
			Name:           "Physics Ghost",
			Domain:         DomainEngineering,
			Expertise:      "Mechanical engineering and fluid dynamics",
			Specialization: "Thermodynamics and material behavior",
			Keywords:       []string{"physics", "mechanics", "thermodynamics", "fluid dynamics"},
			Description:    "PhD-level specialist in mechanical engineering",
		},
		{
			ID:             "materials_ghost",
			Name:           "Materials Ghost",
			Domain:         DomainEngineering,
			Expertise:      "Polymer science and material properties",
			Specialization: "Material chemistry and behavior",
			Keywords:       []string{"materials", "polymer", "chemistry", "properties"},
			Description:    "PhD-level specialist in polymer science",
		},
		{
			ID:             "mathematics_ghost",
			Name:           "Mathematics Ghost",
			Domain:         DomainMathematics,
			Expertise:      "Computational geometry and algorithms",
			Specialization: "Mathematical optimization",
			Keywords:       []string{"mathematics", "geometry", "algorithms", "optimization"},
			Description:    "PhD-level specialist in computational mathematics",
		},
		{
			ID:             "colorscience_ghost",
			Name:           "Color Science Ghost",
			Domain:         DomainUIUXDesign,
			Expertise:      "Color theory and color science",
			Specialization: "Color harmony and perception",
			Keywords:       []string{"color", "design", "visual", "aesthetics"},
			Description:    "PhD-level specialist in color science",
		},
		{
			ID:             "typography_ghost",
			Name:           "Typography Ghost",
			Domain:         DomainUIUXDesign,
			Expertise:      "Typography and font design",
			Specialization: "Type systems and readability",
			Keywords:       []string{"typography", "fonts", "text", "readability"},
			Description:    "PhD-level specialist in typography",
		},
		{
			ID:             "uxdesign_ghost",
			Name:           "UX Design Ghost",
			Domain:         DomainUIUXDesign,
			Expertise:      "User experience design",
			Specialization: "Interface design and usability",
			Keywords:       []string{"ux", "ui", "design", "usability", "interface"},
			Description:    "PhD-level specialist in UX design",
		},
		{
			ID:             "security_ghost",
			Name:           "Security Ghost",
			Domain:         DomainSecurity,
			Expertise:      "Security analysis and vulnerability assessment",
			Specialization: "Code security and best practices",
			Keywords:       []string{"security", "vulnerability", "safety", "protection"},
			Description:    "Specialist in code security",
		},
		{
			ID:             "ethics_ghost",
			Name:           "Ethics Ghost",
			Domain:         DomainEthics,
			Expertise:      "AI ethics and responsible development",
			Specialization: "Ethical AI practices",
			Keywords:       []string{"ethics", "responsible", "bias", "fairness", "transparency"},
			Description:    "Non-biased ethics specialist",
		},
	}
	for i := range catalog {
		catalog[i].Enabled = true
		catalog[i].Version = DefaultVersion
		catalog[i].Dependencies = []string{}
	}
	return catalog
}
