package domain

// Product is one catalog entry referenced in prompts and eligibility rules.
type Product struct {
	Key         ProductInterest
	Name        string
	Price       string
	Description string
}

// SuccessCase is a past-student result cited in generation prompts.
type SuccessCase struct {
	Name        string
	Achievement string
}

// BusinessProfile carries the persona and catalog facts embedded in every
// classification and generation prompt.
type BusinessProfile struct {
	OwnerName    string
	BusinessName string
	Field        string
	Methodology  string
	Products     []Product
	SuccessCases []SuccessCase
}

// DefaultBusinessProfile returns the built-in coaching business persona.
// Overridable via config for other deployments.
func DefaultBusinessProfile() BusinessProfile {
	return BusinessProfile{
		OwnerName:    "Prof. Diogo Moreira",
		BusinessName: "Mentoria para Concursos",
		Field:        "preparacao para concursos publicos",
		Methodology:  "metodologia dos 9 passos",
		Products: []Product{
			{
				Key:         ProductCoaching,
				Name:        "Coaching Individual",
				Price:       "R$ 2.997",
				Description: "acompanhamento individual completo ate a aprovacao",
			},
			{
				Key:         ProductAcelerador,
				Name:        "Acelerador de Aprovacao",
				Price:       "R$ 497",
				Description: "curso com a metodologia dos 9 passos para acelerar a aprovacao",
			},
		},
		SuccessCases: []SuccessCase{
			{Name: "Vitoria Barbosa", Achievement: "aprovada na SEFAZ-BA"},
			{Name: "Thales", Achievement: "aprovado em 9 meses de estudo"},
		},
	}
}

// ProductByKey looks up a catalog product by interest key.
func (b BusinessProfile) ProductByKey(key ProductInterest) (Product, bool) {
	for _, p := range b.Products {
		if p.Key == key {
			return p, true
		}
	}
	return Product{}, false
}
