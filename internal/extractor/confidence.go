package extractor

// scoredFields assigns completeness weights summing to 100. Mandatory
// fields (title, company) carry the highest weight; a record missing
// either is rejected upstream regardless of its score.
var scoredFields = []struct {
	name   string
	weight int
}{
	{FieldTitle, 30},
	{FieldCompany, 25},
	{FieldLocation, 10},
	{FieldSalary, 10},
	{FieldTechnologies, 10},
	{FieldWorkModel, 5},
	{FieldResponsibilities, 4},
	{FieldRequirements, 4},
	{FieldBenefits, 2},
}

// fallbackContainerDock is subtracted when listing discovery had to use
// a fallback container selector; such pages never score a full 100.
const fallbackContainerDock = 5

// score computes the deterministic confidence percentage for a set of
// resolved fields.
func score(resolved map[string]bool, primaryContainer bool) int {
	total := 0
	for _, f := range scoredFields {
		if resolved[f.name] {
			total += f.weight
		}
	}
	if !primaryContainer {
		total -= fallbackContainerDock
	}
	if total < 0 {
		total = 0
	}
	return total
}
