package diagnostic

// Report is the analytics of one assignment, one entry per module in
// questionnaire order.
type Report []ModuleReport

type ModuleReport struct {
	Module       string           `json:"module"`
	Diagnostic   ModuleDiagnostic `json:"diagnostic"`
	Observations []string         `json:"observations"`
}

// ModuleDiagnostic holds the module score and the texts of the module-level
// outputs whose condition the score satisfies.
type ModuleDiagnostic struct {
	Punctuation int      `json:"punctuation"`
	Diagnostic  []string `json:"diagnostic"`
}
