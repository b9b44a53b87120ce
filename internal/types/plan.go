package types

// Plan is the JSON blueprint of a course. A freshly created plan carries
// titles and descriptions only; the generation pipeline flips the completed
// flags as it persists each sub-module.
type Plan struct {
  Title       string       `json:"title"`
  Description string       `json:"description"`
  Modules     []PlanModule `json:"modules"`
}

type PlanModule struct {
  Title       string          `json:"title"`
  Description string          `json:"description"`
  OrderNumber int             `json:"order_number"`
  Completed   bool            `json:"completed"`
  SubModules  []PlanSubModule `json:"sub_modules"`
}

type PlanSubModule struct {
  Title       string   `json:"title"`
  Description string   `json:"description"`
  OrderNumber int      `json:"order_number"`
  Completed   bool     `json:"completed"`
  Contents    []string `json:"contents"`
}
