// Package wizard implements the interactive experiment builder behind
// `recbench init --interactive`.
package wizard

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"
)

// Draft holds all fields collected during the interactive wizard.
type Draft struct {
	Name     string
	DataPath string
	Split    string
	Models   []string
	Metrics  []string
}

var namePattern = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)

// ValidateName checks that an experiment name is kebab-case.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if !namePattern.MatchString(name) {
		return fmt.Errorf("name must be kebab-case (lowercase letters, digits, hyphens)")
	}
	return nil
}

const experimentTemplate = `name: {{ .Name }}
dataset:
  path: {{ .DataPath }}
split:
  kind: {{ .Split }}
{{- if eq .Split "ratio" }}
  test_size: 0.2
{{- else }}
  folds: 5
{{- end }}
  seed: 42
models:
{{- range .Models }}
  - name: {{ . }}
    kind: {{ . }}
{{- end }}
metrics:
{{- range .Metrics }}
{{- if cutoff . }}
  - kind: {{ . }}
    k: 10
{{- else }}
  - kind: {{ . }}
{{- end }}
{{- end }}
options:
  workers: 1
`

// RunExperimentWizard runs an interactive huh form to collect an
// experiment draft. If initialName is non-empty, it pre-populates the
// name field.
func RunExperimentWizard(in io.Reader, out io.Writer, initialName string) (*Draft, error) {
	var (
		name      = initialName
		dataPath  string
		splitKind string
		models    []string
		mets      []string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Experiment name").
				Description("A kebab-case name for this experiment").
				Placeholder("movielens-baselines").
				Value(&name).
				Validate(func(s string) error {
					return ValidateName(strings.TrimSpace(s))
				}),
			huh.NewInput().
				Title("Interactions CSV").
				Description("Path to the user,item,rating data file").
				Placeholder("data/ratings.csv").
				Value(&dataPath).
				Validate(func(s string) error {
					if strings.TrimSpace(s) == "" {
						return fmt.Errorf("a data file is required")
					}
					return nil
				}),
			huh.NewSelect[string]().
				Title("Split strategy").
				Options(
					huh.NewOption("ratio (random holdout)", "ratio"),
					huh.NewOption("kfold (cross validation)", "kfold"),
				).
				Value(&splitKind),
			huh.NewMultiSelect[string]().
				Title("Models").
				Options(
					huh.NewOption("popularity", "popularity"),
					huh.NewOption("mf", "mf"),
					huh.NewOption("bpr", "bpr"),
					huh.NewOption("itemknn", "itemknn"),
				).
				Value(&models).
				Validate(func(sel []string) error {
					if len(sel) == 0 {
						return fmt.Errorf("pick at least one model")
					}
					return nil
				}),
			huh.NewMultiSelect[string]().
				Title("Metrics").
				Options(
					huh.NewOption("rmse", "rmse"),
					huh.NewOption("mae", "mae"),
					huh.NewOption("precision", "precision"),
					huh.NewOption("recall", "recall"),
					huh.NewOption("ndcg", "ndcg"),
					huh.NewOption("auc", "auc"),
					huh.NewOption("mrr", "mrr"),
				).
				Value(&mets).
				Validate(func(sel []string) error {
					if len(sel) == 0 {
						return fmt.Errorf("pick at least one metric")
					}
					return nil
				}),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("wizard failed: %w", err)
	}

	return &Draft{
		Name:     strings.TrimSpace(name),
		DataPath: strings.TrimSpace(dataPath),
		Split:    splitKind,
		Models:   models,
		Metrics:  mets,
	}, nil
}

// GenerateExperimentYAML renders an experiment file from the draft.
func GenerateExperimentYAML(d *Draft) (string, error) {
	tmpl, err := template.New("experiment").Funcs(template.FuncMap{
		"cutoff": func(kind string) bool {
			return kind == "precision" || kind == "recall" || kind == "ndcg"
		},
	}).Parse(experimentTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("failed to render template: %w", err)
	}
	return buf.String(), nil
}
