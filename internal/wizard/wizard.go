package wizard

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"text/template"

	"github.com/charmbracelet/huh"
	"golang.org/x/term"

	"github.com/funnelworks/verdict/internal/settings"
)

// Answers holds everything the interactive setup form collects. The rest of
// the settings surface keeps its defaults and stays editable in the file.
type Answers struct {
	Model      string
	Provider   string
	BaseURL    string
	InputPath  string
	OutputPath string
	MaxRetries int
	TestMode   bool
}

const settingsTemplate = `# verdict settings
# Generated by verdict init. KEY=VALUE, lines starting with '#' are ignored.

MODEL={{ .Model }}
PROVIDER={{ .Provider }}
BASE_URL={{ .BaseURL }}

INPUT_PATH={{ .InputPath }}
OUTPUT_PATH={{ .OutputPath }}

MAX_RETRIES={{ .MaxRetries }}
TEST_MODE={{ .TestMode }}
`

// Run walks the user through first-time configuration with an interactive
// form, pre-filled from the stock defaults.
func Run(in io.Reader, out io.Writer) (*Answers, error) {
	defaults := settings.Default()

	var (
		model         = defaults.Model
		provider      = defaults.Provider
		baseURL       = defaults.BaseURL
		inputPath     string
		outputPath    string
		maxRetriesRaw = strconv.Itoa(defaults.MaxRetries)
		testMode      bool
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Model").
				Description("Model name as the provider knows it").
				Placeholder("llama3.3:70b").
				Value(&model).
				Validate(validateNonEmpty("model")),
			huh.NewSelect[string]().
				Title("Provider").
				Options(
					huh.NewOption("ollama (local)", settings.ProviderOllama),
					huh.NewOption("copilot", settings.ProviderCopilot),
					huh.NewOption("mock (testing)", settings.ProviderMock),
				).
				Value(&provider),
			huh.NewInput().
				Title("Ollama base URL").
				Description("Ignored by non-ollama providers").
				Value(&baseURL),
			huh.NewInput().
				Title("Input path").
				Description("Session log file or folder to validate").
				Placeholder("./sessions").
				Value(&inputPath).
				Validate(validateNonEmpty("input path")),
			huh.NewInput().
				Title("Output folder").
				Description("Where validated artifacts and the summary go").
				Placeholder("./validated").
				Value(&outputPath).
				Validate(validateNonEmpty("output folder")),
			huh.NewInput().
				Title("Max retries").
				Description("Corrective retries after an invalid response (0-10)").
				Value(&maxRetriesRaw).
				Validate(validateRetries),
			huh.NewConfirm().
				Title("Test mode").
				Description("Validate only the first three files?").
				Value(&testMode),
		),
	).
		WithInput(in).
		WithOutput(out)

	// Use accessible mode for non-TTY input (e.g., tests, piped input).
	if f, ok := in.(*os.File); !ok || !term.IsTerminal(int(f.Fd())) {
		form = form.WithAccessible(true)
	}

	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("setup wizard: %w", err)
	}

	maxRetries, err := strconv.Atoi(strings.TrimSpace(maxRetriesRaw))
	if err != nil {
		return nil, fmt.Errorf("max retries: %w", err)
	}

	return &Answers{
		Model:      strings.TrimSpace(model),
		Provider:   provider,
		BaseURL:    strings.TrimSpace(baseURL),
		InputPath:  strings.TrimSpace(inputPath),
		OutputPath: strings.TrimSpace(outputPath),
		MaxRetries: maxRetries,
		TestMode:   testMode,
	}, nil
}

// RenderSettings produces settings file content for the collected answers.
// The output parses back through settings.Parse unchanged.
func RenderSettings(a *Answers) (string, error) {
	tmpl, err := template.New("settings").Parse(settingsTemplate)
	if err != nil {
		return "", fmt.Errorf("parsing settings template: %w", err)
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, a); err != nil {
		return "", fmt.Errorf("rendering settings: %w", err)
	}
	return buf.String(), nil
}

// WriteSettings renders the answers to path. An existing file is only
// replaced when force is set.
func WriteSettings(a *Answers, path string, force bool) error {
	if !force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}

	content, err := RenderSettings(a)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	return nil
}

func validateNonEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

func validateRetries(s string) error {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return fmt.Errorf("enter a number")
	}
	if n < 0 || n > 10 {
		return fmt.Errorf("retries must be between 0 and 10")
	}
	return nil
}
