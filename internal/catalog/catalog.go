package catalog

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"wordwatch/internal/models"
)

//go:embed data/default.yaml
var defaultCatalog []byte

// Catalog is the static content of the experiment: the instruction script,
// the stimulus trials and the counterbalancing table
type Catalog struct {
	StimuliDir   string                      `yaml:"stimuli_dir"`
	DefaultImage string                      `yaml:"default_image"`
	Instructions []models.InstructionStep    `yaml:"instructions"`
	Stimuli      []models.Trial              `yaml:"stimuli"`
	Assignments  []models.StimulusAssignment `yaml:"assignments"`
}

// Default returns the catalog compiled into the binary
func Default() (*Catalog, error) {
	return Parse(defaultCatalog)
}

// Load reads a catalog from a YAML file, falling back to the embedded
// catalog when path is empty
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog %s: %w", path, err)
	}
	return Parse(content)
}

// Parse decodes and validates a YAML catalog
func Parse(content []byte) (*Catalog, error) {
	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var c Catalog
	if err := dec.Decode(&c); err != nil {
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// ErrInvalidCatalog wraps every validation failure
var ErrInvalidCatalog = errors.New("invalid catalog")

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidCatalog, fmt.Sprintf(format, args...))
}

// Validate checks the structural invariants the session state machine
// relies on
func (c *Catalog) Validate() error {
	if len(c.Instructions) == 0 {
		return invalid("no instruction steps")
	}
	for i, step := range c.Instructions {
		if step.Answer != nil {
			if _, ok := step.CorrectOption(); !ok {
				return invalid("instruction %d: answer %d out of range", i, *step.Answer)
			}
		}
		if step.Delay < 0 {
			return invalid("instruction %d: negative delay", i)
		}
		if step.Exam {
			if _, ok := step.CorrectOption(); !ok {
				return invalid("instruction %d: exam question without answer", i)
			}
		}
		if step.ExamEnd {
			start := step.ExamStartID
			if start < 0 || start >= i {
				return invalid("instruction %d: exam_start_id %d must precede the exam end", i, start)
			}
			if !c.Instructions[start].Exam {
				return invalid("instruction %d: exam_start_id %d is not an exam question", i, start)
			}
		}
	}

	if len(c.Stimuli) == 0 {
		return invalid("no stimuli")
	}
	names := make(map[string]bool, len(c.Stimuli))
	for i, t := range c.Stimuli {
		if t.Name == "" {
			return invalid("stimulus %d: missing name", i)
		}
		if names[t.Name] {
			return invalid("stimulus %d: duplicate name %q", i, t.Name)
		}
		names[t.Name] = true
		if t.Goal == "" || t.Characters == "" {
			return invalid("stimulus %s: goal and characters are required", t.Name)
		}
		if len(t.Images) != t.NImages || len(t.Durations) != t.NImages {
			return invalid("stimulus %s: %d images and %d durations for n_images=%d",
				t.Name, len(t.Images), len(t.Durations), t.NImages)
		}
		if len(t.Timesteps)+1 > t.NImages {
			return invalid("stimulus %s: %d timesteps need at least %d images",
				t.Name, len(t.Timesteps), len(t.Timesteps)+1)
		}
	}

	if len(c.Assignments) == 0 {
		return invalid("no stimulus assignments")
	}
	size := len(c.Assignments[0])
	for i, a := range c.Assignments {
		if len(a) == 0 || len(a) != size {
			return invalid("assignment %d: has %d trials, want %d", i, len(a), size)
		}
		seen := make(map[int]bool, len(a))
		for _, idx := range a {
			if idx < 0 || idx >= len(c.Stimuli) {
				return invalid("assignment %d: stimulus index %d out of range", i, idx)
			}
			if seen[idx] {
				return invalid("assignment %d: stimulus index %d repeated", i, idx)
			}
			seen[idx] = true
		}
	}
	return nil
}

// AllStimuli returns an assignment covering every stimulus in catalog order
func (c *Catalog) AllStimuli() models.StimulusAssignment {
	all := make(models.StimulusAssignment, len(c.Stimuli))
	for i := range all {
		all[i] = i
	}
	return all
}

// InstructionImages lists every image referenced by the instruction script
func (c *Catalog) InstructionImages() []string {
	var images []string
	for _, step := range c.Instructions {
		if step.Image != "" {
			images = append(images, step.Image)
		}
	}
	return images
}

// TrialImages returns the paths of a trial's frames under the stimuli directory
func (c *Catalog) TrialImages(t models.Trial) []string {
	images := make([]string, len(t.Images))
	for i, img := range t.Images {
		images[i] = c.StimuliDir + img
	}
	return images
}
