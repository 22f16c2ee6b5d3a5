// Package survey holds the question bank, the per-session draw and the
// binding of posted page values onto a models.Response.
package survey

import (
	_ "embed"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed bank.yaml
var defaultBank []byte

var ErrInvalidBank = errors.New("survey: invalid question bank")

// Question is a multiple-choice question.
type Question struct {
	Question string   `yaml:"question" json:"question"`
	Options  []string `yaml:"options" json:"options"`
}

// DrawSizes says how many entries of each kind a session receives.
type DrawSizes struct {
	MultipleChoice int `yaml:"multiple_choice"`
	Descriptive    int `yaml:"descriptive"`
	Images         int `yaml:"images"`
}

// Bank is the full pool of questions, photos and option lists.
type Bank struct {
	Title           string     `yaml:"title"`
	MultipleChoice  []Question `yaml:"multiple_choice"`
	Descriptive     []string   `yaml:"descriptive"`
	Images          []string   `yaml:"images"`
	EducationTypes  []string   `yaml:"education_types"`
	DistressTypes   []string   `yaml:"distress_types"`
	LocationMethods []string   `yaml:"location_methods"`
	Sizes           DrawSizes  `yaml:"draw"`
}

// Draw is the random subset of the bank shown to one participant.
type Draw struct {
	MultipleChoice []Question `json:"multiple_choice"`
	Descriptive    []string   `json:"descriptive"`
	Images         []string   `json:"images"`
}

// DefaultBank parses the bank compiled into the binary.
func DefaultBank() (*Bank, error) {
	return ParseBank(defaultBank)
}

// LoadBank reads a bank from path, or the default bank when path is empty.
func LoadBank(path string) (*Bank, error) {
	if path == "" {
		return DefaultBank()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read question bank: %w", err)
	}
	return ParseBank(data)
}

// ParseBank decodes and validates a YAML bank.
func ParseBank(data []byte) (*Bank, error) {
	var b Bank
	if err := yaml.Unmarshal(data, &b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBank, err)
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

// Validate checks the bank can serve a draw.
func (b *Bank) Validate() error {
	switch {
	case b.Sizes.MultipleChoice < 0 || b.Sizes.Descriptive < 0 || b.Sizes.Images < 0:
		return fmt.Errorf("%w: negative draw size", ErrInvalidBank)
	case len(b.MultipleChoice) < b.Sizes.MultipleChoice:
		return fmt.Errorf("%w: %d multiple-choice questions, draw needs %d", ErrInvalidBank, len(b.MultipleChoice), b.Sizes.MultipleChoice)
	case len(b.Descriptive) < b.Sizes.Descriptive:
		return fmt.Errorf("%w: %d descriptive questions, draw needs %d", ErrInvalidBank, len(b.Descriptive), b.Sizes.Descriptive)
	case len(b.Images) < b.Sizes.Images:
		return fmt.Errorf("%w: %d images, draw needs %d", ErrInvalidBank, len(b.Images), b.Sizes.Images)
	case len(b.EducationTypes) == 0 || len(b.DistressTypes) == 0 || len(b.LocationMethods) == 0:
		return fmt.Errorf("%w: empty option list", ErrInvalidBank)
	}
	for _, q := range b.MultipleChoice {
		if q.Question == "" || len(q.Options) == 0 {
			return fmt.Errorf("%w: question %q has no options", ErrInvalidBank, q.Question)
		}
	}
	return nil
}

// Draw samples without replacement. The result is fixed for a session.
func (b *Bank) Draw(rng *rand.Rand) Draw {
	return Draw{
		MultipleChoice: sample(rng, b.MultipleChoice, b.Sizes.MultipleChoice),
		Descriptive:    sample(rng, b.Descriptive, b.Sizes.Descriptive),
		Images:         sample(rng, b.Images, b.Sizes.Images),
	}
}

func sample[T any](rng *rand.Rand, pool []T, n int) []T {
	out := make([]T, 0, n)
	for _, i := range rng.Perm(len(pool))[:n] {
		out = append(out, pool[i])
	}
	return out
}
