// Package importer loads authored cases from YAML and writes them to a case
// store.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	apperrors "github.com/louisbranch/courtroom/internal/platform/errors"
	"github.com/louisbranch/courtroom/internal/services/court/domain/casefile"
	"github.com/louisbranch/courtroom/internal/services/court/storage"
)

// caseFile is the authored YAML layout of one case.
type caseFile struct {
	ID                  string                  `yaml:"id"`
	Area                string                  `yaml:"area"`
	Theme               string                  `yaml:"theme"`
	Title               string                  `yaml:"title"`
	InitialContext      string                  `yaml:"initialContext"`
	JudgeName           string                  `yaml:"judgeName"`
	JudgeStyle          string                  `yaml:"judgeStyle"`
	OpponentName        string                  `yaml:"opponentName"`
	OpponentType        string                  `yaml:"opponentType"`
	PlayerGender        string                  `yaml:"playerGender"`
	Turns               []casefile.TurnDocument `yaml:"turns"`
	ExpectedVerdictText string                  `yaml:"expectedVerdictText"`
	MaxScore            int                     `yaml:"maxScore"`
	PositiveFeedback    []string                `yaml:"positiveFeedback"`
	NegativeFeedback    []string                `yaml:"negativeFeedback"`
	Tips                []string                `yaml:"tips"`
	Locale              string                  `yaml:"locale"`
}

// Decode reads every YAML document in r as a case. Each case is checked
// before it is returned.
func Decode(r io.Reader) ([]casefile.Case, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var cases []casefile.Case
	for {
		var file caseFile
		err := decoder.Decode(&file)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("decode case %d: %w", len(cases)+1, err)
		}
		c := file.toCase()
		if err := Check(c); err != nil {
			return nil, err
		}
		cases = append(cases, c)
	}
	return cases, nil
}

// LoadDir decodes every .yaml and .yml file under root, in path order.
func LoadDir(fsys fs.FS, root string) ([]casefile.Case, error) {
	var paths []string
	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		switch path.Ext(p) {
		case ".yaml", ".yml":
			paths = append(paths, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)

	var cases []casefile.Case
	seen := make(map[string]string)
	for _, p := range paths {
		file, err := fsys.Open(p)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		decoded, err := Decode(file)
		_ = file.Close()
		if err != nil {
			return nil, fmt.Errorf("%s: %w", p, err)
		}
		for _, c := range decoded {
			if first, ok := seen[c.ID]; ok {
				return nil, fmt.Errorf("%s: case %s already defined in %s", p, c.ID, first)
			}
			seen[c.ID] = p
			cases = append(cases, c)
		}
	}
	return cases, nil
}

// Check validates an authored case beyond what a hearing needs to run:
// enum fields must be known and every option needs a known strength.
func Check(c casefile.Case) error {
	if err := c.Validate(); err != nil {
		return err
	}
	malformed := func(format string, args ...any) error {
		return apperrors.WrapWithMetadata(apperrors.CodeCaseMalformed, "case is malformed", map[string]string{"case_id": c.ID}, fmt.Errorf(format, args...))
	}
	if strings.TrimSpace(c.Title) == "" {
		return malformed("title is required")
	}
	switch c.OpponentType {
	case casefile.OpponentProsecutor, casefile.OpponentPrivateCounsel:
	default:
		return malformed("unknown opponent type %q", c.OpponentType)
	}
	switch c.PlayerGender {
	case casefile.GenderMasculine, casefile.GenderFeminine:
	default:
		return malformed("unknown player gender %q", c.PlayerGender)
	}
	for i, turn := range c.Turns {
		question, ok := turn.(casefile.JudgeQuestion)
		if !ok {
			continue
		}
		for j, option := range question.Options {
			if !option.Strength.Valid() {
				return malformed("turn %d option %d has unknown strength %q", i, j, option.Strength)
			}
		}
	}
	return nil
}

// Report summarizes an import run.
type Report struct {
	Imported []string
	Skipped  []string
}

// Import writes cases to store. Cases whose id already exists are skipped;
// stored cases are never overwritten.
func Import(ctx context.Context, store storage.CaseStore, cases []casefile.Case) (Report, error) {
	var report Report
	for _, c := range cases {
		err := store.PutCase(ctx, c)
		switch {
		case err == nil:
			report.Imported = append(report.Imported, c.ID)
		case errors.Is(err, storage.ErrAlreadyExists):
			report.Skipped = append(report.Skipped, c.ID)
		default:
			return report, fmt.Errorf("import case %s: %w", c.ID, err)
		}
	}
	return report, nil
}

func (f caseFile) toCase() casefile.Case {
	c := casefile.Case{
		ID:                  strings.TrimSpace(f.ID),
		Area:                f.Area,
		Theme:               f.Theme,
		Title:               f.Title,
		InitialContext:      f.InitialContext,
		JudgeName:           f.JudgeName,
		JudgeStyle:          f.JudgeStyle,
		OpponentName:        f.OpponentName,
		OpponentType:        casefile.OpponentType(f.OpponentType),
		PlayerGender:        casefile.Gender(f.PlayerGender),
		ExpectedVerdictText: f.ExpectedVerdictText,
		MaxScore:            f.MaxScore,
		PositiveFeedback:    f.PositiveFeedback,
		NegativeFeedback:    f.NegativeFeedback,
		Tips:                f.Tips,
		Locale:              f.Locale,
	}
	for _, doc := range f.Turns {
		c.Turns = append(c.Turns, doc.Turn())
	}
	return c
}
